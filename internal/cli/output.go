// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fuzzyvault.
//
// go-fuzzyvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/health"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/service"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// Validate rejects unknown output formats.
func (p *Printer) Validate() error {
	switch p.format {
	case OutputFormatText, OutputFormatJSON, OutputFormatTable:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintEnrolled prints the result of an enrollment
func (p *Printer) PrintEnrolled(id string, f0 gf.Elem, info *service.Info) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"id":       id,
			"secret":   uint32(f0),
			"field":    info.Field,
			"features": info.Features,
			"size":     info.Size,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Vault ID: %s\n", id)
		fmt.Fprintf(p.writer, "Secret:   %d (0x%x)\n", f0, uint32(f0))
		fmt.Fprintf(p.writer, "Field:    %s\n", info.Field)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSecret prints the constant term recovered by opening a vault
func (p *Printer) PrintSecret(id string, f0 gf.Elem) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"id":     id,
			"secret": uint32(f0),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Secret: %d (0x%x)\n", f0, uint32(f0))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintDecodeResult prints the secret with its decoding statistics
func (p *Printer) PrintDecodeResult(id string, res *vault.DecodeResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"id":         id,
			"secret":     uint32(res.F0),
			"count":      res.Count,
			"iterations": res.Iterations,
			"distinct":   res.Distinct,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Secret:     %d (0x%x)\n", res.F0, uint32(res.F0))
		fmt.Fprintf(p.writer, "Mode count: %d of %d iterations\n", res.Count, res.Iterations)
		fmt.Fprintf(p.writer, "Distinct:   %d\n", res.Distinct)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVaultList prints a list of vault IDs
func (p *Printer) PrintVaultList(infos []*service.Info) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(infos))
		for i, info := range infos {
			list[i] = map[string]interface{}{
				"id":        info.ID,
				"label":     info.Label,
				"created":   info.CreatedAt.Format(time.RFC3339),
				"encrypted": info.Encrypted,
			}
		}
		return p.printJSON(map[string]interface{}{
			"vaults": list,
		})
	case OutputFormatTable:
		if len(infos) == 0 {
			fmt.Fprintln(p.writer, "No vaults found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-36s  %-20s  %-20s  %-9s\n", "ID", "LABEL", "CREATED", "ENCRYPTED")
		fmt.Fprintln(p.writer, strings.Repeat("-", 92))
		for _, info := range infos {
			fmt.Fprintf(p.writer, "%-36s  %-20s  %-20s  %-9t\n",
				info.ID, info.Label, info.CreatedAt.Format(time.RFC3339), info.Encrypted)
		}
		return nil
	case OutputFormatText:
		if len(infos) == 0 {
			fmt.Fprintln(p.writer, "No vaults found")
			return nil
		}
		fmt.Fprintln(p.writer, "Vaults:")
		for _, info := range infos {
			if info.Label != "" {
				fmt.Fprintf(p.writer, "  - %s (%s)\n", info.ID, info.Label)
			} else {
				fmt.Fprintf(p.writer, "  - %s\n", info.ID)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVaultInfo prints detailed vault information
func (p *Printer) PrintVaultInfo(info *service.Info) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Vault ID:     %s\n", info.ID)
		if info.Label != "" {
			fmt.Fprintf(p.writer, "Label:        %s\n", info.Label)
		}
		fmt.Fprintf(p.writer, "Created:      %s\n", info.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "Enrolled:     %t\n", info.Enrolled)
		fmt.Fprintf(p.writer, "Encrypted:    %t\n", info.Encrypted)
		fmt.Fprintf(p.writer, "Size:         %d bytes\n", info.Size)
		p.printParams(info.Params, info.Features, info.Field)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintParams prints vault parameters with the derived universe and field
func (p *Printer) PrintParams(params vault.Params, features int, field string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"params":   params,
			"features": features,
			"field":    field,
		})
	case OutputFormatTable, OutputFormatText:
		p.printParams(params, features, field)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printParams(params vault.Params, features int, field string) {
	fmt.Fprintf(p.writer, "Image:        %dx%d @ %d dpi\n", params.Width, params.Height, params.DPI)
	fmt.Fprintf(p.writer, "Grid:         %d px, %d angle quanta\n", params.GridDist, params.AngleQuanta)
	fmt.Fprintf(p.writer, "Features:     %d\n", features)
	fmt.Fprintf(p.writer, "Field:        %s\n", field)
	fmt.Fprintf(p.writer, "Secret size:  %d\n", params.SecretSize)
	fmt.Fprintf(p.writer, "Max features: %d\n", params.MaxFeatures)
	fmt.Fprintf(p.writer, "Iterations:   %d\n", params.Iterations)
}

// PrintHealth prints a health report
func (p *Printer) PrintHealth(report health.Report) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(report)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Status: %s\n", report.Status)
		for _, c := range report.Checks {
			fmt.Fprintf(p.writer, "  %-10s %-10s %s", c.Name, c.Status, c.Message)
			if c.Error != "" {
				fmt.Fprintf(p.writer, " (%s)", c.Error)
			}
			fmt.Fprintf(p.writer, " [%s]\n", c.Latency.Round(time.Millisecond))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	default:
		fmt.Fprintln(p.writer, message)
		return nil
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
