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
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
)

// featureFile is the template input of enroll and open. JSON documents
// are accepted as well since they are valid YAML.
type featureFile struct {
	Minutiae quantize.View `yaml:"minutiae"`
	Codes    []uint32      `yaml:"codes"`
}

// addFeatureFlags registers the template input flags.
func addFeatureFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("features", "f", "", "template file with minutiae or codes (YAML or JSON, - for stdin)")
	cmd.Flags().UintSlice("codes", nil, "comma separated feature codes")
}

// readFeatures returns the template given by --features or --codes.
func readFeatures(cmd *cobra.Command) (*featureFile, error) {
	path, _ := cmd.Flags().GetString("features")
	codes, _ := cmd.Flags().GetUintSlice("codes")

	switch {
	case path != "" && len(codes) > 0:
		return nil, fmt.Errorf("--features and --codes are mutually exclusive")
	case len(codes) > 0:
		out := make([]uint32, len(codes))
		for i, c := range codes {
			if c > math.MaxUint32 {
				return nil, fmt.Errorf("feature code %d out of range", c)
			}
			out[i] = uint32(c)
		}
		return &featureFile{Codes: out}, nil
	case path == "":
		return nil, fmt.Errorf("a template is required: use --features or --codes")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		// #nosec G304 - Template path is provided by the user
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return parseFeatures(data)
}

func parseFeatures(data []byte) (*featureFile, error) {
	var ff featureFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	switch {
	case len(ff.Minutiae) > 0 && len(ff.Codes) > 0:
		return nil, fmt.Errorf("template must contain either minutiae or codes, not both")
	case len(ff.Minutiae) == 0 && len(ff.Codes) == 0:
		return nil, fmt.Errorf("template contains no minutiae or codes")
	}
	return &ff, nil
}
