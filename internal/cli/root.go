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

// Package cli implements the fuzzyvault command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree around cfg, which receives the
// global flags.
func NewRootCommand(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fuzzyvault",
		Short: "fuzzyvault CLI - Fingerprint fuzzy vault tool",
		Long: `fuzzyvault locks a random secret with the minutiae of a fingerprint
template and recovers it from a second, similar template.

Vaults are stored with their parameters and can additionally be
encrypted with a passphrase. Opening a vault always yields a candidate
secret; it matches the enrolled one only when the templates overlap
well enough.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).Validate()
		},
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "",
		"config file (defaults plus FUZZYVAULT_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", "",
		"directory for vault storage, implies --backend file")
	rootCmd.PersistentFlags().StringVar(&cfg.Backend, "backend", "",
		"storage backend to use (memory, file)")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputFormat, "output", "o", "text",
		"output format (text, json, table)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"verbose output")

	// Add subcommands
	rootCmd.AddCommand(newVersionCmd(cfg))
	rootCmd.AddCommand(newParamsCmd(cfg))
	rootCmd.AddCommand(newEnrollCmd(cfg))
	rootCmd.AddCommand(newOpenCmd(cfg))
	rootCmd.AddCommand(newInfoCmd(cfg))
	rootCmd.AddCommand(newListCmd(cfg))
	rootCmd.AddCommand(newDeleteCmd(cfg))
	rootCmd.AddCommand(newEncryptCmd(cfg))
	rootCmd.AddCommand(newDecryptCmd(cfg))
	rootCmd.AddCommand(newStatusCmd(cfg))

	return rootCmd
}

// Execute runs the root command and prints a failure to stderr
func Execute(ctx context.Context) error {
	cfg := NewConfig()
	err := NewRootCommand(cfg).ExecuteContext(ctx)
	if err != nil {
		handleError(cfg, os.Stderr, err)
	}
	return err
}

// handleError prints an error in the selected output format
func handleError(cfg *Config, w io.Writer, err error) {
	format := cfg.OutputFormat
	if NewPrinter(format, w).Validate() != nil {
		format = string(OutputFormatText)
	}
	_ = NewPrinter(format, w).PrintError(err) // Error printing to stderr is best-effort
}

// withSession opens the configured vault store, runs fn and closes the
// store again.
func withSession(cmd *cobra.Command, cfg *Config, fn func(*session, *Printer) error) error {
	sess, err := cfg.openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())
	if err := fn(sess, printer); err != nil {
		_ = sess.Close()
		return err
	}
	if err := sess.Close(); err != nil {
		return fmt.Errorf("failed to close vault store: %w", err)
	}
	return nil
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, cfg *Config, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
