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
	"errors"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/health"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

// errUnhealthy makes status exit non-zero after printing the report.
var errUnhealthy = errors.New("vault store is unhealthy")

func newStatusCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the vault store",
		Long: `Check that the vault storage is reachable and the random source
works, and optionally run an enroll and open self-test.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selftest, _ := cmd.Flags().GetBool("selftest")

			return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
				checker := health.NewChecker()
				checker.RegisterCheck("storage", health.StorageCheck(sess.backend))
				checker.RegisterCheck("rng", health.RandCheck(sess.resolver))
				if selftest {
					params := sess.cfg.VaultParams()
					params.Iterations = min(params.Iterations, 256)
					checker.RegisterCheck("selftest", health.SelfTestCheck(params,
						vault.WithResolver(sess.resolver),
						vault.WithWorkers(sess.cfg.Decoder.Workers),
						vault.WithLogger(sess.logger)))
				}

				report := checker.Run(cmd.Context())
				if err := printer.PrintHealth(report); err != nil {
					return err
				}
				if report.Status == health.StatusUnhealthy {
					return errUnhealthy
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("selftest", false, "enroll and open a throwaway vault")
	return cmd
}
