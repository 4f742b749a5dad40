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
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-fuzzyvault/internal/config"
	"github.com/jeremyhahn/go-fuzzyvault/internal/password"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/service"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/vault"
)

// addGeometryFlags registers flags overriding the configured vault
// geometry.
func addGeometryFlags(cmd *cobra.Command) {
	cmd.Flags().Int("width", 0, "image width in pixels")
	cmd.Flags().Int("height", 0, "image height in pixels")
	cmd.Flags().Int("dpi", 0, "scanner resolution (300-1000)")
	cmd.Flags().Uint32("iterations", 0, "decoder iterations")
}

// vaultParams returns the configured parameters with the geometry flags
// applied. A changed resolution also resets the grid spacing.
func vaultParams(cmd *cobra.Command, cfg *config.Config) vault.Params {
	params := cfg.VaultParams()
	if cmd.Flags().Changed("width") {
		params.Width, _ = cmd.Flags().GetInt("width")
	}
	if cmd.Flags().Changed("height") {
		params.Height, _ = cmd.Flags().GetInt("height")
	}
	if cmd.Flags().Changed("dpi") {
		params.DPI, _ = cmd.Flags().GetInt("dpi")
		params.GridDist = 0
	}
	if cmd.Flags().Changed("iterations") {
		params.Iterations, _ = cmd.Flags().GetUint32("iterations")
	}
	return params.WithDefaults()
}

func newParamsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Show vault parameters",
		Long:  `Show the configured vault parameters with the feature universe and field they imply`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.Load()
			if err != nil {
				return err
			}
			v, err := vault.New(vaultParams(cmd, c))
			if err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).
				PrintParams(v.Params(), v.Size(), v.Field().String())
		},
	}
	addGeometryFlags(cmd)
	return cmd
}

func newEnrollCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Lock a new secret with a template",
		Long: `Create a vault that hides a random secret in the given template and
print the vault ID together with the secret's constant term.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ff, err := readFeatures(cmd)
			if err != nil {
				return err
			}
			label, _ := cmd.Flags().GetString("label")

			return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
				params := vaultParams(cmd, sess.cfg)
				printVerbose(cmd, cfg, "Enrolling %d minutiae, %d codes", len(ff.Minutiae), len(ff.Codes))

				var (
					id  string
					f0  gf.Elem
					err error
				)
				if len(ff.Codes) > 0 {
					id, f0, err = sess.svc.EnrollFeatures(cmd.Context(), params, label, ff.Codes)
				} else {
					id, f0, err = sess.svc.Enroll(cmd.Context(), params, label, ff.Minutiae)
				}
				if err != nil {
					return fmt.Errorf("failed to enroll: %w", err)
				}
				info, err := sess.svc.Info(id)
				if err != nil {
					return err
				}
				return printer.PrintEnrolled(id, f0, info)
			})
		},
	}
	addFeatureFlags(cmd)
	addGeometryFlags(cmd)
	cmd.Flags().StringP("label", "l", "", "label stored with the vault")
	return cmd
}

func newOpenCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <vault-id>",
		Short: "Recover a secret with a template",
		Long: `Decode a candidate secret from a vault using a query template. A
result is always printed; it equals the enrolled secret only if the
templates overlap well enough.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ff, err := readFeatures(cmd)
			if err != nil {
				return err
			}

			var opts []vault.Option
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetUint64("seed")
				opts = append(opts, vault.WithRand(rand.NewSeeded(seed)))
			}

			return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
				printVerbose(cmd, cfg, "Opening vault %s", id)
				if len(ff.Codes) > 0 {
					res, err := sess.svc.OpenFeatures(cmd.Context(), id, ff.Codes, opts...)
					if err != nil {
						return fmt.Errorf("failed to open vault: %w", err)
					}
					defer res.Polynomial.Clear()
					return printer.PrintDecodeResult(id, res)
				}
				f0, err := sess.svc.Open(cmd.Context(), id, ff.Minutiae, opts...)
				if err != nil {
					return fmt.Errorf("failed to open vault: %w", err)
				}
				return printer.PrintSecret(id, f0)
			})
		},
	}
	addFeatureFlags(cmd)
	cmd.Flags().Uint64("seed", 0, "seed the decoder for reproducible results")
	return cmd
}

func newInfoCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info <vault-id>",
		Short: "Show vault information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
				info, err := sess.svc.Info(args[0])
				if err != nil {
					return fmt.Errorf("failed to get vault: %w", err)
				}
				return printer.PrintVaultInfo(info)
			})
		},
	}
}

func newListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored vaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
				ids, err := sess.svc.List()
				if err != nil {
					return fmt.Errorf("failed to list vaults: %w", err)
				}
				infos := make([]*service.Info, 0, len(ids))
				for _, id := range ids {
					info, err := sess.svc.Info(id)
					if err != nil {
						return fmt.Errorf("failed to get vault %s: %w", id, err)
					}
					infos = append(infos, info)
				}
				return printer.PrintVaultList(infos)
			})
		},
	}
}

func newDeleteCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <vault-id>",
		Short: "Delete a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
				if err := sess.svc.Delete(args[0]); err != nil {
					return fmt.Errorf("failed to delete vault: %w", err)
				}
				return printer.PrintSuccess(fmt.Sprintf("Vault %s deleted", args[0]))
			})
		},
	}
}

func newEncryptCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt <vault-id>",
		Short: "Encrypt a vault with a passphrase",
		Long: `Encrypt the vault polynomial with a key derived from a passphrase.
The passphrase is read from --passphrase-file, FUZZYVAULT_PASSPHRASE or
the first line of stdin, in that order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPassphraseCmd(cmd, cfg, args[0], "encrypted", (*service.Service).Encrypt)
		},
	}
	cmd.Flags().String("passphrase-file", "", "file containing the passphrase")
	return cmd
}

func newDecryptCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt <vault-id>",
		Short: "Decrypt a vault",
		Long: `Decrypt the vault polynomial. A wrong passphrase is not detected;
the vault then no longer recovers its secret. The passphrase is read
like for encrypt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPassphraseCmd(cmd, cfg, args[0], "decrypted", (*service.Service).Decrypt)
		},
	}
	cmd.Flags().String("passphrase-file", "", "file containing the passphrase")
	return cmd
}

func runPassphraseCmd(cmd *cobra.Command, cfg *Config, id, done string,
	fn func(*service.Service, string, []byte) error) error {
	pwd, err := readPassphrase(cmd)
	if err != nil {
		return err
	}
	defer pwd.Clear()

	return withSession(cmd, cfg, func(sess *session, printer *Printer) error {
		pass, err := pwd.Bytes()
		if err != nil {
			return err
		}
		defer clear(pass)
		if err := fn(sess.svc, id, pass); err != nil {
			return fmt.Errorf("failed to update vault: %w", err)
		}
		return printer.PrintSuccess(fmt.Sprintf("Vault %s %s", id, done))
	})
}

func readPassphrase(cmd *cobra.Command) (*password.ClearPassword, error) {
	if path, _ := cmd.Flags().GetString("passphrase-file"); path != "" {
		return password.ReadFile(path)
	}
	if os.Getenv(password.EnvPassphrase) != "" {
		return password.FromEnv()
	}
	return password.Read(cmd.InOrStdin())
}
