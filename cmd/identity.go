// File: cmd/identity.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
)

// newIdentityCmd creates the `identity` command.
func newIdentityCmd() *cobra.Command {
	var (
		asJSON    bool
		noMailbox bool
	)
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Generates a fake identity with a password and a disposable mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				bundler := c.Bundler
				if noMailbox {
					bundler = identity.NewBundler(c.Identities, nil, c.Passwords, identity.PasswordOptionsFrom(cfg.Password()), logger)
				}
				bundle, err := bundler.Bundle(ctx)
				if err != nil {
					return fmt.Errorf("failed to generate identity: %w", err)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, bundle)
				}
				printRecord(out, bundle.Record)
				printField(out, "Strength", string(bundle.Strength))
				if bundle.Mailbox != nil {
					printField(out, "Mailbox", bundle.Mailbox.ID)
				}
				return nil
			})
		},
	}
	identityCmd.Flags().BoolVar(&asJSON, "json", false, "print the bundle as JSON")
	identityCmd.Flags().BoolVar(&noMailbox, "no-mailbox", false, "keep the generated email instead of creating a disposable mailbox")
	return identityCmd
}
