// File: cmd/mail.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/mail"
)

// newMailCmd creates the `mail` command group.
func newMailCmd() *cobra.Command {
	mailCmd := &cobra.Command{
		Use:   "mail",
		Short: "Manages the disposable mailbox and reads verification codes",
	}
	mailCmd.AddCommand(newMailCreateCmd(), newMailCodeCmd(), newMailWaitCmd())
	return mailCmd
}

func newMailCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Creates a disposable mailbox and makes it the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				acct, err := c.Mail.CreateAccount(ctx)
				if err != nil {
					return fmt.Errorf("failed to create mailbox: %w", err)
				}
				out := cmd.OutOrStdout()
				printField(out, "Email", acct.Address)
				printField(out, "Password", acct.Password)
				printField(out, "ID", acct.ID)
				return nil
			})
		},
	}
}

type mailboxFlags struct {
	address  string
	password string
}

func (f *mailboxFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.address, "email", "", "mailbox address (default: the active mailbox, then the last submitted identity)")
	cmd.Flags().StringVar(&f.password, "password", "", "mailbox password")
}

// ensureMailbox activates the mailbox to read from.
func ensureMailbox(ctx context.Context, cfg config.Interface, c *components, f *mailboxFlags) error {
	recent := func(ctx context.Context) (string, string, error) {
		sub, err := c.Store.LastSubmission(ctx, cfg.Store().RecentWindow)
		if err != nil {
			return "", "", err
		}
		return sub.Record.Email, sub.Record.Password, nil
	}
	if _, err := c.Mail.Ensure(ctx, f.address, f.password, recent); err != nil {
		if errors.Is(err, mail.ErrNoAccount) {
			return fmt.Errorf("%w: run `fakesignup mail create` or pass --email and --password", err)
		}
		return err
	}
	return nil
}

func newMailCodeCmd() *cobra.Command {
	flags := &mailboxFlags{}
	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Extracts a verification code from the newest message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				if err := ensureMailbox(ctx, cfg, c, flags); err != nil {
					return err
				}
				code, err := c.Mail.LatestCode(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
				return nil
			})
		},
	}
	flags.register(codeCmd)
	return codeCmd
}

func newMailWaitCmd() *cobra.Command {
	flags := &mailboxFlags{}
	var timeout time.Duration
	waitCmd := &cobra.Command{
		Use:   "wait",
		Short: "Waits for a new message carrying a verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("timeout") {
				cfg, err := getConfigFromContext(cmd.Context())
				if err != nil {
					return err
				}
				cfg.SetMailWaitTimeout(timeout)
			}
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				if err := ensureMailbox(ctx, cfg, c, flags); err != nil {
					return err
				}
				logger.Info("Waiting for verification code", zap.Duration("timeout", cfg.Mail().WaitTimeout))
				code, err := c.Mail.WaitForCode(ctx, cfg.Mail().WaitTimeout)
				if err != nil {
					return err
				}
				if code == mail.WaitTimedOut {
					printFailure(cmd.ErrOrStderr(), "%s", code)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
				return nil
			})
		},
	}
	flags.register(waitCmd)
	waitCmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait (default mail.wait_timeout)")
	return waitCmd
}
