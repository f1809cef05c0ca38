// File: cmd/proxy.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/proxy"
)

// newProxyCmd creates the `proxy` command group.
func newProxyCmd() *cobra.Command {
	var settingsFile string
	proxyCmd := &cobra.Command{
		Use:   "proxy",
		Short: "Switches the browser proxy between random SOCKS5 servers and the system setting",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Cobra runs only the nearest PersistentPreRunE.
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if settingsFile == "" {
				return nil
			}
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			cfg.SetProxySettingsFile(settingsFile)
			return nil
		},
	}
	proxyCmd.PersistentFlags().StringVar(&settingsFile, "settings-file", "", "where proxy settings are written (overrides proxy.settings_file)")

	var verify bool
	switchCmd := &cobra.Command{
		Use:   "switch",
		Short: "Picks a random proxy from the list and applies it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("verify") {
				cfg, err := getConfigFromContext(cmd.Context())
				if err != nil {
					return err
				}
				cfg.SetProxyVerify(verify)
			}
			return runProxyAction(cmd, (*proxy.Rotator).Switch)
		},
	}
	switchCmd.Flags().BoolVar(&verify, "verify", false, "check each candidate with a SOCKS5 handshake before applying it")

	disconnectCmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Restores the system proxy setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxyAction(cmd, (*proxy.Rotator).Disconnect)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Shows the proxy in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				if cur, ok := c.Proxies.Current(ctx); ok {
					printField(cmd.OutOrStdout(), "Proxy", cur)
					return nil
				}
				printField(cmd.OutOrStdout(), "Proxy", "none (system settings)")
				return nil
			})
		},
	}

	proxyCmd.AddCommand(switchCmd, disconnectCmd, statusCmd)
	return proxyCmd
}

func runProxyAction(cmd *cobra.Command, action func(*proxy.Rotator, context.Context) proxy.Result) error {
	return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
		res := action(c.Proxies, ctx)
		if !res.Success {
			printFailure(cmd.ErrOrStderr(), "%s", res.Message)
			return nil
		}
		if res.Proxy != "" {
			printSuccess(cmd.OutOrStdout(), "Proxy set to %s", res.Proxy)
		} else {
			printSuccess(cmd.OutOrStdout(), "Proxy disabled")
		}
		return nil
	})
}
