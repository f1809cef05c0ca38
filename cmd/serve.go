// File: cmd/serve.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/api"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
)

// newServeCmd creates the `serve` command, which exposes the actions over
// HTTP for a browser extension or script.
func newServeCmd() *cobra.Command {
	var listen string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the action API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg, err := getConfigFromContext(cmd.Context())
				if err != nil {
					return err
				}
				cfg.SetAPIListenAddr(listen)
			}
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				srv := api.NewServer(cfg, c.services(), logger)
				printSuccess(cmd.ErrOrStderr(), "Listening on http://%s", cfg.API().ListenAddr)
				return srv.ListenAndServe(ctx)
			})
		},
	}
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides api.listen_addr)")
	return serveCmd
}
