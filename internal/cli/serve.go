package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/appmap/internal/server"
	"github.com/matzehuels/appmap/pkg/observability/prom"
)

// serveCommand creates the serve command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve diagrams and layouts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			prom.New(prometheus.DefaultRegisterer).Install()

			b, err := openBackend(ctx, cfg, c.Logger)
			if err != nil {
				return err
			}
			defer b.Close()

			if cfg.AllowList().Len() == 0 {
				c.Logger.Warn("stream allow-list is empty, every stream diagram will be refused")
			}

			srv := server.New(server.Deps{
				Catalog:  b.catalog,
				Diagrams: b.diagrams,
				Admin:    b.admin,
				Streams:  cfg.AllowList(),
				Logger:   c.Logger,
			})
			return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout.Duration, cfg.Server.WriteTimeout.Duration)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
