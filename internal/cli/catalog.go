package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
)

// catalogCommand groups catalog maintenance.
func (c *CLI) catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the app catalog",
	}
	cmd.AddCommand(c.catalogImportCommand())
	return cmd
}

func (c *CLI) catalogImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a TOML or JSON catalog fixture into the configured storage",
		Long: `Import a TOML or JSON catalog fixture into the configured storage.

Records with an id replace the stored record; records without one are
assigned the next free id. Only the mongo backend persists the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := catalog.ReadFixture(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				if b.cfg.Storage.Backend != config.BackendMongo {
					printWarning("Storage backend is %s; imported records live only for this run", b.cfg.Storage.Backend)
				}
				prog := newProgress(loggerFromContext(ctx))
				if err := fx.Apply(ctx, b.catalog); err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
				prog.done("Imported catalog")
				printSuccess("Imported %d streams, %d apps, %d integrations",
					len(fx.Streams), len(fx.Apps), len(fx.Integrations))
				return nil
			})
		},
	}
}
