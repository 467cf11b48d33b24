package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/errors"
)

// appCommand groups app inspection and deletion.
func (c *CLI) appCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Show or delete catalog apps",
	}

	cmd.AddCommand(c.appShowCommand())
	cmd.AddCommand(c.appDeleteCommand())

	return cmd
}

func (c *CLI) appShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an app with its tech stack and contracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := errors.ParseID("app", args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				app, err := b.catalog.App(ctx, id)
				if err != nil {
					return err
				}
				contracts, err := b.catalog.Contracts(ctx, id)
				if err != nil {
					return fmt.Errorf("load contracts: %w", err)
				}
				printApp(app, contracts)
				return nil
			})
		},
	}
}

func printApp(app *catalog.App, contracts []catalog.Contract) {
	fmt.Println(StyleTitle.Render(app.Name))
	printKeyValue("ID", app.NodeID())
	printKeyValue("Stream", app.StreamName)
	if app.Type != "" {
		printKeyValue("Type", string(app.Type))
	}
	if app.Tier != "" {
		printKeyValue("Tier", string(app.Tier))
	}
	if app.Scope != "" {
		printKeyValue("Scope", app.Scope)
	}
	if len(app.Functions) > 0 {
		printKeyValue("Functions", strings.Join(app.Functions, ", "))
	}

	if stack := app.TechStack(); len(stack) > 0 {
		printNewline()
		fmt.Println(StyleHighlight.Render("Tech stack"))
		for _, g := range stack {
			labels := make([]string, len(g.Components))
			for i, t := range g.Components {
				labels[i] = t.Label()
			}
			printKeyValue(g.DisplayKey, strings.Join(labels, ", "))
		}
	}

	if len(contracts) > 0 {
		printNewline()
		fmt.Println(StyleHighlight.Render("Contracts"))
		for _, k := range contracts {
			printInfo("%s %s", k.Title, StyleDim.Render(k.ContractNumber))
			if v := k.OutstandingValue(); v > 0 {
				printDetail("outstanding %.2f", v)
			}
		}
	}
}

func (c *CLI) appDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an app and remove it from every saved layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := errors.ParseID("app", args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				changed, err := b.admin.DeleteApp(ctx, id)
				if err != nil {
					return err
				}
				printSuccess("Deleted app %d", id)
				printDetail("%d layouts updated", changed)
				if b.cfg.Storage.Backend != config.BackendMongo {
					printWarning("Catalog is loaded from a file; the deletion is not persisted")
				}
				return nil
			})
		},
	}
}
