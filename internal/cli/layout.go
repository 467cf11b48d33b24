package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/layout"
)

// layoutTarget is the --stream/--app pair shared by layout subcommands.
type layoutTarget struct {
	stream string
	appID  int64
}

func (t *layoutTarget) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.stream, "stream", "", "stream name")
	cmd.Flags().Int64Var(&t.appID, "app", 0, "app id")
}

func (t *layoutTarget) validate() error {
	switch {
	case t.stream == "" && t.appID == 0:
		return fmt.Errorf("one of --stream or --app is required")
	case t.stream != "" && t.appID != 0:
		return fmt.Errorf("--stream and --app are mutually exclusive")
	case t.stream != "":
		return errors.ValidateStreamName(t.stream)
	case t.appID < 0:
		return errors.New(errors.ErrCodeInvalidInput, "invalid app id: %d", t.appID)
	}
	return nil
}

// layoutCommand creates the layout command for inspecting saved layouts.
func (c *CLI) layoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Inspect, save and prune saved diagram layouts",
		Long: `Inspect, save and prune saved diagram layouts.

A layout only stores positions and styles; nodes and edges always come from
the catalog. Entries for deleted apps or integrations are harmless and can be
removed with 'layout prune'.`,
	}

	cmd.AddCommand(c.layoutGetCommand())
	cmd.AddCommand(c.layoutSaveCommand())
	cmd.AddCommand(c.layoutListCommand())
	cmd.AddCommand(c.layoutPruneCommand())

	return cmd
}

// withBackend loads the configuration and runs fn against a fresh backend.
func (c *CLI) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, loggerFromContext(ctx))
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func (c *CLI) layoutGetCommand() *cobra.Command {
	var target layoutTarget

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the saved layout of a stream or app as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.validate(); err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				var (
					l   *layout.Layout
					err error
				)
				if target.appID != 0 {
					l, err = b.layouts.GetByAppID(ctx, target.appID)
				} else {
					l, err = b.layouts.GetByStreamName(ctx, target.stream)
				}
				if err != nil {
					return err
				}
				if l == nil {
					printWarning("No layout saved")
					return nil
				}
				return writeIndentedJSON(c.out, l)
			})
		},
	}

	target.bind(cmd)
	return cmd
}

func (c *CLI) layoutSaveCommand() *cobra.Command {
	var target layoutTarget

	cmd := &cobra.Command{
		Use:   "save <file|->",
		Short: "Save a layout from a JSON file",
		Long: `Save a layout from a JSON file, or from stdin with "-".

The document carries nodes_layout, edges_layout and config, the same shape
'layout get' prints. The key and timestamp are assigned on save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.validate(); err != nil {
				return err
			}
			in, err := readLayoutFile(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				var saved *layout.Layout
				if target.appID != 0 {
					saved, err = b.diagrams.SaveAppLayout(ctx, target.appID, in)
				} else {
					saved, err = b.diagrams.SaveStreamLayout(ctx, target.stream, in)
				}
				if err != nil {
					return err
				}
				printSuccess("Saved layout %s", StyleHighlight.Render(saved.Key.String()))
				printDetail("%d nodes, %d edges", len(saved.NodesLayout), len(saved.EdgesLayout))
				return nil
			})
		},
	}

	target.bind(cmd)
	return cmd
}

// readLayoutFile decodes a layout document from path, or stdin for "-".
func readLayoutFile(path string) (*layout.Layout, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open layout: %w", err)
		}
		defer f.Close()
		r = f
	}
	var l layout.Layout
	if err := json.NewDecoder(r).Decode(&l); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse layout %s", path)
	}
	l.Key = layout.Key{}
	return &l, nil
}

func (c *CLI) layoutListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every saved layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				var all []*layout.Layout
				for _, kind := range []layout.Kind{layout.KindStream, layout.KindStreamName, layout.KindApp} {
					ls, err := b.layouts.Store().List(ctx, kind)
					if err != nil {
						return fmt.Errorf("list %s layouts: %w", kind, err)
					}
					all = append(all, ls...)
				}
				if len(all) == 0 {
					printInfo("No layouts saved")
					return nil
				}
				fmt.Fprintln(c.out, renderLayoutTable(all))
				return nil
			})
		},
	}
}

func renderLayoutTable(all []*layout.Layout) string {
	rows := make([][]string, len(all))
	for i, l := range all {
		rows[i] = []string{
			l.Key.String(),
			strconv.Itoa(len(l.NodesLayout)),
			strconv.Itoa(len(l.EdgesLayout)),
			l.UpdatedAt.Format("2006-01-02 15:04"),
		}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Key", "Nodes", "Edges", "Updated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 1 || col == 2:
				return StyleNumber
			case col == 3:
				return StyleDim
			}
			return StyleValue
		}).
		Render()
}

func (c *CLI) layoutPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove layout entries for deleted apps and integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b *backend) error {
				prog := newProgress(loggerFromContext(ctx))
				n, err := b.layouts.PruneStale(ctx, b.catalog)
				if err != nil {
					return err
				}
				prog.done("Pruned layouts")
				if n == 0 {
					printInfo("All layouts are up to date")
					return nil
				}
				printSuccess("Rewrote %d layouts", n)
				return nil
			})
		},
	}
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
