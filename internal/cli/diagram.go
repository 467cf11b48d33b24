package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/render"
	"github.com/matzehuels/appmap/pkg/render/nodelink"
)

// diagramOpts holds the command-line flags for the diagram command.
type diagramOpts struct {
	appID    int64  // draw one app's integrations instead of a stream
	admin    bool   // admin view of a stream
	format   string // json, dot, svg, pdf, png
	output   string // output file; stdout when empty
	pinned   bool   // pin nodes at their saved positions
	detailed bool   // include app type, tier and connection type details
}

// diagramCommand creates the diagram command.
func (c *CLI) diagramCommand() *cobra.Command {
	var opts diagramOpts

	cmd := &cobra.Command{
		Use:   "diagram [stream]",
		Short: "Build a stream or app diagram with its saved layout",
		Long: `Build the diagram of a stream, or of one app with --app, and merge the saved
layout onto it. Without a stream argument on a terminal an interactive picker
lists the configured streams.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeStreams,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			if opts.appID != 0 && len(args) > 0 {
				return fmt.Errorf("--app and a stream argument are mutually exclusive")
			}
			if opts.appID != 0 && opts.admin {
				return fmt.Errorf("--admin applies to stream diagrams only")
			}
			stream := ""
			if len(args) == 1 {
				stream = args[0]
			}
			return c.runDiagram(cmd.Context(), cmd, stream, format, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.appID, "app", 0, "draw the integrations of one app by id")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "admin view: one flat group for the whole stream")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json, dot, svg, pdf, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.pinned, "pinned", false, "pin nodes at their saved positions")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show app and connection details")

	return cmd
}

func (c *CLI) runDiagram(ctx context.Context, cmd *cobra.Command, stream string, format render.Format, opts diagramOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if opts.appID == 0 && stream == "" {
		stream, err = c.pickStream(ctx, b)
		if err != nil || stream == "" {
			return err
		}
	}

	prog := newProgress(logger)
	var d *diagram.Data
	if opts.appID != 0 {
		d, err = b.diagrams.App(ctx, opts.appID)
	} else {
		d, err = b.diagrams.Stream(ctx, stream, diagram.BuildOptions{Admin: opts.admin})
	}
	if err != nil {
		return err
	}
	if d.Error != "" {
		return errors.New(errors.ErrCodeDiagramLoadFailed, "%s", d.Error)
	}
	prog.done(fmt.Sprintf("Built diagram: %d nodes, %d edges", len(d.Nodes), len(d.Edges)))

	target := stream
	if opts.appID != 0 {
		target = fmt.Sprintf("app %d", opts.appID)
	}
	data, err := exportDiagram(ctx, d, target, format, nodelink.Options{Detailed: opts.detailed, Pinned: opts.pinned})
	if err != nil {
		return err
	}

	if opts.output == "" {
		if format.Binary() && isTerminal(c.out) {
			return fmt.Errorf("refusing to write %s to a terminal; use -o", format)
		}
		_, err = c.out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess("Wrote %s diagram", format)
	printFile(opts.output)
	printStats(len(d.Nodes), len(d.Edges), d.Layout != nil)
	return nil
}

// exportDiagram renders d, showing a spinner on stderr for the formats that
// go through rsvg-convert.
func exportDiagram(ctx context.Context, d *diagram.Data, target string, format render.Format, opts nodelink.Options) ([]byte, error) {
	if !format.Binary() {
		return nodelink.Export(ctx, d, format, opts)
	}
	spinner := startRenderSpinner(ctx, os.Stderr, target, string(format))
	defer spinner.Stop()
	return nodelink.Export(ctx, d, format, opts)
}

// pickStream runs the interactive stream picker. It returns "" when the
// user quits without choosing.
func (c *CLI) pickStream(ctx context.Context, b *backend) (string, error) {
	if !isTerminal(os.Stdin) || !isTerminal(c.out) {
		return "", fmt.Errorf("stream argument is required when not running in a terminal")
	}
	rows, err := listStreams(ctx, b.catalog, b.cfg.AllowList())
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no streams configured")
	}

	p := tea.NewProgram(NewStreamListModel(rows), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	fm, ok := final.(StreamListModel)
	if !ok || fm.Selected == "" {
		printDetail("No selection made")
		return "", nil
	}
	return fm.Selected, nil
}

// completeStreams completes stream names from the configured allow-list.
func (c *CLI) completeStreams(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var names []string
	for _, e := range cfg.AllowList().ListAllowedStreams() {
		names = append(names, e.Name+"\t"+e.Label())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
