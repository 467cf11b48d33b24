package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/errors"
)

// streamRow is one line of the streams table.
type streamRow struct {
	Entry config.StreamEntry
	Apps  int
	Found bool
}

// streamsCommand lists the allow-listed streams with their catalog status.
func (c *CLI) streamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List the streams that can be drawn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := openBackend(ctx, cfg, c.Logger)
			if err != nil {
				return err
			}
			defer b.Close()

			rows, err := listStreams(ctx, b.catalog, cfg.AllowList())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				printWarning("No streams configured; add [[streams]] entries to %s", c.configPath)
				return nil
			}
			fmt.Fprintln(c.out, renderStreamTable(rows))
			printNextStep("Draw one", appName+" diagram "+rows[0].Entry.Name+" -f svg -o "+rows[0].Entry.Name+".svg")
			return nil
		},
	}
}

// listStreams resolves every allow-list entry against the catalog.
func listStreams(ctx context.Context, r catalog.Reader, allow *config.AllowList) ([]streamRow, error) {
	entries := allow.ListAllowedStreams()
	rows := make([]streamRow, 0, len(entries))
	for _, e := range entries {
		row := streamRow{Entry: e}
		s, err := r.StreamByName(ctx, e.Name)
		switch {
		case errors.Is(err, errors.ErrCodeNotFound):
		case err != nil:
			return nil, fmt.Errorf("look up stream %q: %w", e.Name, err)
		default:
			row.Found = true
			row.Apps = len(s.Apps)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func renderStreamTable(rows []streamRow) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	data := make([][]string, len(rows))
	for i, r := range rows {
		apps := "missing"
		if r.Found {
			apps = strconv.Itoa(r.Apps)
		}
		data[i] = []string{r.Entry.Name, r.Entry.Label(), apps, r.Entry.Description}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Stream", "Display Name", "Apps", "Description").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row < 0 || row >= len(rows) {
				return lipgloss.NewStyle()
			}
			r := rows[row]
			switch {
			case !r.Found:
				return lipgloss.NewStyle().Foreground(colorDim)
			case col == 0 && r.Entry.Color != "":
				return lipgloss.NewStyle().Foreground(lipgloss.Color(r.Entry.Color))
			case col == 2:
				return StyleNumber
			}
			return StyleValue
		})
	return t.Render()
}
