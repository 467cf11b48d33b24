package nodelink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/render"
)

// Export writes a merged diagram in the requested format. JSON is the
// rendering-layer shape; the other formats go through [ToDOT]. Pinned
// options render with neato.
func Export(ctx context.Context, d *diagram.Data, format render.Format, opts Options) ([]byte, error) {
	if format == render.FormatJSON {
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode diagram: %w", err)
		}
		return append(out, '\n'), nil
	}

	dot := ToDOT(d, opts)
	engine := EngineDot
	if opts.Pinned {
		engine = EngineNeato
	}

	switch format {
	case render.FormatDOT:
		return []byte(dot), nil
	case render.FormatSVG:
		return RenderSVG(ctx, dot, engine)
	case render.FormatPDF:
		return RenderPDF(ctx, dot, engine)
	case render.FormatPNG:
		return RenderPNG(ctx, dot, engine, 2.0)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}
