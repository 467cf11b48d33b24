package diagram

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/layout"
	"github.com/matzehuels/appmap/pkg/observability"
)

// Service loads catalog data, builds diagrams and merges stored layouts.
// It is stateless apart from its collaborators and safe for concurrent use.
type Service struct {
	Catalog catalog.Reader
	Layouts *layout.Layouts
	Streams *config.AllowList
	Logger  *log.Logger
}

// NewService creates a service. A nil allow-list permits no stream; a nil
// logger uses log.Default().
func NewService(r catalog.Reader, layouts *layout.Layouts, streams *config.AllowList, logger *log.Logger) *Service {
	if streams == nil {
		streams = config.NewAllowList()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{Catalog: r, Layouts: layouts, Streams: streams, Logger: logger}
}

// =============================================================================
// Build
// =============================================================================

// BuildStream loads a stream's data and builds its canonical graph.
//
// It returns STREAM_NOT_ALLOWED for streams outside the allow-list and
// wraps every data-access failure, including an allowed stream missing
// from the catalog, in DIAGRAM_LOAD_FAILED.
func (s *Service) BuildStream(ctx context.Context, name string, opts BuildOptions) (Graph, *catalog.Stream, error) {
	entry, ok := s.Streams.Entry(name)
	if !ok {
		return Graph{}, nil, errors.New(errors.ErrCodeStreamNotAllowed, "stream %q is not allowed", name)
	}

	start := time.Now()
	observability.Diagram().OnBuildStart(ctx, "stream", name)

	in, stream, err := s.loadStream(ctx, name)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeDiagramLoadFailed, err, "load diagram for stream %q", name)
		observability.Diagram().OnBuildComplete(ctx, "stream", name, 0, 0, time.Since(start), err)
		return Graph{}, nil, err
	}

	if opts.Label == "" {
		opts.Label = entry.Label()
	}
	g := BuildGraph(in, opts)
	s.reportSkipped(ctx, g, "stream", name)
	observability.Diagram().OnBuildComplete(ctx, "stream", name, len(g.Nodes), len(g.Edges), time.Since(start), nil)
	s.Logger.Debug("built stream diagram", "stream", name, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, stream, nil
}

func (s *Service) loadStream(ctx context.Context, name string) (Input, *catalog.Stream, error) {
	stream, err := s.Catalog.StreamByName(ctx, name)
	if err != nil {
		return Input{}, nil, err
	}
	homeIDs := stream.AppIDs()
	integrations, err := s.Catalog.IntegrationsTouching(ctx, homeIDs)
	if err != nil {
		return Input{}, nil, err
	}

	home := make(map[int64]bool, len(homeIDs))
	for _, id := range homeIDs {
		home[id] = true
	}
	var partnerIDs []int64
	seen := map[int64]bool{}
	for _, i := range integrations {
		for _, id := range []int64{i.SourceAppID, i.TargetAppID} {
			if !home[id] && !seen[id] {
				seen[id] = true
				partnerIDs = append(partnerIDs, id)
			}
		}
	}
	partners, err := s.Catalog.AppsByIDs(ctx, partnerIDs)
	if err != nil {
		return Input{}, nil, err
	}
	types, err := s.Catalog.ConnectionTypes(ctx)
	if err != nil {
		return Input{}, nil, err
	}
	return Input{
		Stream:          *stream,
		Apps:            partners,
		Integrations:    integrations,
		ConnectionTypes: types,
	}, stream, nil
}

// BuildApp builds the integration graph of one app. A missing app is
// NOT_FOUND; other failures are DIAGRAM_LOAD_FAILED.
func (s *Service) BuildApp(ctx context.Context, id int64) (Graph, *catalog.App, error) {
	ref := strconv.FormatInt(id, 10)
	start := time.Now()
	observability.Diagram().OnBuildStart(ctx, "app", ref)

	g, app, err := s.loadApp(ctx, id)
	if err != nil {
		if !errors.Is(err, errors.ErrCodeNotFound) {
			err = errors.Wrap(errors.ErrCodeDiagramLoadFailed, err, "load diagram for app %d", id)
		}
		observability.Diagram().OnBuildComplete(ctx, "app", ref, 0, 0, time.Since(start), err)
		return Graph{}, nil, err
	}
	s.reportSkipped(ctx, g, "app", ref)
	observability.Diagram().OnBuildComplete(ctx, "app", ref, len(g.Nodes), len(g.Edges), time.Since(start), nil)
	s.Logger.Debug("built app diagram", "app", id, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, app, nil
}

func (s *Service) loadApp(ctx context.Context, id int64) (Graph, *catalog.App, error) {
	app, err := s.Catalog.App(ctx, id)
	if err != nil {
		return Graph{}, nil, err
	}
	integrations, err := s.Catalog.IntegrationsTouching(ctx, []int64{id})
	if err != nil {
		return Graph{}, nil, err
	}
	var partnerIDs []int64
	for _, i := range integrations {
		partnerIDs = append(partnerIDs, i.Other(id))
	}
	partners, err := s.Catalog.AppsByIDs(ctx, partnerIDs)
	if err != nil {
		return Graph{}, nil, err
	}
	types, err := s.Catalog.ConnectionTypes(ctx)
	if err != nil {
		return Graph{}, nil, err
	}
	return BuildAppGraph(*app, partners, integrations, types), app, nil
}

func (s *Service) reportSkipped(ctx context.Context, g Graph, scope, ref string) {
	for _, id := range g.Skipped {
		observability.Diagram().OnSkippedIntegration(ctx, id)
	}
	if len(g.Skipped) > 0 {
		s.Logger.Warn("skipped integrations with missing apps", scope, ref, "integrations", g.Skipped)
	}
}

// =============================================================================
// Load (build + merge)
// =============================================================================

// Stream returns the merged diagram of a stream. STREAM_NOT_ALLOWED is
// returned as an error; any other failure yields an empty diagram with
// Error set and a nil error.
func (s *Service) Stream(ctx context.Context, name string, opts BuildOptions) (*Data, error) {
	g, stream, err := s.BuildStream(ctx, name, opts)
	if errors.Is(err, errors.ErrCodeStreamNotAllowed) {
		return nil, err
	}
	if err != nil {
		s.Logger.Error("diagram load failed", "stream", name, "err", err)
		return Failed(errors.UserMessage(err)), nil
	}

	stored, err := s.Layouts.GetByStream(ctx, stream.ID, stream.Name)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeDiagramLoadFailed, err, "load layout for stream %q", name)
		s.Logger.Error("diagram load failed", "stream", name, "err", err)
		return Failed(errors.UserMessage(err)), nil
	}
	observability.Diagram().OnMerge(ctx, "stream", stored != nil)

	data := Merge(g, stored)
	return &data, nil
}

// App returns the merged integration diagram of one app. A missing app is
// returned as a NOT_FOUND error; other failures populate Data.Error.
func (s *Service) App(ctx context.Context, id int64) (*Data, error) {
	g, _, err := s.BuildApp(ctx, id)
	if errors.Is(err, errors.ErrCodeNotFound) {
		return nil, err
	}
	if err != nil {
		s.Logger.Error("diagram load failed", "app", id, "err", err)
		return Failed(errors.UserMessage(err)), nil
	}

	stored, err := s.Layouts.GetByAppID(ctx, id)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeDiagramLoadFailed, err, "load layout for app %d", id)
		s.Logger.Error("diagram load failed", "app", id, "err", err)
		return Failed(errors.UserMessage(err)), nil
	}
	observability.Diagram().OnMerge(ctx, "app", stored != nil)

	data := Merge(g, stored)
	return &data, nil
}

// =============================================================================
// Save
// =============================================================================

// SaveStreamLayout stores the layout of an allowed stream. Write failures
// are LAYOUT_SAVE_FAILED.
func (s *Service) SaveStreamLayout(ctx context.Context, name string, l *layout.Layout) (*layout.Layout, error) {
	if !s.Streams.IsStreamAllowed(name) {
		return nil, errors.New(errors.ErrCodeStreamNotAllowed, "stream %q is not allowed", name)
	}
	saved, err := s.Layouts.UpsertByStreamName(ctx, name, l)
	if err != nil {
		s.Logger.Error("layout save failed", "stream", name, "err", err)
		return nil, err
	}
	s.Logger.Info("saved stream layout", "stream", name, "nodes", len(saved.NodesLayout))
	return saved, nil
}

// SaveAppLayout stores the layout of an existing app.
func (s *Service) SaveAppLayout(ctx context.Context, id int64, l *layout.Layout) (*layout.Layout, error) {
	if _, err := s.Catalog.App(ctx, id); err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "check app %d", id)
	}
	saved, err := s.Layouts.UpsertByAppID(ctx, id, l)
	if err != nil {
		s.Logger.Error("layout save failed", "app", id, "err", err)
		return nil, err
	}
	s.Logger.Info("saved app layout", "app", id, "nodes", len(saved.NodesLayout))
	return saved, nil
}
