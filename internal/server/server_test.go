package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/appmap/pkg/admin"
	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/layout"
	"github.com/matzehuels/appmap/pkg/observability"
	"github.com/matzehuels/appmap/pkg/observability/prom"
)

func ptr[T any](v T) *T { return &v }

func newTestServer(t *testing.T) (*Server, *catalog.Memory) {
	t.Helper()
	fx := catalog.Fixture{
		Streams: []catalog.Stream{{ID: 1, Name: "sp"}, {ID: 2, Name: "mi"}, {ID: 3, Name: "ops"}},
		Apps: []catalog.App{
			{ID: 1, Name: "Billing", StreamID: 1, Technologies: []catalog.TechComponent{
				{Category: catalog.TechDatabase, Name: "PostgreSQL", Version: "15"},
			}},
			{ID: 2, Name: "Accounts", StreamID: 1},
			{ID: 5, Name: "Reporting", StreamID: 1},
			{ID: 3, Name: "Ledger", StreamID: 2},
		},
		ConnectionTypes: []catalog.ConnectionType{{ID: 1, Name: "sftp", Color: "#002ac0"}},
		Integrations: []catalog.Integration{
			{ID: 1, SourceAppID: 3, TargetAppID: 1, ConnectionTypeID: ptr[int64](1)},
			{ID: 2, SourceAppID: 5, TargetAppID: 1},
		},
		Contracts: []catalog.Contract{{ID: 1, Title: "Support", CurrencyType: catalog.CurrencyRp, AppIDs: []int64{1}}},
	}
	repo := catalog.NewMemory()
	require.NoError(t, fx.Apply(context.Background(), repo))

	logger := log.New(io.Discard)
	streams := config.NewAllowList(
		config.StreamEntry{Name: "sp", DisplayName: "Sales Platform"},
		config.StreamEntry{Name: "mi"},
		config.StreamEntry{Name: "gone"},
	)
	layouts := layout.NewLayouts(layout.NewMemoryStore(), layout.CatalogResolver(repo), logger)
	srv := New(Deps{
		Catalog:  repo,
		Diagrams: diagram.NewService(repo, layouts, streams, logger),
		Admin:    admin.New(repo, layouts, logger),
		Streams:  streams,
		Logger:   logger,
	})
	return srv, repo
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, "ok", decode[healthResponse](t, rec).Status)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not a uuid")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid", rec.Header().Get(RequestIDHeader))
}

func TestStreams(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/streams", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[streamsResponse](t, rec)
	require.Len(t, got.Streams, 3)
	assert.Equal(t, "sp", got.Streams[0].Name)
	assert.Equal(t, "Sales Platform", got.Streams[0].DisplayName)
}

func TestStreamDiagram(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/diagrams/streams/sp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[diagram.Data](t, rec)
	assert.Empty(t, d.Error)
	require.Len(t, d.Nodes, 5)
	assert.Equal(t, "sp", d.Nodes[0].ID)
	assert.Equal(t, "Sales Platform", d.Nodes[0].Data.Label)
	assert.Equal(t, "sp", d.Nodes[1].ParentNode)
	assert.Len(t, d.Edges, 2)

	rec = do(t, s, http.MethodGet, "/api/diagrams/streams/sp?admin=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d = decode[diagram.Data](t, rec)
	assert.Empty(t, d.Nodes[1].ParentNode)
}

func TestStreamDiagramErrors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/diagrams/streams/ops", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "STREAM_NOT_ALLOWED", string(body.Error.Code))

	// Allowed but absent from the catalog renders an empty diagram.
	rec = do(t, s, http.MethodGet, "/api/diagrams/streams/gone", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	d := decode[diagram.Data](t, rec)
	assert.NotEmpty(t, d.Error)
	assert.Empty(t, d.Nodes)

	rec = do(t, s, http.MethodGet, "/api/diagrams/streams/sp?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/diagrams/streams/sp?format=gif", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamDiagramDOT(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/diagrams/streams/sp?format=dot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/vnd.graphviz", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `subgraph "cluster_sp"`)
	assert.Contains(t, rec.Body.String(), `"3" -> "1"`)
}

func TestSaveStreamLayout(t *testing.T) {
	s, _ := newTestServer(t)

	req := layoutRequest{
		NodesLayout: map[string]layout.NodeLayout{
			"1": {Position: &layout.Position{X: 120, Y: 80}},
			"9": {Position: &layout.Position{X: 1, Y: 1}},
		},
		EdgesLayout: []layout.EdgeLayout{{ID: "3-1", Style: map[string]any{"stroke": "#333"}}},
		Config:      map[string]any{"totalNodes": 2, "zoom": 0.5},
	}
	rec := do(t, s, http.MethodPut, "/api/diagrams/streams/sp/layout", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[layout.Layout](t, rec)
	assert.Equal(t, layout.StreamKey(1), saved.Key)
	assert.False(t, saved.UpdatedAt.IsZero())

	rec = do(t, s, http.MethodGet, "/api/diagrams/streams/sp", nil)
	d := decode[diagram.Data](t, rec)
	n, ok := (&diagram.Graph{Nodes: d.Nodes}).Node("1")
	require.True(t, ok)
	assert.Equal(t, diagram.Position{X: 120, Y: 80}, *n.Position)
	_, ok = (&diagram.Graph{Nodes: d.Nodes}).Node("9")
	assert.False(t, ok)
	assert.Equal(t, float64(5), d.Config["totalNodes"])
	assert.Equal(t, 0.5, d.Config["zoom"])

	rec = do(t, s, http.MethodPut, "/api/diagrams/streams/sp/layout", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/diagrams/streams/ops/layout", req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/diagrams/apps/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[diagram.Data](t, rec)
	assert.Len(t, d.Nodes, 3)

	rec = do(t, s, http.MethodGet, "/api/diagrams/apps/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/diagrams/apps/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/diagrams/apps/1/layout", layoutRequest{
		NodesLayout: map[string]layout.NodeLayout{"3": {Position: &layout.Position{X: 5, Y: 6}}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, layout.AppKey(1), decode[layout.Layout](t, rec).Key)

	rec = do(t, s, http.MethodGet, "/api/apps/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var app map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, "Billing", app["name"])
	assert.Equal(t, "sp", app["stream_name"])
	assert.Len(t, app["contracts"], 1)
	assert.Len(t, app["tech_stack"], 1)
}

func TestDeleteEndpoints(t *testing.T) {
	s, repo := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/diagrams/streams/sp/layout", layoutRequest{
		NodesLayout: map[string]layout.NodeLayout{"5": {Position: &layout.Position{X: 120, Y: 80}}},
		EdgesLayout: []layout.EdgeLayout{{ID: "5-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/connection-types/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/apps/5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, deleteResponse{Deleted: "app:5", LayoutsChanged: 1}, decode[deleteResponse](t, rec))

	rec = do(t, s, http.MethodGet, "/api/diagrams/streams/sp", nil)
	d := decode[diagram.Data](t, rec)
	for _, n := range d.Nodes {
		assert.NotEqual(t, "5", n.ID)
	}
	require.NotNil(t, d.Layout)
	assert.NotContains(t, d.Layout.NodesLayout, "5")

	rec = do(t, s, http.MethodDelete, "/api/apps/5", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/integrations/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/connection-types/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/streams/mi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := repo.StreamByName(context.Background(), "mi")
	assert.Error(t, err)
}

func TestNotFoundRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", string(decode[errorBody](t, rec).Error.Code))
}

type httpRecorder struct {
	observability.NoopHTTPHooks
	mu     sync.Mutex
	routes []string
}

func (h *httpRecorder) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
}

func TestAccessLogReportsRoutePattern(t *testing.T) {
	hooks := &httpRecorder{}
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)

	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/api/diagrams/apps/1", nil)
	do(t, s, http.MethodGet, "/api/diagrams/apps/3", nil)

	assert.Equal(t, []string{
		"GET /api/diagrams/apps/{id}",
		"GET /api/diagrams/apps/{id}",
	}, hooks.routes)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := prom.New(reg)
	observability.SetHTTPHooks(m)
	t.Cleanup(observability.Reset)

	s, _ := newTestServer(t)
	s = New(Deps{
		Catalog:  s.deps.Catalog,
		Diagrams: s.deps.Diagrams,
		Admin:    s.deps.Admin,
		Streams:  s.deps.Streams,
		Logger:   s.logger,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	do(t, s, http.MethodGet, "/healthz", nil)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `appmap_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
