package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/appmap/pkg/buildinfo"
	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/layout"
	"github.com/matzehuels/appmap/pkg/render"
	"github.com/matzehuels/appmap/pkg/render/nodelink"
)

// =============================================================================
// Meta
// =============================================================================

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Current()})
}

type streamsResponse struct {
	Streams []config.StreamEntry `json:"streams"`
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, streamsResponse{Streams: s.deps.Streams.ListAllowedStreams()})
}

// =============================================================================
// Diagrams
// =============================================================================

func (s *Server) handleStreamDiagram(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := errors.ValidateStreamName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	format, opts, err := exportOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.deps.Diagrams.Stream(r.Context(), name, diagram.BuildOptions{Admin: boolParam(r, "admin")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDiagram(w, r, d, format, opts)
}

func (s *Server) handleAppDiagram(w http.ResponseWriter, r *http.Request) {
	id, err := errors.ParseID("app", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, opts, err := exportOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.deps.Diagrams.App(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeDiagram(w, r, d, format, opts)
}

func (s *Server) writeDiagram(w http.ResponseWriter, r *http.Request, d *diagram.Data, format render.Format, opts nodelink.Options) {
	if format == render.FormatJSON {
		writeJSON(w, http.StatusOK, d)
		return
	}
	out, err := nodelink.Export(r.Context(), d, format, opts)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "render %s", format))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func exportOptions(r *http.Request) (render.Format, nodelink.Options, error) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return "", nodelink.Options{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "unsupported format")
	}
	if format == render.FormatPDF || format == render.FormatPNG {
		return "", nodelink.Options{}, errors.New(errors.ErrCodeInvalidInput, "format %s is only available from the CLI", format)
	}
	return format, nodelink.Options{
		Detailed: boolParam(r, "detailed"),
		Pinned:   boolParam(r, "pinned"),
	}, nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// =============================================================================
// Layouts
// =============================================================================

// layoutRequest is the editable part of a layout. Key and timestamp are
// assigned by the server.
type layoutRequest struct {
	NodesLayout map[string]layout.NodeLayout `json:"nodes_layout"`
	EdgesLayout []layout.EdgeLayout          `json:"edges_layout"`
	Config      map[string]any               `json:"config"`
}

func (req layoutRequest) toLayout() *layout.Layout {
	return &layout.Layout{
		NodesLayout: req.NodesLayout,
		EdgesLayout: req.EdgesLayout,
		Config:      req.Config,
	}
}

func decodeLayout(w http.ResponseWriter, r *http.Request) (*layout.Layout, error) {
	var req layoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid layout body")
	}
	return req.toLayout(), nil
}

func (s *Server) handleSaveStreamLayout(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := errors.ValidateStreamName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := decodeLayout(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Diagrams.SaveStreamLayout(r.Context(), name, l)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleSaveAppLayout(w http.ResponseWriter, r *http.Request) {
	id, err := errors.ParseID("app", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := decodeLayout(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Diagrams.SaveAppLayout(r.Context(), id, l)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// =============================================================================
// Catalog
// =============================================================================

type appResponse struct {
	*catalog.App
	TechStack catalog.TechStack  `json:"tech_stack"`
	Contracts []catalog.Contract `json:"contracts"`
}

func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	id, err := errors.ParseID("app", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.deps.Catalog.App(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contracts, err := s.deps.Catalog.Contracts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "load contracts of app %d", id))
		return
	}
	if contracts == nil {
		contracts = []catalog.Contract{}
	}
	writeJSON(w, http.StatusOK, appResponse{App: app, TechStack: app.TechStack(), Contracts: contracts})
}

type deleteResponse struct {
	Deleted        string `json:"deleted"`
	LayoutsChanged int    `json:"layouts_changed"`
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id, err := errors.ParseID("app", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := s.deps.Admin.DeleteApp(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: "app:" + strconv.FormatInt(id, 10), LayoutsChanged: changed})
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	changed, err := s.deps.Admin.DeleteStream(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: "stream:" + name, LayoutsChanged: changed})
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := errors.ParseID("integration", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := s.deps.Admin.DeleteIntegration(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: "integration:" + strconv.FormatInt(id, 10), LayoutsChanged: changed})
}

func (s *Server) handleDeleteConnectionType(w http.ResponseWriter, r *http.Request) {
	id, err := errors.ParseID("connection type", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Admin.DeleteConnectionType(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: "connection_type:" + strconv.FormatInt(id, 10)})
}
