// Package server exposes the diagram and layout operations over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/streams
//	GET    /api/diagrams/streams/{name}          ?admin=true&format=json|dot|svg
//	PUT    /api/diagrams/streams/{name}/layout
//	GET    /api/diagrams/apps/{id}               ?format=json|dot|svg
//	PUT    /api/diagrams/apps/{id}/layout
//	GET    /api/apps/{id}
//	DELETE /api/apps/{id}
//	DELETE /api/streams/{name}
//	DELETE /api/integrations/{id}
//	DELETE /api/connection-types/{id}
//
// Errors are written as {"error": {"code": ..., "message": ...}} with the
// status mapped from the error code. A diagram that failed to load is not
// an HTTP error: it is served with status 200 and its error field set.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/appmap/pkg/admin"
	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/errors"
)

// maxBodyBytes bounds layout request bodies.
const maxBodyBytes = 4 << 20

// Deps are the collaborators the handlers call into.
type Deps struct {
	Catalog  catalog.Reader
	Diagrams *diagram.Service
	Admin    *admin.Coordinator
	Streams  *config.AllowList
	Logger   *log.Logger

	// Metrics serves /metrics. Nil uses the default Prometheus registry.
	Metrics http.Handler
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
	logger *log.Logger
}

// New builds the router. A nil logger uses log.Default().
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Streams == nil {
		deps.Streams = config.NewAllowList()
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	s := &Server{deps: deps, logger: deps.Logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/streams", s.handleStreams)
		r.Delete("/streams/{name}", s.handleDeleteStream)

		r.Route("/diagrams", func(r chi.Router) {
			r.Get("/streams/{name}", s.handleStreamDiagram)
			r.Put("/streams/{name}/layout", s.handleSaveStreamLayout)
			r.Get("/apps/{id}", s.handleAppDiagram)
			r.Put("/apps/{id}/layout", s.handleSaveAppLayout)
		})

		r.Get("/apps/{id}", s.handleApp)
		r.Delete("/apps/{id}", s.handleDeleteApp)
		r.Delete("/integrations/{id}", s.handleDeleteIntegration)
		r.Delete("/connection-types/{id}", s.handleDeleteConnectionType)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: errors.ErrCodeNotFound, Message: "no such route"}})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
