// Package server exposes generation, execution, reporting and history
// over HTTP.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yourorg/featuregen/internal/config"
	"github.com/yourorg/featuregen/internal/generator"
	"github.com/yourorg/featuregen/internal/report"
	"github.com/yourorg/featuregen/internal/runner"
	"github.com/yourorg/featuregen/internal/store"
	"github.com/yourorg/featuregen/pkg/types"
)

var (
	//go:embed index.html
	indexHTML string

	indexTemplate = template.Must(template.New("index").Parse(indexHTML))
)

// Publisher stores a rendered report somewhere durable and returns its
// location.
type Publisher interface {
	Publish(ctx context.Context, runID string, a *report.Artifact, now time.Time) (string, error)
}

// Server wraps the UI page and API handlers.
type Server struct {
	cfg       *config.Config
	gen       *generator.Controller
	engine    *runner.Engine
	store     store.Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	router    *mux.Router
}

// Option customizes a Server.
type Option func(*Server)

// WithPublisher uploads every downloaded report through p.
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New constructs a Server with routes registered.
func New(cfg *config.Config, gen *generator.Controller, engine *runner.Engine, st store.Store, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if gen == nil {
		return nil, errors.New("generator is nil")
	}
	if engine == nil {
		return nil, errors.New("engine is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	s := &Server{
		cfg:    cfg,
		gen:    gen,
		engine: engine,
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("server listening", "addr", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(s.cors, s.logRequests)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api-status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/generate-test-cases", s.handleGenerate).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/run-rest-assured", s.handleCall).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/run-automation-script", s.handleRun).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/download-report", s.handleDownload).Methods(http.MethodPost, http.MethodOptions)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generations", s.handleListGenerations).Methods(http.MethodGet)
	api.HandleFunc("/generations/{id}", s.handleGetGeneration).Methods(http.MethodGet)
	api.HandleFunc("/generations/{id}", s.handleDeleteGeneration).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
}

func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.Server.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Report-Location")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

type indexData struct {
	PrimaryMethod string
	Operations    []types.Operation
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := indexData{
		PrimaryMethod: s.gen.Caps.Report().PrimaryMethod,
		Operations:    []types.Operation{types.OperationPositive, types.OperationNegative, types.OperationBoth},
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.gen.Caps.Report())
}

// statusFor maps handler errors onto HTTP status codes.
func statusFor(err error) int {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, generator.ErrNoRequirement),
		errors.Is(err, types.ErrInvalidOperation),
		errors.Is(err, runner.ErrUnsupportedMethod),
		errors.Is(err, runner.ErrNoEndpoint),
		errors.Is(err, errBadRequest),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, generator.ErrModelLoading), errors.Is(err, runner.ErrConnection):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
