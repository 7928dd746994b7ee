// Package api exposes the mapping operations over HTTP.
//
// Routes:
//
//	POST /schemas/infer           infer a schema from sample documents
//	POST /mappings/validate       validate rules against schemas
//	POST /transform               apply rules to one document
//	POST /upsert/reconcile        reconcile a document against candidates
//	POST /diff                    list field changes between two documents
//	POST /entities/{id}/documents process documents through the pipeline
//	GET  /health                  liveness and storage check
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/edtacey/jsonmapper/internal/pipeline"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 8 << 20

// Pinger checks a storage dependency for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the HTTP API.
type Server struct {
	proc       *pipeline.Processor
	batchLimit int
	pinger     Pinger
	logger     *slog.Logger
	router     *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithBatchLimit sets the concurrency of multi-document requests.
func WithBatchLimit(n int) Option {
	return func(s *Server) { s.batchLimit = n }
}

// WithPinger adds a storage check to /health.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server whose transformations and entity processing run
// through proc.
func New(proc *pipeline.Processor, opts ...Option) *Server {
	s := &Server{proc: proc, batchLimit: 4, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/schemas/infer", s.handleInfer).Methods(http.MethodPost)
	r.HandleFunc("/mappings/validate", s.handleValidate).Methods(http.MethodPost)
	r.HandleFunc("/transform", s.handleTransform).Methods(http.MethodPost)
	r.HandleFunc("/upsert/reconcile", s.handleReconcile).Methods(http.MethodPost)
	r.HandleFunc("/diff", s.handleDiff).Methods(http.MethodPost)
	r.HandleFunc("/entities/{id}/documents", s.handleDocuments).Methods(http.MethodPost)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	body := errorBody{Error: code}
	if err != nil {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// readJSON decodes a capped request body into v.
func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= 500 {
			level = slog.LevelError
		} else if rec.status >= 400 {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
