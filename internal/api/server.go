// Package api exposes the HTTP interface for the favicon service.
package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/favicond/favicond/internal/favicon"
	"github.com/favicond/favicond/internal/metrics"
)

// IconProvider answers favicon requests; satisfied by service.Service.
type IconProvider interface {
	Get(ctx context.Context, hostOrURL string, size int) (favicon.Result, error)
}

// Config controls the HTTP shell.
type Config struct {
	// SelfPath is the service's own icon path, answered without invoking
	// the pipeline so the service never tries to be its own icon source.
	SelfPath string
	// DefaultSize is used when the size query parameter is absent.
	DefaultSize int
	// DefaultImage, if set, is streamed for the self path.
	DefaultImage string
}

// Server wires HTTP handlers to the icon provider.
type Server struct {
	router chi.Router
	icons  IconProvider
	logger *zap.Logger
	cfg    Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(icons IconProvider, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SelfPath == "" {
		cfg.SelfPath = "/favicon.ico"
	}
	if cfg.DefaultSize <= 0 {
		cfg.DefaultSize = 16
	}
	s := &Server{
		icons:  icons,
		logger: logger,
		cfg:    cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get(cfg.SelfPath, s.selfIcon)
	r.Get("/*", s.icon)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// selfIcon short-circuits requests for the service's own icon.
func (s *Server) selfIcon(w http.ResponseWriter, r *http.Request) {
	s.serveResult(w, r, favicon.Result{Path: s.cfg.DefaultImage, ContentType: "image/png"})
}

func (s *Server) icon(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimPrefix(r.URL.Path, "/")
	size := s.cfg.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			size = parsed
		}
	}

	res, err := s.icons.Get(r.Context(), target, size)
	if err != nil {
		// The pipeline absorbs its own failures; an error here is a
		// programming bug, still answered with the empty body contract.
		s.logger.Error("icon lookup failed", zap.String("target", target), zap.Error(err))
		res = favicon.Result{}
	}
	s.serveResult(w, r, res)
}

// serveResult streams the result file, or an empty 200 when there is none.
func (s *Server) serveResult(w http.ResponseWriter, r *http.Request, res favicon.Result) {
	if res.Path == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := os.Stat(res.Path); err != nil {
		s.logger.Warn("result file unreadable", zap.String("path", res.Path), zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	http.ServeFile(w, r, res.Path)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, ww.status, duration)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
