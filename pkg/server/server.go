// Package server assembles the public HTTP surface: health checks and the image route.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"imgproxy/pkg/obs/accesslog"
	"imgproxy/pkg/obs/metrics"
	"imgproxy/pkg/obs/tracing"
)

// Options configures New. Images is required; the rest may be zero.
type Options struct {
	Images       http.Handler
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Console      io.Writer // colored access lines; nil disables
	TraceKeyHash bool
}

// Server owns the router and the readiness flag behind /readyz.
type Server struct {
	router chi.Router
	ready  atomic.Bool
}

// New builds the router. Health checks bypass the request middleware; every other
// path and method reaches opt.Images. /metrics lives on the admin listener.
func New(opt Options) *Server {
	s := &Server{router: chi.NewRouter()}
	r := s.router

	r.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Group(func(r chi.Router) {
		r.Use(accesslog.RequestID)
		r.Use(accesslog.Middleware(opt.Logger, opt.Console))
		r.Use(func(next http.Handler) http.Handler {
			return tracing.Middleware(next, opt.TraceKeyHash)
		})
		if opt.Metrics != nil {
			r.Use(opt.Metrics.Middleware)
		}
		r.Use(middleware.Recoverer)
		r.Handle("/*", opt.Images)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// SetReady flips the /readyz answer.
func (s *Server) SetReady(v bool) { s.ready.Store(v) }

// Ready reports the current readiness.
func (s *Server) Ready() bool { return s.ready.Load() }
