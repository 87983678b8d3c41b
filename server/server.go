// Package server exposes an ArchMesh over HTTP and WebSocket.
//
// Routes:
//
//	GET    /healthz                                liveness and registered providers
//	GET    /metrics                                Prometheus metrics (when enabled)
//	POST   /v1/analyze?conversation_id=            encoded image body -> RoomAnalysis
//	POST   /v1/intent                              {"utterance"} -> Intent
//	POST   /v1/ask                                 {"conversation_id","message","image"} -> merged response
//	POST   /v1/decide                              {"conversation_id","question","options","roles"} -> decision
//	DELETE /v1/conversations/{id}/history?role=    clear history
//	GET    /v1/ws                                  streamed turns
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/archmesh"
	"github.com/hupe1980/archmesh/logging"
	"github.com/hupe1980/archmesh/metrics"
)

// defaultMaxRequestBodySize bounds request bodies (10MB).
const defaultMaxRequestBodySize = 10 << 20

// Options configures a Server.
type Options struct {
	// MaxRequestBodySize bounds JSON and image bodies.
	MaxRequestBodySize int64
	// CheckOrigin validates websocket origins; defaults to allowing all.
	CheckOrigin func(r *http.Request) bool
	Logger      logging.Logger
}

// Server is the HTTP transport of an ArchMesh.
type Server struct {
	mesh     *archmesh.ArchMesh
	metrics  *metrics.Recorder
	router   chi.Router
	upgrader websocket.Upgrader
	maxBody  int64
	logger   *logging.StructuredLogger
}

// New creates a server and registers its routes.
func New(mesh *archmesh.ArchMesh, optFns ...func(o *Options)) *Server {
	opts := Options{MaxRequestBodySize: defaultMaxRequestBodySize}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}

	s := &Server{
		mesh:     mesh,
		metrics:  mesh.Metrics(),
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		maxBody:  opts.MaxRequestBodySize,
		logger:   logging.NewStructuredLogger(logging.OrNoOp(opts.Logger)).WithComponent("server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.observe)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/intent", s.handleIntent)
		r.Post("/ask", s.handleAsk)
		r.Post("/decide", s.handleDecide)
		r.Delete("/conversations/{id}/history", s.handleReset)
		r.Get("/ws", s.handleWebSocket)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("server.shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

// observe logs and records every request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		dur := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, status, dur)
		}
		s.logger.Debug("server.request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", dur,
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}
