// Package server exposes the collector's live view over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/sink"
	"github.com/HerbHall/telerelay/internal/version"
)

const (
	versionHeader   = "X-Telerelay-Version"
	streamWriteWait = 5 * time.Second
)

// Server serves health, metrics and telemetry endpoints.
type Server struct {
	httpServer *http.Server
	live       *sink.Live
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a Server reading from live and exposing gatherer on /metrics.
func New(addr string, live *sink.Live, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		// No WriteTimeout: websocket streams stay open for the life of the
		// collector. Stream writes carry their own deadline.
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		live:     live,
		gatherer: gatherer,
		logger:   logger.Named("http"),
		mux:      mux,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /api/v1/telemetry/latest", s.handleLatest)
	s.mux.HandleFunc("GET /api/v1/telemetry/series", s.handleSeries)
	s.mux.HandleFunc("GET /api/v1/telemetry/stream", s.handleStream)
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve accepts HTTP connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, ok := s.live.Latest()
	writeJSON(w, map[string]any{
		"status":      "ok",
		"service":     "telerelay",
		"version":     version.Map(),
		"has_samples": ok,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.live.Latest()
	if !ok {
		NotFound(w, "no telemetry received yet", r.URL.Path)
		return
	}
	writeJSON(w, sample)
}

// handleSeries returns one point list per series. ?limit=N keeps the newest N.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			BadRequest(w, fmt.Sprintf("limit must be a non-negative integer, got %q", raw), r.URL.Path)
			return
		}
		limit = n
	}
	writeJSON(w, s.live.Series(limit))
}

// handleStream upgrades to a websocket and pushes the latest sample followed
// by every new one as JSON text messages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer c.CloseNow()

	samples, unsubscribe := s.live.Subscribe()
	defer unsubscribe()

	ctx := c.CloseRead(r.Context())
	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Debug("stream client connected")

	if latest, ok := s.live.Latest(); ok {
		if err := writeSample(ctx, c, latest); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("stream client gone")
			return
		case sample := <-samples:
			if err := writeSample(ctx, c, sample); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func writeSample(ctx context.Context, c *websocket.Conn, sample sink.Sample) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return wsjson.Write(ctx, c, sample)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(versionHeader, version.Short())
	_ = json.NewEncoder(w).Encode(v)
}
