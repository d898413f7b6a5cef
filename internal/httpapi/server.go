// Package httpapi is the HTTP surface over the stream registry: the live
// FLV fan-out route, the one-shot JPEG capture route, Prometheus metrics,
// and an admin websocket for observing live sessions. Grounded on
// internal/api/http/server.go's ServerOption/NewServer construction and
// middleware chaining from the torrent-engine service this was adapted from.
package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rusthing/capturer/internal/capture"
	"github.com/rusthing/capturer/internal/stream"
	"github.com/rusthing/capturer/internal/upload"
)

// Server wires the stream registry, the capture path, and the object
// storage uploader into a single http.Handler.
type Server struct {
	registry      *stream.Registry
	uploader      upload.Uploader
	ffmpegPath    string
	jpegQuality   int
	defaultBucket string

	logger  *slog.Logger
	wsHub   *wsHub
	handler http.Handler
}

// Config holds the pieces NewServer needs beyond the registry itself.
type Config struct {
	FFmpegPath         string
	DefaultJPEGQuality int
	DefaultBucket      string
	RateLimitRPS       float64
	RateLimitBurst     int
}

func NewServer(registry *stream.Registry, uploader upload.Uploader, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry:      registry,
		uploader:      uploader,
		ffmpegPath:    cfg.FFmpegPath,
		jpegQuality:   capture.ClampQuality(cfg.DefaultJPEGQuality),
		defaultBucket: cfg.DefaultBucket,
		logger:        logger,
	}

	s.wsHub = newWSHub(logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/capturer/stream.live.flv", s.handleStreamLiveFLV)
	mux.HandleFunc("/capturer/capture_to_jpeg", s.handleCaptureToJPEG)
	mux.HandleFunc("/capturer/admin/sessions.ws", s.handleAdminSessionsWS)
	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "capturer",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)

	rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}

	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(rps, burst, metricsMiddleware(corsMiddleware(traced))))

	go s.pollSessions()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close shuts down the admin websocket hub. It does not close the
// registry, which callers own independently.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// pollSessions pushes a fresh registry snapshot to admin websocket
// clients every 2s, for as long as the server exists.
func (s *Server) pollSessions() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.wsHub.BroadcastSessions(s.registry.Snapshot())
	}
}

func (s *Server) handleAdminSessionsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("admin ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 16),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
