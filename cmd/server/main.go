package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rusthing/capturer/internal/app"
	"github.com/rusthing/capturer/internal/ffmpegrun"
	"github.com/rusthing/capturer/internal/ffprobe"
	"github.com/rusthing/capturer/internal/httpapi"
	"github.com/rusthing/capturer/internal/metrics"
	"github.com/rusthing/capturer/internal/stream"
	"github.com/rusthing/capturer/internal/telemetry"
	"github.com/rusthing/capturer/internal/upload"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "capturer")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "capturer"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("ffmpegPath", cfg.FFmpegPath),
		slog.String("ffprobePath", cfg.FFProbePath),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prober := ffprobe.New(cfg.FFProbePath)
	registry := stream.NewRegistry(stream.Config{
		BusCapacity:        cfg.ChannelCapacity,
		ReadBufferSize:     cfg.ReadBufferSize,
		IdleDetectInterval: cfg.ReceiverCountCheckInterval,
		SweepInterval:      cfg.TimeoutCheckInterval,
		IdleTimeout:        cfg.TimeoutPeriod,
		FFmpegPath:         cfg.FFmpegPath,
	}, prober, ffmpegrun.SpawnStreaming)
	defer registry.Close()

	uploader := newUploader(cfg, logger)

	handler := httpapi.NewServer(registry, uploader, logger, httpapi.Config{
		FFmpegPath:         cfg.FFmpegPath,
		DefaultJPEGQuality: cfg.OSSJpegQuality,
		DefaultBucket:      cfg.OSSBucket,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// newUploader picks the object-storage collaborator based on configuration:
// a bucket with no local dir configured still runs, degrading to the noop
// uploader the same way internal/telemetry.Init degrades when tracing is
// unconfigured.
func newUploader(cfg app.Config, logger *slog.Logger) upload.Uploader {
	if strings.TrimSpace(cfg.OSSLocalDir) == "" {
		logger.Info("OSS_LOCAL_DIR not set, using noop uploader")
		return upload.NoopUploader{}
	}
	logger.Info("using file uploader", slog.String("baseDir", cfg.OSSLocalDir))
	return upload.NewFileUploader(cfg.OSSLocalDir)
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
