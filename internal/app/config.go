// Package app holds process-wide wiring concerns: configuration and
// (eventually) anything else every layer needs a handle to at startup.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the flat environment-variable configuration surface for the
// whole process, read once at startup in cmd/server.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	FFmpegPath  string
	FFProbePath string

	ReadBufferSize             int
	ChannelCapacity            int
	ReceiverCountCheckInterval time.Duration
	TimeoutCheckInterval       time.Duration
	TimeoutPeriod              time.Duration

	OSSBucket      string
	OSSJpegQuality int
	OSSLocalDir    string

	RateLimitRPS   float64
	RateLimitBurst int

	OTLPEndpoint     string
	TraceSampleRatio float64
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),

		ReadBufferSize:             int(getEnvInt64("CMD_READ_BUFFER_SIZE", 65536)),
		ChannelCapacity:            int(getEnvInt64("CMD_CHANNEL_CAPACITY", 500)),
		ReceiverCountCheckInterval: getEnvSeconds("CMD_RECEIVER_COUNT_CHECK_INTERVAL", 5*time.Second),
		TimeoutCheckInterval:       getEnvSeconds("SESSION_TIMEOUT_CHECK_INTERVAL", 60*time.Second),
		TimeoutPeriod:              getEnvSeconds("SESSION_TIMEOUT_PERIOD", 1800*time.Second),

		OSSBucket:      getEnv("OSS_BUCKET", ""),
		OSSJpegQuality: int(getEnvInt64("OSS_JPEG_QUALITY", 5)),
		OSSLocalDir:    getEnv("OSS_LOCAL_DIR", ""),

		RateLimitRPS:   getEnvFloat("HTTP_RATE_LIMIT_RPS", 20),
		RateLimitBurst: int(getEnvInt64("HTTP_RATE_LIMIT_BURST", 40)),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Second
}
