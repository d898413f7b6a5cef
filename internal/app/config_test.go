package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.ReadBufferSize != 65536 {
		t.Errorf("ReadBufferSize = %d, want 65536", cfg.ReadBufferSize)
	}
	if cfg.ChannelCapacity != 500 {
		t.Errorf("ChannelCapacity = %d, want 500", cfg.ChannelCapacity)
	}
	if cfg.ReceiverCountCheckInterval != 5*time.Second {
		t.Errorf("ReceiverCountCheckInterval = %v, want 5s", cfg.ReceiverCountCheckInterval)
	}
	if cfg.TimeoutCheckInterval != 60*time.Second {
		t.Errorf("TimeoutCheckInterval = %v, want 60s", cfg.TimeoutCheckInterval)
	}
	if cfg.TimeoutPeriod != 1800*time.Second {
		t.Errorf("TimeoutPeriod = %v, want 1800s", cfg.TimeoutPeriod)
	}
	if cfg.OSSJpegQuality != 5 {
		t.Errorf("OSSJpegQuality = %d, want 5", cfg.OSSJpegQuality)
	}
	if cfg.RateLimitRPS != 20 {
		t.Errorf("RateLimitRPS = %v, want 20", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 40 {
		t.Errorf("RateLimitBurst = %d, want 40", cfg.RateLimitBurst)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CMD_CHANNEL_CAPACITY", "1000")
	t.Setenv("SESSION_TIMEOUT_PERIOD", "60")
	t.Setenv("OSS_BUCKET", "snapshots")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.ChannelCapacity != 1000 {
		t.Errorf("ChannelCapacity = %d, want 1000", cfg.ChannelCapacity)
	}
	if cfg.TimeoutPeriod != 60*time.Second {
		t.Errorf("TimeoutPeriod = %v, want 60s", cfg.TimeoutPeriod)
	}
	if cfg.OSSBucket != "snapshots" {
		t.Errorf("OSSBucket = %q, want snapshots", cfg.OSSBucket)
	}
}

func TestGetEnvInt64_InvalidOrNegative_FallsBack(t *testing.T) {
	t.Setenv("CMD_CHANNEL_CAPACITY", "not-a-number")
	t.Setenv("CMD_READ_BUFFER_SIZE", "-1")
	cfg := LoadConfig()
	if cfg.ChannelCapacity != 500 {
		t.Errorf("ChannelCapacity = %d, want fallback 500", cfg.ChannelCapacity)
	}
	if cfg.ReadBufferSize != 65536 {
		t.Errorf("ReadBufferSize = %d, want fallback 65536", cfg.ReadBufferSize)
	}
}
