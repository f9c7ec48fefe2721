package config

import (
	"testing"
	"time"
)

// TestDefaults verifies the documented protocol defaults
func TestDefaults(t *testing.T) {
	cfg := DefaultNet()
	if cfg.Addr() != "127.0.0.1:5000" {
		t.Errorf("Expected default addr 127.0.0.1:5000, got %s", cfg.Addr())
	}
	if cfg.MaxReconnects != 0 {
		t.Errorf("Reconnect should be disabled by default, got %d", cfg.MaxReconnects)
	}

	limits := DefaultLimits()
	if limits.FramerCapacity != 4096 {
		t.Errorf("Expected framer capacity 4096, got %d", limits.FramerCapacity)
	}
}

// TestNetFromEnv verifies environment overrides
func TestNetFromEnv(t *testing.T) {
	t.Setenv("SERVER_HOST", "10.0.0.2")
	t.Setenv("SERVER_PORT", "6000")
	t.Setenv("READ_TIMEOUT", "100ms")
	t.Setenv("IDLE_TIMEOUT", "3000")
	t.Setenv("MAX_RECONNECTS", "3")

	cfg := NetFromEnv()
	if cfg.Addr() != "10.0.0.2:6000" {
		t.Errorf("Expected 10.0.0.2:6000, got %s", cfg.Addr())
	}
	if cfg.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Expected 100ms read timeout, got %v", cfg.ReadTimeout)
	}
	if cfg.IdleTimeout != 3*time.Second {
		t.Errorf("Expected bare integer to be milliseconds, got %v", cfg.IdleTimeout)
	}
	if cfg.MaxReconnects != 3 {
		t.Errorf("Expected 3 reconnects, got %d", cfg.MaxReconnects)
	}
}

// TestInvalidEnvFallsBack verifies garbage values keep defaults
func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("MAX_CREATURES", "-4")
	t.Setenv("COMMAND_RATE", "fast")

	if got := NetFromEnv().Port; got != 5000 {
		t.Errorf("Expected default port, got %d", got)
	}
	if got := LimitsFromEnv().MaxCreatures; got != 32 {
		t.Errorf("Expected default creature cap, got %d", got)
	}
	if got := CommandFromEnv().Rate; got != 60 {
		t.Errorf("Expected default command rate, got %v", got)
	}
}
