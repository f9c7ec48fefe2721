// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for connection, protocol and client settings.
//
// Every section has a Default* constructor and, where it makes sense, a *FromEnv
// variant where environment variables take precedence over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetConfig holds the game server endpoint and socket behaviour.
type NetConfig struct {
	Host           string        // Game server host
	Port           int           // Game server port
	DialTimeout    time.Duration // Max time to establish the TCP connection
	ReadChunk      int           // Bytes requested per socket read
	ReadTimeout    time.Duration // Per-read deadline; expiry is normal and flushes the pending frame
	IdleTimeout    time.Duration // No bytes for this long means the peer is dead
	WriteTimeout   time.Duration // Per-command write deadline
	MaxReconnects  int           // 0 disables reconnecting after a lost connection
	ReconnectDelay time.Duration // Initial backoff, doubled per attempt
}

// DefaultNet returns the default network configuration.
func DefaultNet() NetConfig {
	return NetConfig{
		Host:           "127.0.0.1",
		Port:           5000,
		DialTimeout:    5 * time.Second,
		ReadChunk:      2048,
		ReadTimeout:    250 * time.Millisecond,
		IdleTimeout:    15 * time.Second,
		WriteTimeout:   2 * time.Second,
		MaxReconnects:  0,
		ReconnectDelay: 500 * time.Millisecond,
	}
}

// NetFromEnv returns network configuration with environment variable overrides.
func NetFromEnv() NetConfig {
	cfg := DefaultNet()

	if h := os.Getenv("SERVER_HOST"); h != "" {
		cfg.Host = h
	}
	if p := getEnvInt("SERVER_PORT", 0); p > 0 {
		cfg.Port = p
	}
	if c := getEnvInt("READ_CHUNK", 0); c > 0 {
		cfg.ReadChunk = c
	}
	if d := getEnvDuration("DIAL_TIMEOUT", 0); d > 0 {
		cfg.DialTimeout = d
	}
	if d := getEnvDuration("READ_TIMEOUT", 0); d > 0 {
		cfg.ReadTimeout = d
	}
	if d := getEnvDuration("IDLE_TIMEOUT", 0); d > 0 {
		cfg.IdleTimeout = d
	}
	if d := getEnvDuration("WRITE_TIMEOUT", 0); d > 0 {
		cfg.WriteTimeout = d
	}
	if r := getEnvInt("MAX_RECONNECTS", -1); r >= 0 {
		cfg.MaxReconnects = r
	}
	if d := getEnvDuration("RECONNECT_DELAY", 0); d > 0 {
		cfg.ReconnectDelay = d
	}

	return cfg
}

// Addr returns host:port for dialing.
func (c NetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// =============================================================================
// PROTOCOL LIMITS
// =============================================================================

// ProtocolLimits bounds every buffer and collection fed by the server.
type ProtocolLimits struct {
	FramerCapacity int // Max bytes held while waiting for a newline
	MaxPlayers     int // Player slots addressable by id
	MaxCreatures   int // Creatures kept per frame, extras are dropped
	MaxItems       int // Items kept per frame, extras are dropped
}

// DefaultLimits returns the default protocol limits.
func DefaultLimits() ProtocolLimits {
	return ProtocolLimits{
		FramerCapacity: 4096,
		MaxPlayers:     4,
		MaxCreatures:   32,
		MaxItems:       32,
	}
}

// LimitsFromEnv returns protocol limits with environment variable overrides.
func LimitsFromEnv() ProtocolLimits {
	cfg := DefaultLimits()

	if v := getEnvInt("FRAMER_CAPACITY", 0); v > 0 {
		cfg.FramerCapacity = v
	}
	if v := getEnvInt("MAX_PLAYERS", 0); v > 0 {
		cfg.MaxPlayers = v
	}
	if v := getEnvInt("MAX_CREATURES", 0); v > 0 {
		cfg.MaxCreatures = v
	}
	if v := getEnvInt("MAX_ITEMS", 0); v > 0 {
		cfg.MaxItems = v
	}

	return cfg
}

// =============================================================================
// COMMAND CONFIGURATION
// =============================================================================

// CommandConfig throttles outbound commands. A zero Rate disables throttling.
type CommandConfig struct {
	Rate  float64 // Commands per second
	Burst int
}

// DefaultCommand returns the default command throttle.
func DefaultCommand() CommandConfig {
	return CommandConfig{
		Rate:  60,
		Burst: 30,
	}
}

// CommandFromEnv returns command configuration with environment variable overrides.
func CommandFromEnv() CommandConfig {
	cfg := DefaultCommand()

	if r := getEnvFloat("COMMAND_RATE", -1); r >= 0 {
		cfg.Rate = r
	}
	if b := getEnvInt("COMMAND_BURST", 0); b > 0 {
		cfg.Burst = b
	}

	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds the headless consumer settings.
type RenderConfig struct {
	FPS    int // Poll rate of the world snapshot
	Width  int // Raster width in pixels
	Height int // Raster height in pixels
}

// DefaultRender returns the default render configuration.
// Width and height match the server's playfield.
func DefaultRender() RenderConfig {
	return RenderConfig{
		FPS:    60,
		Width:  960,
		Height: 540,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()

	if fps := getEnvInt("RENDER_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}

	return cfg
}

// =============================================================================
// API CONFIGURATION
// =============================================================================

// APIConfig holds the status API settings.
type APIConfig struct {
	Enabled    bool
	Addr       string
	DebugAddr  string // pprof + /metrics, localhost only
	AdminToken string // Bearer token for POST /api/command; empty leaves it open
}

// DefaultAPI returns the default API configuration.
func DefaultAPI() APIConfig {
	return APIConfig{
		Enabled:   true,
		Addr:      "127.0.0.1:8090",
		DebugAddr: "127.0.0.1:6060",
	}
}

// APIFromEnv returns API configuration with environment variable overrides.
func APIFromEnv() APIConfig {
	cfg := DefaultAPI()

	if a := os.Getenv("API_ADDR"); a != "" {
		cfg.Addr = a
	}
	if a := os.Getenv("DEBUG_ADDR"); a != "" {
		cfg.DebugAddr = a
	}
	if os.Getenv("API_ENABLED") == "false" {
		cfg.Enabled = false
	}
	cfg.AdminToken = os.Getenv("API_TOKEN")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Net     NetConfig
	Limits  ProtocolLimits
	Command CommandConfig
	Render  RenderConfig
	API     APIConfig
	Debug   bool
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Net:     NetFromEnv(),
		Limits:  LimitsFromEnv(),
		Command: CommandFromEnv(),
		Render:  RenderFromEnv(),
		API:     APIFromEnv(),
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare integers are milliseconds
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
