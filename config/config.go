package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is built once at process
// start and passed explicitly; nothing reads the environment after Load.
type Config struct {
	Fetch     FetchConfig
	Image     ImageConfig
	Batch     BatchConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// FetchConfig controls the two-tier fetch orchestration.
type FetchConfig struct {
	// StaticTimeout is the deadline for the lightweight HTTP path.
	StaticTimeout time.Duration // default: 20s

	// RenderTimeout is the deadline for a rendered-browser fetch.
	RenderTimeout time.Duration // default: 30s

	// SettleDelay is the fixed wait after navigation before the rendered
	// DOM is captured, giving client-side rendering time to finish.
	SettleDelay time.Duration // default: 500ms

	// DisableRenderer turns the rendered-browser path off entirely.
	DisableRenderer bool // default: false

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth enables anti-bot-detection evasions on rendered fetches.
	Stealth bool // default: true

	// UserAgent is sent on every lightweight fetch and image download.
	UserAgent string
}

// ImageConfig controls image download and preparation.
type ImageConfig struct {
	// TargetWidth is the pixel width prepared images are resized to.
	TargetWidth int // default: 100

	// DownloadTimeout is the deadline for fetching the image bytes.
	DownloadTimeout time.Duration // default: 15s

	// MaxBytes caps the downloaded image size.
	MaxBytes int64 // default: 20 MB

	// JPEGQuality is the encoder quality for JPEG output.
	JPEGQuality int // default: 85
}

// BatchConfig controls the spreadsheet batch runner.
type BatchConfig struct {
	// RowDelay is the politeness pause between rows. Not part of the
	// resolution logic itself.
	RowDelay time.Duration // default: 1s
}

// ServerConfig controls the optional resolve API server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Fetch: FetchConfig{
			StaticTimeout:   envDurationOr("SCRAPIMG_STATIC_TIMEOUT", 20*time.Second),
			RenderTimeout:   envDurationOr("SCRAPIMG_RENDER_TIMEOUT", 30*time.Second),
			SettleDelay:     envDurationOr("SCRAPIMG_SETTLE_DELAY", 500*time.Millisecond),
			DisableRenderer: envBoolOr("SCRAPIMG_NO_RENDERER", false),
			Headless:        envBoolOr("SCRAPIMG_HEADLESS", true),
			NoSandbox:       envBoolOr("SCRAPIMG_NO_SANDBOX", false),
			BrowserBin:      os.Getenv("SCRAPIMG_BROWSER_BIN"),
			Stealth:         envBoolOr("SCRAPIMG_STEALTH", true),
			UserAgent:       envOr("SCRAPIMG_USER_AGENT", defaultUserAgent),
		},
		Image: ImageConfig{
			TargetWidth:     envIntOr("SCRAPIMG_IMAGE_WIDTH", 100),
			DownloadTimeout: envDurationOr("SCRAPIMG_IMAGE_TIMEOUT", 15*time.Second),
			MaxBytes:        int64(envIntOr("SCRAPIMG_IMAGE_MAX_BYTES", 20<<20)),
			JPEGQuality:     envIntOr("SCRAPIMG_JPEG_QUALITY", 85),
		},
		Batch: BatchConfig{
			RowDelay: envDurationOr("SCRAPIMG_ROW_DELAY", time.Second),
		},
		Server: ServerConfig{
			Host: envOr("SCRAPIMG_HOST", "0.0.0.0"),
			Port: envIntOr("SCRAPIMG_PORT", 8080),
			Mode: envOr("SCRAPIMG_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCRAPIMG_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCRAPIMG_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCRAPIMG_RATE_RPS", 2.0),
			Burst:             envIntOr("SCRAPIMG_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("SCRAPIMG_LOG_LEVEL", "info"),
			Format: envOr("SCRAPIMG_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
