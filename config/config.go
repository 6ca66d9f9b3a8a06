package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Site      SiteConfig
	Fetch     FetchConfig
	Resolver  ResolverConfig
	Listing   ListingConfig
	Batch     BatchConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000 (PORT or IFRAMER_PORT)
	Mode string // "debug", "release", "test"; default: "release"

	// DefaultLimit is the page size used when the caller omits ?limit.
	DefaultLimit int // default: 60
}

// SiteConfig describes the game-hosting site that gets special treatment.
type SiteConfig struct {
	// BaseURL is the site root. Item pages live at BaseURL/game/<slug>.
	BaseURL string // default: "https://www.crazygames.com"

	// EmbedTemplate builds the directly playable URL; "{slug}" is substituted.
	EmbedTemplate string // default: "https://games.crazygames.com/en_US/{slug}/index.html"
}

// FetchConfig controls the retrying HTTP fetcher.
type FetchConfig struct {
	// PageTimeout bounds a full-page GET attempt.
	PageTimeout time.Duration // default: 30s

	// MaxAttempts is the number of tries per fetch (first try included).
	MaxAttempts int // default: 3

	// BaseBackoff is the delay before the second attempt; it doubles after that.
	BaseBackoff time.Duration // default: 500ms

	// MaxBackoff caps a single backoff sleep.
	MaxBackoff time.Duration // default: 5s

	// MaxRedirects bounds redirect chains for page fetches.
	MaxRedirects int // default: 5

	// TLSFingerprint dials TLS with a Chrome ClientHello via utls.
	TLSFingerprint bool // default: true
}

// ResolverConfig controls the per-game embed resolver.
type ResolverConfig struct {
	ProbeTimeout    time.Duration // constructed-URL HEAD; default: 3s
	RedirectTimeout time.Duration // embed redirector GET; default: 4s
	PageTimeout     time.Duration // canonical game page GET; default: 6s
	ItemBudget      time.Duration // whole resolve; default: 8s
}

// ListingConfig controls category pagination.
type ListingConfig struct {
	MaxPages          int           // default: 6
	PageDelay         time.Duration // default: 1.5s
	FallbackThreshold int           // default: 5
}

// BatchConfig controls batch resolution pacing.
type BatchConfig struct {
	Size       int           // default: 3
	ItemDelay  time.Duration // default: 1s
	BatchDelay time.Duration // default: 3s
	Budget     time.Duration // default: 30s
}

// RateLimitConfig controls per-client rate limiting on the API.
type RateLimitConfig struct {
	// Enabled toggles the limiter.
	Enabled bool // default: true

	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per client IP.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         envOr("IFRAMER_HOST", "0.0.0.0"),
			Port:         envIntOr("PORT", envIntOr("IFRAMER_PORT", 3000)),
			Mode:         envOr("IFRAMER_MODE", "release"),
			DefaultLimit: envIntOr("IFRAMER_DEFAULT_LIMIT", 60),
		},
		Site: SiteConfig{
			BaseURL:       strings.TrimRight(envOr("IFRAMER_SITE_URL", "https://www.crazygames.com"), "/"),
			EmbedTemplate: envOr("IFRAMER_EMBED_TEMPLATE", "https://games.crazygames.com/en_US/{slug}/index.html"),
		},
		Fetch: FetchConfig{
			PageTimeout:    envDurationOr("IFRAMER_FETCH_TIMEOUT", 30*time.Second),
			MaxAttempts:    envIntOr("IFRAMER_FETCH_ATTEMPTS", 3),
			BaseBackoff:    envDurationOr("IFRAMER_FETCH_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     envDurationOr("IFRAMER_FETCH_MAX_BACKOFF", 5*time.Second),
			MaxRedirects:   envIntOr("IFRAMER_FETCH_MAX_REDIRECTS", 5),
			TLSFingerprint: envBoolOr("IFRAMER_TLS_FINGERPRINT", true),
		},
		Resolver: ResolverConfig{
			ProbeTimeout:    envDurationOr("IFRAMER_PROBE_TIMEOUT", 3*time.Second),
			RedirectTimeout: envDurationOr("IFRAMER_REDIRECT_TIMEOUT", 4*time.Second),
			PageTimeout:     envDurationOr("IFRAMER_GAME_PAGE_TIMEOUT", 6*time.Second),
			ItemBudget:      envDurationOr("IFRAMER_ITEM_BUDGET", 8*time.Second),
		},
		Listing: ListingConfig{
			MaxPages:          envIntOr("IFRAMER_MAX_PAGES", 6),
			PageDelay:         envDurationOr("IFRAMER_PAGE_DELAY", 1500*time.Millisecond),
			FallbackThreshold: envIntOr("IFRAMER_PAGE_FALLBACK_THRESHOLD", 5),
		},
		Batch: BatchConfig{
			Size:       envIntOr("IFRAMER_BATCH_SIZE", 3),
			ItemDelay:  envDurationOr("IFRAMER_ITEM_DELAY", time.Second),
			BatchDelay: envDurationOr("IFRAMER_BATCH_DELAY", 3*time.Second),
			Budget:     envDurationOr("IFRAMER_BATCH_BUDGET", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           envBoolOr("IFRAMER_RATE_ENABLED", true),
			RequestsPerSecond: envFloatOr("IFRAMER_RATE_RPS", 2.0),
			Burst:             envIntOr("IFRAMER_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("IFRAMER_LOG_LEVEL", "info"),
			Format: envOr("IFRAMER_LOG_FORMAT", "json"),
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
