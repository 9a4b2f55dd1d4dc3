package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Upload    UploadConfig
	Providers ProvidersConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	// PublicURL is the externally reachable base URL, used when
	// registering webhook endpoints with providers.
	PublicURL string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds in-process cache settings
type CacheConfig struct {
	Enabled bool
	// RemoteStatusTTL damps repeated provider status calls when many
	// pollers ask about the same pending video.
	RemoteStatusTTL time.Duration
}

// UploadConfig holds upload validation limits
type UploadConfig struct {
	// MaxBytes is the maximum accepted file size.
	MaxBytes int64
	// AllowedExtensions is the lower-cased extension allow-list (no dots).
	AllowedExtensions []string
	// PolicyExpr is an optional CEL expression evaluated against the
	// upload request (vars: filename, ext, size). Empty disables the gate.
	PolicyExpr string
	// StartMarkerTTL bounds how long the upload-start timestamp is kept
	// for time-to-ready metrics. Best-effort data.
	StartMarkerTTL time.Duration
	// StalenessTimeout is how long a never-confirmed upload may stay
	// pending before a provider not-found marks it failed.
	StalenessTimeout time.Duration
}

// ProvidersConfig holds per-provider credentials and settings
type ProvidersConfig struct {
	// Active selects which provider receives new uploads.
	Active     string
	Cloudflare CloudflareConfig
	Bunny      BunnyConfig
}

// CloudflareConfig holds Cloudflare Stream credentials
type CloudflareConfig struct {
	AccountID     string
	APIToken      string
	WebhookSecret string
}

// BunnyConfig holds Bunny Stream credentials
type BunnyConfig struct {
	LibraryID string
	APIKey    string
	// CDNHost serves playback manifests for the library (e.g. vz-xxxx.b-cdn.net).
	CDNHost string
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// RateLimitConfig holds fixed-window rate limits
type RateLimitConfig struct {
	Enabled bool
	// WebhookPerMinute limits the public webhook endpoint per provider.
	WebhookPerMinute int64
	// StatusPerMinute limits status polling per user.
	StatusPerMinute int64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "streamgate"),
			User:        getEnv("POSTGRES_USER", "streamgate"),
			Password:    getEnv("POSTGRES_PASSWORD", "streamgate"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			RemoteStatusTTL: getEnvDuration("CACHE_REMOTE_STATUS_TTL", 5*time.Second),
		},
		Upload: UploadConfig{
			MaxBytes:          getEnvInt64("UPLOAD_MAX_BYTES", 512<<20),
			AllowedExtensions: getEnvSlice("UPLOAD_ALLOWED_EXTENSIONS", []string{"mp4", "m4v", "mov", "webm", "mkv", "avi"}),
			PolicyExpr:        getEnv("UPLOAD_POLICY_EXPR", ""),
			StartMarkerTTL:    getEnvDuration("UPLOAD_START_MARKER_TTL", 14*24*time.Hour),
			StalenessTimeout:  getEnvDuration("STATUS_STALENESS_TIMEOUT", 24*time.Hour),
		},
		Providers: ProvidersConfig{
			Active: getEnv("VIDEO_PROVIDER", "cloudflare"),
			Cloudflare: CloudflareConfig{
				AccountID:     getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
				APIToken:      getEnv("CLOUDFLARE_API_TOKEN", ""),
				WebhookSecret: getEnv("CLOUDFLARE_WEBHOOK_SECRET", ""),
			},
			Bunny: BunnyConfig{
				LibraryID: getEnv("BUNNY_LIBRARY_ID", ""),
				APIKey:    getEnv("BUNNY_API_KEY", ""),
				CDNHost:   getEnv("BUNNY_CDN_HOST", ""),
			},
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getEnvBool("RATE_LIMIT_ENABLED", true),
			WebhookPerMinute: int64(getEnvInt("RATE_LIMIT_WEBHOOK_PER_MINUTE", 600)),
			StatusPerMinute:  int64(getEnvInt("RATE_LIMIT_STATUS_PER_MINUTE", 120)),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	switch c.Providers.Active {
	case "cloudflare":
	case "bunny":
		// Without a CDN host no bunny video can ever carry a manifest
		// URL, which pins every upload at pending. Fail at startup
		// instead.
		if c.Providers.Bunny.LibraryID == "" || c.Providers.Bunny.APIKey == "" {
			return fmt.Errorf("bunny provider requires BUNNY_LIBRARY_ID and BUNNY_API_KEY")
		}
		if c.Providers.Bunny.CDNHost == "" {
			return fmt.Errorf("bunny provider requires BUNNY_CDN_HOST")
		}
	default:
		return fmt.Errorf("unknown video provider: %s", c.Providers.Active)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
