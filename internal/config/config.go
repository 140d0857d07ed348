// Package config loads the reconciliation server settings from environment
// variables, applies defaults and validates everything on startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Session  SessionConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// in-flight workbook loads.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for a single request.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional PostgreSQL connection used for merge
// history. When URL is empty history is kept in memory.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// UploadConfig holds workbook loading settings.
type UploadConfig struct {
	// MaxFileSize accepts plain bytes or a KB/MB/GB suffix (default: 100MB).
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"100MB"`

	MaxConcurrent int           `env:"UPLOAD_MAX_CONCURRENT" default:"5"`
	MaxWaitTime   time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// BlankRowFilterLimit skips the blank-row pass for sheets with at least
	// this many rows. Negative disables the pass.
	BlankRowFilterLimit int `env:"UPLOAD_BLANK_ROW_FILTER_LIMIT" default:"100000"`

	// Timeout bounds a single load, including parsing.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`

	// PivotMaxCells caps the grid positions a posted pivot table may cover
	// once its spans are expanded. Zero or less uses the core default.
	PivotMaxCells int `env:"UPLOAD_PIVOT_MAX_CELLS" default:"1000000"`
}

// SessionConfig controls how long loaded datasets stay in memory.
type SessionConfig struct {
	DatasetTTL    time.Duration `env:"SESSION_DATASET_TTL" default:"2h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"10m"`
}

// HistoryConfig controls the merge-run history.
type HistoryConfig struct {
	// RetentionDays is how long runs are kept; 0 keeps them forever.
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"90"`

	// MemoryCap bounds the in-memory history used without a database.
	MemoryCap int `env:"HISTORY_MEMORY_CAP" default:"1000"`
}

// Retention returns RetentionDays as a duration.
func (c HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for dataset uploads.
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey turns on X-API-Key checks for /api routes.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
