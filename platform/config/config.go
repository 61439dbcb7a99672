// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// AuthConfig provides the shared secret used to verify service tokens.
// An empty secret disables token checks (local development).
type AuthConfig interface {
	GetIngestAPISecret() string
}

// SchedulerConfig provides settings for the asynq-backed scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetIngestSchedule() map[string]string
	GetIngestRunTimeout() time.Duration
	GetMetricsAddr() string
}

// SourceSettings holds the fetch settings of one permit source.
type SourceSettings struct {
	URL            string
	Token          string
	RequestsPerSec float64
}

// SourcesConfig provides per-source fetch settings.
type SourcesConfig interface {
	GetSourceSettings(source string) (SourceSettings, bool)
	GetIngestPageLimit() int
	GetFetchTimeout() time.Duration
}

// ArchiveConfig provides settings for the raw batch archive (MinIO).
type ArchiveConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetRawArchiveBucket() string
	IsArchiveEnabled() bool
}

// RulesConfig provides the location of the lead rule tables.
type RulesConfig interface {
	GetLeadRulesPath() string
}

// OutboxConfig provides outbox consumption settings.
type OutboxConfig interface {
	GetOutboxMaxAttempts() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	CORSAllowAll      bool
	CORSOrigins       []string
	IngestAPISecret   string
	RedisURL          string
	RedisTLSInsecure  bool
	AsynqQueueName    string
	AsynqConcurrency  int
	IngestSchedule    map[string]string
	IngestRunTimeout  time.Duration
	MetricsAddr       string
	IngestPageLimit   int
	FetchTimeout      time.Duration
	Sources           map[string]SourceSettings
	MinIOEndpoint     string
	MinIOAccessKey    string
	MinIOSecretKey    string
	MinIOUseSSL       bool
	RawArchiveBucket  string
	LeadRulesPath     string
	OutboxMaxAttempts int
}

// KnownSources lists the sources whose SOURCE_<NAME>_* variables are read.
var KnownSources = []string{"austin", "dallas", "houston", "san_antonio"}

var defaultSourceURLs = map[string]string{
	"austin":      "https://data.austintexas.gov/resource/3syk-w9eu.json",
	"dallas":      "https://www.dallasopendata.com/resource/e7gq-4sah.json",
	"houston":     "",
	"san_antonio": "",
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// AuthConfig implementation
func (c *Config) GetIngestAPISecret() string { return c.IngestAPISecret }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                  { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool            { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string            { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int             { return c.AsynqConcurrency }
func (c *Config) GetIngestSchedule() map[string]string { return c.IngestSchedule }
func (c *Config) GetIngestRunTimeout() time.Duration   { return c.IngestRunTimeout }
func (c *Config) GetMetricsAddr() string               { return c.MetricsAddr }

// SourcesConfig implementation
func (c *Config) GetSourceSettings(source string) (SourceSettings, bool) {
	s, ok := c.Sources[source]
	if !ok || s.URL == "" {
		return SourceSettings{}, false
	}
	return s, true
}
func (c *Config) GetIngestPageLimit() int        { return c.IngestPageLimit }
func (c *Config) GetFetchTimeout() time.Duration { return c.FetchTimeout }

// ArchiveConfig implementation
func (c *Config) GetMinIOEndpoint() string    { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string   { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string   { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool        { return c.MinIOUseSSL }
func (c *Config) GetRawArchiveBucket() string { return c.RawArchiveBucket }
func (c *Config) IsArchiveEnabled() bool {
	return c.MinIOEndpoint != "" && c.RawArchiveBucket != ""
}

// RulesConfig implementation
func (c *Config) GetLeadRulesPath() string { return c.LeadRulesPath }

// OutboxConfig implementation
func (c *Config) GetOutboxMaxAttempts() int { return c.OutboxMaxAttempts }

// Load reads configuration from environment variables.
// DATABASE_URL is validated by the binaries that need it (see RequireDatabase).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	schedule, err := parseSchedule(getEnv("INGEST_SCHEDULE", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		IngestAPISecret:   getEnv("INGEST_API_SECRET", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE", "ingest"),
		AsynqConcurrency:  mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		IngestSchedule:    schedule,
		IngestRunTimeout:  mustDuration(getEnv("INGEST_RUN_TIMEOUT", "10m")),
		MetricsAddr:       getEnv("METRICS_ADDR", ""),
		IngestPageLimit:   mustInt(getEnv("INGEST_PAGE_LIMIT", "1000")),
		FetchTimeout:      mustDuration(getEnv("FETCH_TIMEOUT", "60s")),
		Sources:           loadSources(),
		MinIOEndpoint:     getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:    getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:       strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		RawArchiveBucket:  getEnv("RAW_ARCHIVE_BUCKET", "permit-raw-batches"),
		LeadRulesPath:     getEnv("LEAD_RULES_PATH", ""),
		OutboxMaxAttempts: mustInt(getEnv("OUTBOX_MAX_ATTEMPTS", "0")),
	}

	if cfg.IngestPageLimit < 1 {
		return nil, fmt.Errorf("INGEST_PAGE_LIMIT must be positive")
	}
	if cfg.CORSAllowAll && cfg.IngestAPISecret == "" && strings.EqualFold(cfg.Env, "production") {
		return nil, fmt.Errorf("INGEST_API_SECRET is required when CORS_ALLOW_ALL is true in production")
	}
	for source := range schedule {
		if _, ok := cfg.GetSourceSettings(source); !ok && source != "all" {
			return nil, fmt.Errorf("INGEST_SCHEDULE references unconfigured source %q", source)
		}
	}

	return cfg, nil
}

// RequireDatabase returns an error when DATABASE_URL is missing.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func loadSources() map[string]SourceSettings {
	sources := make(map[string]SourceSettings, len(KnownSources))
	for _, name := range KnownSources {
		prefix := "SOURCE_" + strings.ToUpper(name) + "_"
		sources[name] = SourceSettings{
			URL:            getEnv(prefix+"URL", defaultSourceURLs[name]),
			Token:          getEnv(prefix+"TOKEN", ""),
			RequestsPerSec: mustFloat(getEnv(prefix+"RPS", "1")),
		}
	}
	return sources
}

// parseSchedule reads "austin=@every 6h;dallas=0 */4 * * *".
func parseSchedule(value string) (map[string]string, error) {
	schedule := make(map[string]string)
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		source, spec, ok := strings.Cut(entry, "=")
		source = strings.TrimSpace(source)
		spec = strings.TrimSpace(spec)
		if !ok || source == "" || spec == "" {
			return nil, fmt.Errorf("invalid INGEST_SCHEDULE entry %q", entry)
		}
		schedule[source] = spec
	}
	return schedule, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
