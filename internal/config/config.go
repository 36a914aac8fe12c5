package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port            string
	BaseURL         string
	BlockSuspicious bool

	// Logging
	LogLevel  string
	LogFormat string

	// Persistence
	DataBackend  string
	DataFile     string
	SQLiteDBPath string

	// Presentation
	Theme                   string
	DefaultKind             string
	NoticeDuration          time.Duration
	ProjectionDefaultMonths int

	// Exports
	SheetConflict   string
	ExportCacheSize int
	ExportCacheTTL  time.Duration

	// AMQP, optional: events are skipped when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	ExportDir      string
	ExportInterval time.Duration
	GCSBucket      string
	GCSPrefix      string

	// Google Sheets mirror, optional
	GoogleSpreadsheetID      string
	GoogleSummarySheet       string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

var (
	validBackends  = []string{"json", "sqlite", "memory"}
	validThemes    = []string{"light", "dark"}
	validKinds     = []string{"income", "expense"}
	validConflicts = []string{"fail", "suffix"}
	validFormats   = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		BaseURL:         getEnv("BASE_URL", ""),
		BlockSuspicious: getEnvBool("BLOCK_SUSPICIOUS_REQUESTS", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", "json")),
		DataFile:     getEnv("DATA_FILE", "./data/financial_records.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/consultoria.db"),

		Theme:                   strings.ToLower(getEnv("THEME", "light")),
		DefaultKind:             strings.ToLower(getEnv("DEFAULT_KIND", "income")),
		NoticeDuration:          getEnvDuration("NOTICE_DURATION", 3*time.Second),
		ProjectionDefaultMonths: getEnvInt("PROJECTION_DEFAULT_MONTHS", 12),

		SheetConflict:   strings.ToLower(getEnv("SHEET_CONFLICT", "fail")),
		ExportCacheSize: getEnvInt("EXPORT_CACHE_SIZE", 8),
		ExportCacheTTL:  getEnvDuration("EXPORT_CACHE_TTL", 10*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "consultoria"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		ExportDir:      getEnv("EXPORT_DIR", "./data/exports"),
		ExportInterval: getEnvDuration("EXPORT_INTERVAL", 15*time.Minute),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		GCSPrefix:      getEnv("GCS_PREFIX", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSummarySheet:       getEnv("GOOGLE_SUMMARY_SHEET", "Summary"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
}

// EventsEnabled reports whether ledger events should be published.
func (c *Config) EventsEnabled() bool { return c.AMQPURL != "" }

// SheetsMirrorEnabled reports whether the worker mirrors the Summary.
func (c *Config) SheetsMirrorEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid base URL '%s': must be absolute", c.BaseURL))
		}
	}

	errors = appendChoice(errors, "log format", c.LogFormat, validFormats)
	errors = appendChoice(errors, "data backend", c.DataBackend, validBackends)
	errors = appendChoice(errors, "theme", c.Theme, validThemes)
	errors = appendChoice(errors, "default kind", c.DefaultKind, validKinds)
	errors = appendChoice(errors, "sheet conflict policy", c.SheetConflict, validConflicts)

	switch c.DataBackend {
	case "json":
		if c.DataFile == "" {
			errors = append(errors, "data file cannot be empty when using json backend")
		} else if msg := ensureDir(c.DataFile, "data file"); msg != "" {
			errors = append(errors, msg)
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath, "SQLite database"); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.NoticeDuration < 0 || c.NoticeDuration > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid notice duration %v: must be between 0 and 1 minute", c.NoticeDuration))
	}
	if c.ProjectionDefaultMonths < 1 || c.ProjectionDefaultMonths > 60 {
		errors = append(errors, fmt.Sprintf("invalid default projection %d: must be between 1 and 60 months", c.ProjectionDefaultMonths))
	}
	if c.ExportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export cache size %d: must be at least 1", c.ExportCacheSize))
	}
	if c.ExportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export cache TTL %v: must be at least 1 second", c.ExportCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSummarySheet == "" {
			errors = append(errors, "Google summary sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func appendChoice(errors []string, what, value string, valid []string) []string {
	if slices.Contains(valid, value) {
		return errors
	}
	return append(errors, fmt.Sprintf("invalid %s '%s': must be one of %v", what, value, valid))
}

// ensureDir creates the parent directory of path when missing.
func ensureDir(path, what string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("cannot create %s directory '%s': %v", what, dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
