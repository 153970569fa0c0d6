package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata" // report time zones must resolve in minimal containers

	"github.com/spf13/viper"

	"github.com/guttosm/flexpulse/internal/normalize"
	"github.com/guttosm/flexpulse/internal/reconcile"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// Example ENV:
//
//	SERVER_PORT=8080
//	STORAGE_ENABLED=true
//	POSTGRES_HOST=localhost
//	POSTGRES_DB=flexpulse
//	FLEX_TOKEN=...
//	FLEX_QUERY_ID=123456
//	BASE_CURRENCY=USD
//	REPORT_TIMEZONE=America/New_York
//	DATETIME_SEPARATOR=;
//	MATCHING_STRATEGY=fifo
//	ZERO_DTE_EXPIRY=true
type Config struct {
	Server    ServerConfig    // HTTP server configuration
	Postgres  PostgresConfig  // PostgreSQL connection settings
	Storage   StorageConfig   // persistence switches
	Flex      FlexConfig      // Flex Web Service client
	Report    ReportConfig    // report conventions used by the normalizer
	Reconcile ReconcileConfig // trade reconciliation settings
	Import    ImportConfig    // directory imports
}

// ServerConfig holds HTTP server settings.
//
// Fields:
//   - Port: TCP port the HTTP server listens on (e.g., "8080").
//   - RequestTimeout: per-request deadline.
//   - RateLimit / RateWindow: requests allowed per client IP and window.
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	RateLimit      int
	RateWindow     time.Duration
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// StorageConfig decides whether imported fills are persisted.
// With Enabled=false the service keeps fills in memory only.
type StorageConfig struct {
	Enabled     bool
	AutoMigrate bool
}

// FlexConfig configures the Flex Web Service client. The client is only
// built when both Token and QueryID are set.
type FlexConfig struct {
	BaseURL    string
	Token      string
	QueryID    string
	Version    string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Enabled reports whether the Flex Web Service can be queried.
func (f FlexConfig) Enabled() bool {
	return f.Token != "" && f.QueryID != ""
}

// ReportConfig describes how the configured Flex Query formats its values.
//
// Fields:
//   - BaseCurrency: reporting currency all money is converted into.
//   - Timezone: IANA zone of report timestamps; Location is its resolved value.
//   - DateLayout: Go layout of date attributes.
//   - DateTimeSeparator: separator name between date and time ("none", ";", ",", "space", "T").
type ReportConfig struct {
	BaseCurrency      string
	Timezone          string
	Location          *time.Location
	DateLayout        string
	DateTimeSeparator string
}

// ReconcileConfig configures trade reconciliation.
type ReconcileConfig struct {
	MatchingStrategy string
	ZeroDTEExpiry    bool
	ExpiryClose      time.Duration
}

// ImportConfig configures directory imports.
type ImportConfig struct {
	Dir      string
	Parallel int
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Fatal exit:
//   - If required variables are missing or invalid, validateConfig() will
//     terminate the app with a descriptive log message.
func LoadConfig() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REQUEST_TIMEOUT", "60s")
	viper.SetDefault("RATE_LIMIT", 60)
	viper.SetDefault("RATE_WINDOW", "1m")

	viper.SetDefault("STORAGE_ENABLED", true)
	viper.SetDefault("STORAGE_AUTO_MIGRATE", true)
	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "flexpulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("FLEX_BASE_URL", "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService")
	viper.SetDefault("FLEX_TOKEN", "")
	viper.SetDefault("FLEX_QUERY_ID", "")
	viper.SetDefault("FLEX_VERSION", "3")
	viper.SetDefault("FLEX_MAX_RETRIES", 5)
	viper.SetDefault("FLEX_RETRY_DELAY", "5s")
	viper.SetDefault("FLEX_TIMEOUT", "30s")

	viper.SetDefault("BASE_CURRENCY", "USD")
	viper.SetDefault("REPORT_TIMEZONE", "America/New_York")
	viper.SetDefault("DATE_LAYOUT", normalize.DefaultDateLayout)
	viper.SetDefault("DATETIME_SEPARATOR", "none")

	viper.SetDefault("MATCHING_STRATEGY", reconcile.StrategyFIFO)
	viper.SetDefault("ZERO_DTE_EXPIRY", true)
	viper.SetDefault("EXPIRY_CLOSE", "16h")

	viper.SetDefault("IMPORT_DIR", "./data")
	viper.SetDefault("IMPORT_PARALLEL", 0)

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	viper.AutomaticEnv()

	AppConfig = Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			RequestTimeout: viper.GetDuration("REQUEST_TIMEOUT"),
			RateLimit:      viper.GetInt("RATE_LIMIT"),
			RateWindow:     viper.GetDuration("RATE_WINDOW"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Storage: StorageConfig{
			Enabled:     viper.GetBool("STORAGE_ENABLED"),
			AutoMigrate: viper.GetBool("STORAGE_AUTO_MIGRATE"),
		},
		Flex: FlexConfig{
			BaseURL:    viper.GetString("FLEX_BASE_URL"),
			Token:      viper.GetString("FLEX_TOKEN"),
			QueryID:    viper.GetString("FLEX_QUERY_ID"),
			Version:    viper.GetString("FLEX_VERSION"),
			MaxRetries: viper.GetInt("FLEX_MAX_RETRIES"),
			RetryDelay: viper.GetDuration("FLEX_RETRY_DELAY"),
			Timeout:    viper.GetDuration("FLEX_TIMEOUT"),
		},
		Report: ReportConfig{
			BaseCurrency:      strings.ToUpper(viper.GetString("BASE_CURRENCY")),
			Timezone:          viper.GetString("REPORT_TIMEZONE"),
			DateLayout:        viper.GetString("DATE_LAYOUT"),
			DateTimeSeparator: viper.GetString("DATETIME_SEPARATOR"),
		},
		Reconcile: ReconcileConfig{
			MatchingStrategy: strings.ToLower(viper.GetString("MATCHING_STRATEGY")),
			ZeroDTEExpiry:    viper.GetBool("ZERO_DTE_EXPIRY"),
			ExpiryClose:      viper.GetDuration("EXPIRY_CLOSE"),
		},
		Import: ImportConfig{
			Dir:      viper.GetString("IMPORT_DIR"),
			Parallel: viper.GetInt("IMPORT_PARALLEL"),
		},
	}

	// Construct Postgres DSN (used by database/sql)
	AppConfig.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		AppConfig.Postgres.User,
		AppConfig.Postgres.Password,
		AppConfig.Postgres.Host,
		AppConfig.Postgres.Port,
		AppConfig.Postgres.DBName,
		AppConfig.Postgres.SSLMode,
	)

	if loc, err := time.LoadLocation(AppConfig.Report.Timezone); err == nil {
		AppConfig.Report.Location = loc
	}

	validateConfig()
}

// problems lists missing and invalid settings of AppConfig.
func problems() (missing, invalid []string) {
	if AppConfig.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if AppConfig.Storage.Enabled {
		if AppConfig.Postgres.Host == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if AppConfig.Postgres.Port == 0 {
			missing = append(missing, "POSTGRES_PORT")
		}
		if AppConfig.Postgres.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if AppConfig.Postgres.Password == "" {
			missing = append(missing, "POSTGRES_PASSWORD")
		}
		if AppConfig.Postgres.DBName == "" {
			missing = append(missing, "POSTGRES_DB")
		}
	}
	if AppConfig.Report.BaseCurrency == "" {
		missing = append(missing, "BASE_CURRENCY")
	}
	if AppConfig.Report.DateLayout == "" {
		missing = append(missing, "DATE_LAYOUT")
	}

	if AppConfig.Report.Location == nil {
		invalid = append(invalid, fmt.Sprintf("REPORT_TIMEZONE=%q", AppConfig.Report.Timezone))
	}
	if _, err := normalize.ParseSeparator(AppConfig.Report.DateTimeSeparator); err != nil {
		invalid = append(invalid, fmt.Sprintf("DATETIME_SEPARATOR=%q", AppConfig.Report.DateTimeSeparator))
	}
	if s := AppConfig.Reconcile.MatchingStrategy; s != "" && s != reconcile.StrategyFIFO {
		invalid = append(invalid, fmt.Sprintf("MATCHING_STRATEGY=%q", s))
	}
	if (AppConfig.Flex.Token == "") != (AppConfig.Flex.QueryID == "") {
		invalid = append(invalid, "FLEX_TOKEN and FLEX_QUERY_ID must be set together")
	}
	return missing, invalid
}

// validateConfig ensures required variables are present and valid, and
// terminates the application otherwise.
//
// Behavior:
//   - Postgres settings are only required when STORAGE_ENABLED is true.
//   - Unknown matching strategies, time zones and separators are rejected.
//   - Any problem is logged and the app exits via log.Fatalf().
func validateConfig() {
	missing, invalid := problems()
	if len(missing) > 0 {
		log.Fatalf("❌ Missing required environment variables: %v\n", missing)
	}
	if len(invalid) > 0 {
		log.Fatalf("❌ Invalid configuration: %v\n", invalid)
	}
}
