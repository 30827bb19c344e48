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
	// Client
	GatewayURL      string
	GatewayTimeout  time.Duration
	SessionFile     string
	AuthCredentials string
	CurrencySymbol  string
	PageSize        int

	// Logging
	LogLevel  string
	LogFormat string

	// Gateway server
	Port               string
	DataBackend        string
	SeedFile           string
	SQLiteDBPath       string
	DatabaseURL        string
	CacheTTL           time.Duration
	RateLimitPerMinute int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	OAuthRedirectPort        string
}

var (
	validBackends    = []string{"memory", "sqlite", "postgres"}
	validLogLevels   = []string{"debug", "info", "warn", "error"}
	validLogFormats  = []string{"text", "json", "tint"}
	validCredentials = []string{"plaintext", "bcrypt"}
)

func Load() *Config {
	cfg := &Config{
		GatewayURL:      getEnv("GATEWAY_URL", "http://localhost:3001"),
		GatewayTimeout:  getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		SessionFile:     getEnv("SESSION_FILE", defaultSessionFile()),
		AuthCredentials: strings.ToLower(getEnv("AUTH_CREDENTIALS", "plaintext")),
		CurrencySymbol:  getEnv("CURRENCY_SYMBOL", "₦"),
		PageSize:        getEnvInt("PAGE_SIZE", 10),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		Port:               getEnv("PORT", "3001"),
		DataBackend:        getEnv("DATA_BACKEND", "memory"),
		SeedFile:           getEnv("SEED_FILE", ""),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/expenses.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CacheTTL:           getEnvDuration("CACHE_TTL", 30*time.Second),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		OAuthRedirectPort:        getEnv("OAUTH_REDIRECT_PORT", "8085"),
	}

	return cfg
}

// defaultSessionFile lives in the user config dir, next to the binary's cwd
// when no such dir is available.
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".expensetracker", "session.json")
	}
	return filepath.Join(dir, "expensetracker", "session.json")
}

// Validate checks the settings shared by every binary.
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	return joinErrors(errors)
}

// ValidateClient checks the settings used by the expense client.
func (c *Config) ValidateClient() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}

	if u, err := url.Parse(c.GatewayURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid gateway URL '%s': %v", c.GatewayURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid gateway URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}
	if c.GatewayTimeout < 100*time.Millisecond || c.GatewayTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid gateway timeout %v: must be between 100ms and 5m", c.GatewayTimeout))
	}
	if strings.TrimSpace(c.SessionFile) == "" {
		errors = append(errors, "session file path cannot be empty")
	}
	if !slices.Contains(validCredentials, c.AuthCredentials) {
		errors = append(errors, fmt.Sprintf("invalid credential policy '%s': must be one of %v", c.AuthCredentials, validCredentials))
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 500", c.PageSize))
	}

	return joinErrors(errors)
}

// ValidateServer checks the settings used by the gateway server.
func (c *Config) ValidateServer() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "memory":
		if c.SeedFile != "" {
			if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
			}
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
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

	if c.CacheTTL < 0 || c.CacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be between 0 and 1 hour", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	return joinErrors(errors)
}

// ValidateExport checks the Google Sheets export settings.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if c.GoogleOAuthTokenFile != "" {
		if err := c.ValidateOAuthClient(); err != nil {
			errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
		}
	} else if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_TOKEN_FILE must be provided for export")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return joinErrors(errors)
}

// ValidateOAuthClient checks the settings used to obtain or refresh a user
// OAuth token for Sheets.
func (c *Config) ValidateOAuthClient() error {
	var errors []string
	if c.GoogleOAuthClientJSON == "" && c.GoogleOAuthClientFile == "" {
		errors = append(errors, "GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE is required for OAuth")
	}
	if c.GoogleOAuthClientFile != "" {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}
	if port, err := strconv.Atoi(c.OAuthRedirectPort); err != nil || port < 0 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid OAuth redirect port '%s'", c.OAuthRedirectPort))
	}
	return joinErrors(errors)
}

// ValidateWorker checks the settings used by the sheets sync worker.
func (c *Config) ValidateWorker() error {
	var errors []string
	for _, err := range []error{c.Validate(), c.ValidateExport()} {
		if err != nil {
			errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
		}
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	} else if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
		errors = append(errors, "invalid AMQP_URL: must be an amqp:// or amqps:// URL")
	}
	if c.AMQPExchange == "" || c.AMQPQueue == "" {
		errors = append(errors, "AMQP exchange and queue names cannot be empty")
	}
	return joinErrors(errors)
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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
