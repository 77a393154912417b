package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"kobitar/internal/core"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendScript = "script"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendMemory, BackendScript, BackendSheets, BackendSQLite}

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Spreadsheet web-app endpoints
	CollectionsURL string
	ExpensesURL    string
	RemoteTimeout  time.Duration

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleCollectionsSheet   string
	GoogleExpensesSheet      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Database
	SQLiteDBPath string
	SeedDir      string

	// AMQP; an empty URL disables activity events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Household
	HouseholdMembers int
	MealsPerDay      int

	// Presentation
	Locale         string
	CurrencySymbol string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),

		CollectionsURL: getEnv("COLLECTIONS_URL", ""),
		ExpensesURL:    getEnv("EXPENSES_URL", ""),
		RemoteTimeout:  getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCollectionsSheet:   getEnv("GOOGLE_COLLECTIONS_SHEET", "Collections"),
		GoogleExpensesSheet:      getEnv("GOOGLE_EXPENSES_SHEET", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kobitar.db"),
		SeedDir:      getEnv("SEED_DIR", "data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kobitar"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "household_activity"),

		HouseholdMembers: getEnvInt("HOUSEHOLD_MEMBERS", core.DefaultMembers),
		MealsPerDay:      getEnvInt("MEALS_PER_DAY", core.DefaultMealsPerDay),

		Locale:         getEnv("LOCALE", "en-US"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "৳"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// MealPlan returns the divisor settings for the meal rate.
func (c *Config) MealPlan() core.MealPlan {
	return core.MealPlan{Members: c.HouseholdMembers, MealsPerDay: c.MealsPerDay}
}

// AMQPEnabled reports whether activity events should be published.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendScript:
		for name, raw := range map[string]string{"COLLECTIONS_URL": c.CollectionsURL, "EXPENSES_URL": c.ExpensesURL} {
			if raw == "" {
				errors = append(errors, fmt.Sprintf("%s is required when using script backend", name))
				continue
			}
			if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", name, raw))
			}
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleCollectionsSheet == "" || c.GoogleExpensesSheet == "" {
			errors = append(errors, "Google sheet names cannot be empty when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	case BackendSQLite:
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
	}

	if c.RemoteTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must not be negative", c.RemoteTimeout))
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

	if c.HouseholdMembers < 1 {
		errors = append(errors, fmt.Sprintf("invalid household members %d: must be at least 1", c.HouseholdMembers))
	}
	if c.MealsPerDay < 1 {
		errors = append(errors, fmt.Sprintf("invalid meals per day %d: must be at least 1", c.MealsPerDay))
	}

	if _, err := language.Parse(c.Locale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid locale '%s': %v", c.Locale, err))
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

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
