package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Sessions SessionConfig
	Catalog  CatalogConfig
	Accrual  AccrualConfig
	Sheets   SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// StoreConfig selects and addresses the durable store.
type StoreConfig struct {
	Driver   string
	DSN      string
	MongoURI string
	MongoDB  string
}

// SessionConfig controls where shipment carts live.
type SessionConfig struct {
	RedisURL string
	TTL      time.Duration
}

// CatalogConfig contains credentials for the MoySklad stock report.
type CatalogConfig struct {
	BaseURL string
	Token   string
	StoreID string
	Timeout time.Duration
}

// AccrualConfig holds the storage accrual schedule.
type AccrualConfig struct {
	CronSchedule string
	CutoffHour   int
	Timezone     string
}

// SheetsConfig contains configuration for the optional Google Sheets mirror.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	StorageLogRange string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	sessionTTL, err := getenvDuration("SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	catalogTimeout, err := getenvDuration("MS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cutoffHour, err := getenvInt("ACCRUAL_CUTOFF_HOUR", 23)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:   getenvWithDefault("STORE_DRIVER", DriverSQLite),
			DSN:      getenvWithDefault("DB_URL", "warehouse.db"),
			MongoURI: os.Getenv("MONGODB_URI"),
			MongoDB:  getenvWithDefault("MONGODB_DB_NAME", "warehouse"),
		},
		Sessions: SessionConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      sessionTTL,
		},
		Catalog: CatalogConfig{
			BaseURL: getenvWithDefault("MS_BASE_URL", "https://api.moysklad.ru/api/remap/1.2"),
			Token:   os.Getenv("MS_TOKEN"),
			StoreID: os.Getenv("MS_STORE_ID"),
			Timeout: catalogTimeout,
		},
		Accrual: AccrualConfig{
			CronSchedule: getenvWithDefault("ACCRUAL_CRON_SCHEDULE", "*/10 23 * * *"),
			CutoffHour:   cutoffHour,
			Timezone:     getenvWithDefault("TIMEZONE", "Europe/Moscow"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			StorageLogRange: getenvWithDefault("STORAGE_LOG_SHEET_RANGE", "Storage!A:H"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("DB_URL must be provided")
		}
	case DriverMongoDB:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.Store.MongoDB == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}

	if c.Catalog.BaseURL == "" {
		return errors.New("MS_BASE_URL must not be empty")
	}

	if c.Catalog.Timeout <= 0 {
		return errors.New("MS_TIMEOUT must be positive")
	}

	if c.Sessions.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	if c.Accrual.CronSchedule == "" {
		return errors.New("ACCRUAL_CRON_SCHEDULE must be provided")
	}

	if c.Accrual.CutoffHour < 0 || c.Accrual.CutoffHour > 23 {
		return errors.New("ACCRUAL_CUTOFF_HOUR must be between 0 and 23")
	}

	if _, err := time.LoadLocation(c.Accrual.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Accrual.Timezone, err)
	}

	if c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided when GOOGLE_SHEET_DATABASE_ID is set")
	}

	return nil
}

// Enabled reports whether MoySklad credentials are configured.
func (c CatalogConfig) Enabled() bool {
	return c.Token != "" && c.StoreID != ""
}

// Enabled reports whether the storage log should be mirrored to Google Sheets.
func (c SheetsConfig) Enabled() bool {
	return c.SpreadsheetID != ""
}

// Location returns the accrual timezone; Validate guarantees it loads.
func (c AccrualConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
