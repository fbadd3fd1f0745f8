package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultEnvFile     = ".env"
	defaultDatabaseURL = "recurring_planner.db"
	defaultReportTime  = "08:00"
	defaultLogLevel    = "info"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken  string
	DatabaseDriver string
	DatabaseURL    string
	LogLevel       string
	Location       *time.Location
	ReportTime     string
	// ReportInterval repeats the summary during the day; zero disables it.
	ReportInterval time.Duration
}

// Load reads an optional .env file, then environment variables, with sane defaults.
// Environment variables win over the file. The token is not checked here; see RequireToken.
func Load() (Config, error) {
	envFile := coalesce(os.Getenv("PLANNER_ENV_FILE"), defaultEnvFile)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseDriver: strings.ToLower(coalesce(os.Getenv("DATABASE_DRIVER"), DriverSQLite)),
		DatabaseURL:    coalesce(os.Getenv("DATABASE_URL"), defaultDatabaseURL),
		LogLevel:       coalesce(os.Getenv("LOG_LEVEL"), defaultLogLevel),
		ReportTime:     coalesce(os.Getenv("REPORT_TIME"), defaultReportTime),
		Location:       time.Local,
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return cfg, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	interval, err := parseInterval(os.Getenv("REPORT_INTERVAL_HOURS"))
	if err != nil {
		return cfg, err
	}
	cfg.ReportInterval = interval

	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func (c Config) RequireToken() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("invalid REPORT_INTERVAL_HOURS %q", raw)
	}
	return hours, nil
}

func coalesce(args ...string) string {
	for _, s := range args {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
