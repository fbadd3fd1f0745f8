package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TELEGRAM_TOKEN", "DATABASE_DRIVER", "DATABASE_URL", "LOG_LEVEL", "REPORT_TIME", "REPORT_INTERVAL_HOURS", "TIMEZONE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANNER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseDriver != DriverSQLite || cfg.DatabaseURL != defaultDatabaseURL {
		t.Fatalf("expected sqlite defaults, got %+v", cfg)
	}
	if cfg.ReportTime != defaultReportTime || cfg.LogLevel != defaultLogLevel || cfg.ReportInterval != 0 {
		t.Fatalf("expected report/log defaults, got %+v", cfg)
	}
	if err := cfg.RequireToken(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestLoad_FileUnderEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.env")
	content := "TELEGRAM_TOKEN=from-file\nDATABASE_URL=file.db\nTIMEZONE=Europe/Moscow\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PLANNER_ENV_FILE", path)
	t.Setenv("DATABASE_URL", "env.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramToken != "from-file" {
		t.Fatalf("expected token from file, got %q", cfg.TelegramToken)
	}
	if cfg.DatabaseURL != "env.db" {
		t.Fatalf("expected environment to win, got %q", cfg.DatabaseURL)
	}
	if cfg.Location.String() != "Europe/Moscow" {
		t.Fatalf("expected Europe/Moscow, got %s", cfg.Location)
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANNER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DATABASE_DRIVER", "mysql")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestLoad_ReportInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLANNER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	t.Setenv("REPORT_INTERVAL_HOURS", " 5 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReportInterval != 5*time.Hour {
		t.Fatalf("expected 5h, got %s", cfg.ReportInterval)
	}

	for _, bad := range []string{"0", "-2", "often"} {
		t.Setenv("REPORT_INTERVAL_HOURS", bad)
		if _, err := Load(); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
