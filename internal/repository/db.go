package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recurring-planner/internal/config"
	"recurring-planner/internal/model"
)

// NewDB opens the configured database and runs migrations.
func NewDB(driver, dsn string, l *log.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		l.WithPrefix("gorm"),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if driver == config.DriverSQLite {
		// SQLite allows a single writer; one connection keeps transactions serialised.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Task{}, &model.SubTask{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case config.DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres requires DATABASE_URL")
		}
		return postgres.Open(dsn), nil
	case config.DriverSQLite, "":
		if dsn == "" {
			dsn = "recurring_planner.db"
		}
		if err := ensureDirForSQLite(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(withBusyTimeout(dsn)), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
