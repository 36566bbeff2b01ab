package infra

import (
	"fmt"
	"time"

	"posterminal/internal/config"
	"posterminal/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the store selected by DB_DRIVER and migrates it.
// PostgreSQL is the production store; SQLite serves single-terminal benches
// and tests.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}
	return Open(dialector, cfg.DBDriver)
}

// Open connects through dialector, tunes the pool and runs migrations.
func Open(dialector gorm.Dialector, driver string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// SQLite has a single writer; one connection keeps row locks meaningful.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies the DDL that
// AutoMigrate cannot express.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent statements understood by both PostgreSQL
// and SQLite.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one OPEN session per (terminal, operator).
		{"unique open session", `CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_open
			ON sessions (terminal_id, operator_id) WHERE status = 'OPEN'`},
		{"sales by session", `CREATE INDEX IF NOT EXISTS idx_sales_session_created
			ON sales (session_id, created_at)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
