package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// timeFormat is how timestamps are stored. RFC3339Nano text sorts correctly
// and round-trips identically in postgres and sqlite.
const timeFormat = time.RFC3339Nano

type Config struct {
	DSN         string
	DialTimeout time.Duration
}

// Open connects to the database named by the DSN. postgres:// DSNs use the
// pgx stdlib driver; everything else is treated as a sqlite path, which is
// what local runs and tests use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "pgx"
	}
	logger.Info("db.connect", "driver", driver)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("db.open_failed", "driver", driver, "error", err)
		return nil, err
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writes; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("db.ping_failed", "driver", driver, "error", err)
		_ = db.Close()
		return nil, err
	}

	logger.Info("db.connected", "driver", driver)
	return db, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("db.migrate_failed", "error", err)
			return err
		}
	}
	logger.Info("db.migrated")
	return nil
}

// Close closes the database connection gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("db.close_failed", "error", err)
		return
	}
	logger.Info("db.closed")
}

// HealthCheck pings with a bounded timeout to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
