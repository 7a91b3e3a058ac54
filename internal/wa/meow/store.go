package meow

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"
)

// Dialects accepted by StoreConfig.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// StoreConfig locates the device credential store.
type StoreConfig struct {
	Dialect string // DialectSQLite (default) or DialectPostgres
	// Path is the SQLite database file. Ignored for Postgres.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// openContainer opens the device store and applies whatsmeow's schema upgrades.
// The returned *sql.DB must be closed by the caller once the container is
// no longer needed.
func openContainer(ctx context.Context, cfg StoreConfig, log waLog.Logger) (*sqlstore.Container, *sql.DB, error) {
	var (
		db      *sql.DB
		dialect string
		err     error
	)
	switch cfg.Dialect {
	case DialectPostgres:
		db, err = sql.Open("pgx", cfg.DSN)
		dialect = "postgres"
	case "", DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, nil, fmt.Errorf("create device store dir: %w", err)
		}
		db, err = sql.Open("sqlite", "file:"+cfg.Path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
		dialect = "sqlite3"
	default:
		return nil, nil, fmt.Errorf("unknown device store dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open device store: %w", err)
	}
	if dialect == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	container := sqlstore.NewWithDB(db, dialect, log)
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("upgrade device store: %w", err)
	}
	return container, db, nil
}
