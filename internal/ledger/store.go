package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"chronicle/internal/models"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// Options selects the database behind a ledger.
type Options struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// Store is the snapshot ledger over database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	db, driver, err := OpenRawDB(opts)
	if err != nil {
		return nil, err
	}
	d, err := dialectFor(driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, models.WrapIO("migrate ledger", err)
	}
	return &Store{db: db, dialect: d}, nil
}

// OpenRawDB opens and configures the database without running migrations.
func OpenRawDB(opts Options) (*sql.DB, string, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, "", err
	}

	var dsn string
	switch d.name {
	case DriverPostgres:
		dsn = strings.TrimSpace(opts.DSN)
		if dsn == "" {
			return nil, "", fmt.Errorf("ledger dsn is required for postgres")
		}
	default:
		dsn, err = sqliteDSN(opts.Path)
		if err != nil {
			return nil, "", err
		}
	}

	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, "", models.WrapIO("open ledger", err)
	}
	if d.name == DriverSQLite {
		if err := configureDB(db); err != nil {
			_ = db.Close()
			return nil, "", models.WrapIO("configure ledger", err)
		}
	}
	return db, d.name, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the normalized driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Single writer; the archive is a local file.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}
