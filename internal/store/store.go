// Package store persists plugup state in a SQL database: the cached update
// feed, metadata about the last fetch and the install history.
//
// SQLite is the default backend. MySQL is supported for hosts that keep
// tool state next to their site database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, WAL-friendly

	appErrors "plugup/internal/errors"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	feedStateName = "feed"
)

// Config selects and locates the database.
type Config struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the MySQL data source name, e.g. "user:pw@tcp(db:3306)/plugup".
	DSN string
}

// Store is a handle on the state database.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(cfg.Path)
	case DriverMySQL:
		db, err = openMySQL(cfg.DSN)
	default:
		return nil, appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}
	if err != nil {
		return nil, storageError("open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storageError("ping database", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// buildSQLiteDSN creates a read-write WAL DSN for the given path.
func buildSQLiteDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}

func openSQLite(dbPath string) (*sql.DB, error) {
	trimmed := strings.TrimSpace(dbPath)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	//nolint:gosec // G301: state directory lives under the user's home
	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", buildSQLiteDSN(trimmed))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database.dsn is required for the mysql driver")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dc, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(dc)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(3 * time.Minute)
	return db, nil
}

// Driver returns the backend name.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return appErrors.New(appErrors.CodeStorageFailed, fmt.Sprintf("state database: %s: %v", op, err), err)
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
