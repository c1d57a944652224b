// Package sqlite is the default durable store: a single file under the
// user's XDG data directory.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/caniclickit/internal/infra/db/sqlkv"
)

const (
	AppName = "caniclickit"
	// Memory opens a private in-memory database.
	Memory = ":memory:"
)

//go:embed migrations/*.sql
var migrations embed.FS

var Dialect = sqlkv.Dialect{
	Goose: "sqlite3",
	Get:   `SELECT value FROM kv WHERE area = ? AND name = ?`,
	Upsert: `INSERT INTO kv (area, name, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(area, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
}

// DefaultPath is the database file used when none is configured.
// On Linux: ~/.local/share/caniclickit/coordinator.db
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "coordinator.db")
}

// Open opens (creating when needed) the database at path and migrates it.
// An empty path selects DefaultPath.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultPath()
	}
	dsn := path
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := sqlkv.Migrate(ctx, db, sub, Dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewStore returns the key-value store for one storage area.
func NewStore(db *sql.DB, area string) *sqlkv.Store {
	return sqlkv.New(db, Dialect, area)
}
