// Package mysql stores coordinator settings and quota in MySQL.
package mysql

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/bryanwahyu/caniclickit/internal/infra/db/sqlkv"
)

//go:embed migrations/*.sql
var migrations embed.FS

// The DSN must carry parseTime=true.
var Dialect = sqlkv.Dialect{
	Goose: "mysql",
	Get:   "SELECT value FROM kv WHERE area = ? AND name = ?",
	Upsert: `INSERT INTO kv (area, name, value, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`,
}

// Migrate creates the kv table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return sqlkv.Migrate(ctx, db, sub, Dialect)
}

func NewStore(db *sql.DB, area string) *sqlkv.Store {
	return sqlkv.New(db, Dialect, area)
}
