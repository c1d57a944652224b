// Package postgres stores coordinator settings and quota in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/bryanwahyu/caniclickit/internal/infra/db/sqlkv"
)

//go:embed migrations/*.sql
var migrations embed.FS

var Dialect = sqlkv.Dialect{
	Goose: "postgres",
	Get:   `SELECT value::text FROM kv WHERE area = $1 AND name = $2`,
	Upsert: `INSERT INTO kv (area, name, value, updated_at) VALUES ($1, $2, $3::jsonb, $4)
ON CONFLICT (area, name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
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
