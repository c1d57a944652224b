// Package sqlkv implements platform.Storage on a SQL table keyed by
// (area, name). The sqlite, postgres and mysql packages supply dialects.
package sqlkv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
)

// Storage areas. Sync holds user settings, local holds quota and results.
const (
	AreaSync  = "sync"
	AreaLocal = "local"
)

// Dialect carries the statements that differ between drivers.
type Dialect struct {
	// Goose is the goose dialect name.
	Goose string
	// Get selects value by area and name.
	Get string
	// Upsert inserts or replaces (area, name, value, updated_at).
	Upsert string
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	area    string
}

var _ platform.Storage = (*Store)(nil)

func New(db *sql.DB, d Dialect, area string) *Store {
	return &Store{db: db, dialect: d, area: area}
}

func (s *Store) Get(ctx context.Context, key string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, s.dialect.Get, s.area, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return platform.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", s.area, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s/%s: %w", s.area, key, err)
	}
	return nil
}

// Set writes all values in one transaction.
func (s *Store) Set(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[k] = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.dialect.Upsert)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for k, v := range encoded {
		if _, err := stmt.ExecContext(ctx, s.area, k, v, now); err != nil {
			return fmt.Errorf("set %s/%s: %w", s.area, k, err)
		}
	}
	return tx.Commit()
}

// Check pings the database; it backs the readiness probe.
func (s *Store) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// goose keeps its base FS and dialect in package state
var migrateMu sync.Mutex

// Migrate applies every pending migration found at the root of fsys.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, d Dialect) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.Goose); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
