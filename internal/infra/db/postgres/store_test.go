package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/sqlkv"
)

func TestStore_UsesPostgresStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	s := NewStore(db, sqlkv.AreaSync)

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(Dialect.Upsert)).
		ExpectExec().WithArgs(sqlkv.AreaSync, platform.KeyAPIKey, `"k"`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.Set(ctx, map[string]any{platform.KeyAPIKey: "k"}))

	mock.ExpectQuery(regexp.QuoteMeta(Dialect.Get)).
		WithArgs(sqlkv.AreaSync, platform.KeyAPIKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`"k"`))
	var key string
	require.NoError(t, s.Get(ctx, platform.KeyAPIKey, &key))
	assert.Equal(t, "k", key)
	require.NoError(t, mock.ExpectationsWereMet())
}
