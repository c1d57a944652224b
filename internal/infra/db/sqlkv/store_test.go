package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
)

var testDialect = Dialect{
	Goose:  "sqlite3",
	Get:    "SELECT value FROM kv WHERE area = ? AND name = ?",
	Upsert: "INSERT INTO kv (area, name, value, updated_at) VALUES (?, ?, ?, ?)",
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, testDialect, AreaLocal), mock
}

func TestGet_DecodesJSON(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(testDialect.Get)).
		WithArgs(AreaLocal, platform.KeyScansToday).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("4"))

	var n int
	require.NoError(t, s.Get(context.Background(), platform.KeyScansToday, &n))
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NoRowsIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(testDialect.Get)).WillReturnError(sql.ErrNoRows)

	var n int
	assert.ErrorIs(t, s.Get(context.Background(), "missing", &n), platform.ErrNotFound)
}

func TestSet_OneTransaction(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(testDialect.Upsert))
	prep.ExpectExec().WithArgs(AreaLocal, platform.KeyLastScanDate, `"2026-10-19"`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Set(context.Background(), map[string]any{platform.KeyLastScanDate: "2026-10-19"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_FailureRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(testDialect.Upsert)).
		ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Set(context.Background(), map[string]any{platform.KeyScansToday: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_EmptyIsNoop(t *testing.T) {
	s, mock := newMock(t)
	require.NoError(t, s.Set(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_UnencodableValue(t *testing.T) {
	s, _ := newMock(t)
	err := s.Set(context.Background(), map[string]any{"bad": make(chan int)})
	require.Error(t, err)
}
