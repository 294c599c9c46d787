// AngelaMos | 2026
// postgres_test.go

package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/core"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgres(sqlx.NewDb(db, "pgx"), "", "profile", "tab-a"), mock
}

func TestPostgres_Get(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs("profile", KeyToken).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("tok"))

	v, err := p.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissing(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs("profile", KeyUser).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := p.Get(context.Background(), KeyUser)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetManyIsTransactional(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
		WithArgs("profile", KeyTenant, `{"id":"t1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
		WithArgs("profile", KeyToken, "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(notifyQuery)).
		WithArgs(notifyChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := p.SetMany(context.Background(), map[string]string{
		KeyToken:  "tok",
		KeyTenant: `{"id":"t1"}`,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetManyRollsBack(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertQuery)).
		WithArgs("profile", KeyToken, "tok").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := p.SetMany(context.Background(), map[string]string{KeyToken: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	for _, k := range SessionKeys {
		mock.ExpectExec(regexp.QuoteMeta(deleteQuery)).
			WithArgs("profile", k).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta(notifyQuery)).
		WithArgs(notifyChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, p.Delete(context.Background(), SessionKeys...))
	assert.NoError(t, mock.ExpectationsWereMet())
}
