package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newStoreMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	store := NewStore(sqlx.NewDb(db, "sqlmock"))
	return store, mock, func() { db.Close() }
}

func TestEnsureUniqueAvailable(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE code = $1 LIMIT 1")).
		WithArgs("MATH101").
		WillReturnError(sql.ErrNoRows)

	err := EnsureUnique(context.Background(), store.Q(), UniqueCheck{Table: "courses", Column: "code", Value: "MATH101"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUniqueCollision(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE code = $1 LIMIT 1")).
		WithArgs("MATH101").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	err := EnsureUnique(context.Background(), store.Q(), UniqueCheck{Table: "courses", Column: "code", Value: "MATH101"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestEnsureUniqueExcludesSelf(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE nis = $1 AND deleted_at IS NULL AND id <> $2 LIMIT 1")).
		WithArgs("12345", "stu-1").
		WillReturnError(sql.ErrNoRows)

	err := EnsureUnique(context.Background(), store.Q(), UniqueCheck{
		Table:    "students",
		Column:   "nis",
		Value:    "12345",
		Exclude:  "stu-1",
		LiveOnly: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOneNoRows(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM rooms WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	type row struct {
		ID string `db:"id"`
	}
	_, err := GetOne[row](context.Background(), store.Q(), "SELECT id FROM rooms WHERE id = $1", "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWithinTxCommits(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms SET capacity = $1")).
		WithArgs(40).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(q Queryer) error {
		_, execErr := q.ExecContext(context.Background(), "UPDATE rooms SET capacity = $1", 40)
		return execErr
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(q Queryer) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
