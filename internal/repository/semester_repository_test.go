package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
)

func TestSemesterRepositoryOverlapExists(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewSemesterRepository(store)

	start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 26, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM semesters WHERE deleted_at IS NULL AND start_date <= $2 AND end_date >= $1 LIMIT 1")).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	overlap, err := repo.OverlapExists(context.Background(), start, end, "")
	require.NoError(t, err)
	assert.True(t, overlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryOverlapExistsSkipsOwnRow(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewSemesterRepository(store)

	start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 26, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND start_date <= $2 AND end_date >= $1 AND id <> $3 LIMIT 1")).
		WithArgs(start, end, "sem-1").
		WillReturnError(sql.ErrNoRows)

	overlap, err := repo.OverlapExists(context.Background(), start, end, "sem-1")
	require.NoError(t, err)
	assert.False(t, overlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSemesterRepositoryFindCurrentMiss(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewSemesterRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("FROM semesters WHERE current = TRUE AND deleted_at IS NULL LIMIT 1")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCurrent(context.Background())
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSemesterRepositoryCreateDefaultsStatus(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewSemesterRepository(store)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO semesters")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	semester := &models.Semester{
		Name:      "2026 Spring",
		StartDate: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 26, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), semester)
	require.NoError(t, err)
	assert.NotEmpty(t, semester.ID)
	assert.Equal(t, models.SemesterStatusPlanned, semester.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
