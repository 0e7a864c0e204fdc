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

func TestEnrollmentRepositoryExistsLive(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4, $5) LIMIT 1")).
		WithArgs("stu-1", "class-1", models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted, models.EnrollmentStatusOnHold).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsLive(context.Background(), store.Q(), "stu-1", "class-1", "")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsLiveExcludesCurrent(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4, $5) AND id <> $6 LIMIT 1")).
		WithArgs("stu-1", "class-1", models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted, models.EnrollmentStatusOnHold, "enr-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsLive(context.Background(), store.Q(), "stu-1", "class-1", "enr-1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHasCompleted(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("cr.course_id = (SELECT course_id FROM class_rooms WHERE id = $3)")).
		WithArgs("stu-1", models.EnrollmentStatusCompleted, "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	done, err := repo.HasCompleted(context.Background(), store.Q(), "stu-1", "class-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestEnrollmentRepositoryCreateRecordsHistory(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_status_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", ClassID: "class-1"}
	err := repo.Create(context.Background(), store.Q(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	completedAt := time.Now().UTC()
	grade := 88.5
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, completed_at = $3, grade = COALESCE($4, grade), updated_at = $5 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusCompleted, &completedAt, &grade, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), store.Q(), "enr-1", models.EnrollmentStatusCompleted, &completedAt, &grade)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDForStudentMiss(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 AND student_id = $2")).
		WithArgs("enr-1", "stu-other").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIDForStudent(context.Background(), store.Q(), "enr-1", "stu-other")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryFirstWaitlisted(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(store)

	enrolledAt := time.Now().UTC().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "status", "enrolled_at", "completed_at", "grade", "notes", "created_at", "updated_at"}).
		AddRow("enr-9", "stu-9", "class-1", models.EnrollmentStatusWaitlisted, enrolledAt, nil, nil, nil, enrolledAt, enrolledAt)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY enrolled_at ASC LIMIT 1")).
		WithArgs("class-1", models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	enrollment, err := repo.FirstWaitlisted(context.Background(), store.Q(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-9", enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, enrollment.Status)
}
