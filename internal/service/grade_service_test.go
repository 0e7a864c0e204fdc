package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
)

type mockGradeRepo struct {
	found        *models.GradeEntry
	componentErr error
	summary      models.GradeSummary

	created   *models.GradeEntry
	updated   *models.GradeEntry
	deletedID string
}

func (m *mockGradeRepo) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, int, error) {
	return nil, 0, nil
}

func (m *mockGradeRepo) FindByID(ctx context.Context, id string) (*models.GradeEntry, error) {
	if m.found == nil {
		return nil, sql.ErrNoRows
	}
	return m.found, nil
}

func (m *mockGradeRepo) ComponentAvailable(ctx context.Context, enrollmentID, component, excludeID string) error {
	return m.componentErr
}

func (m *mockGradeRepo) Create(ctx context.Context, q repository.Queryer, entry *models.GradeEntry) error {
	entry.ID = "grade-new"
	m.created = entry
	return nil
}

func (m *mockGradeRepo) Update(ctx context.Context, entry *models.GradeEntry) error {
	m.updated = entry
	return nil
}

func (m *mockGradeRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockGradeRepo) Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error) {
	summary := m.summary
	summary.EnrollmentID = enrollmentID
	return &summary, nil
}

type mockGradeEnrollmentRepo struct {
	enrollment *models.Enrollment
}

func (m *mockGradeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func newGradeService(t *testing.T, repo *mockGradeRepo, enrollments *mockGradeEnrollmentRepo) (*GradeService, func()) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	svc := NewGradeService(repo, enrollments, repository.NewStore(sqlx.NewDb(db, "sqlmock")), nil, nil)
	return svc, func() { db.Close() }
}

func activeGradeEnrollment() *mockGradeEnrollmentRepo {
	return &mockGradeEnrollmentRepo{
		enrollment: &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusActive},
	}
}

func TestGradeServiceAddSuccess(t *testing.T) {
	repo := &mockGradeRepo{summary: models.GradeSummary{TotalWeight: 0.6}}
	svc, cleanup := newGradeService(t, repo, activeGradeEnrollment())
	defer cleanup()

	entry, err := svc.Add(context.Background(), AddGradeRequest{
		EnrollmentID: "enr-1",
		Component:    "final_exam",
		Score:        88,
		Weight:       0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "grade-new", entry.ID)
	assert.Equal(t, "final_exam", repo.created.Component)
}

func TestGradeServiceAddExceedsWeightBudget(t *testing.T) {
	repo := &mockGradeRepo{summary: models.GradeSummary{TotalWeight: 0.8}}
	svc, cleanup := newGradeService(t, repo, activeGradeEnrollment())
	defer cleanup()

	_, err := svc.Add(context.Background(), AddGradeRequest{
		EnrollmentID: "enr-1",
		Component:    "final_exam",
		Score:        88,
		Weight:       0.4,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "weight")
	assert.Nil(t, repo.created)
}

func TestGradeServiceAddDuplicateComponent(t *testing.T) {
	repo := &mockGradeRepo{componentErr: fmt.Errorf("grades.component: %w", repository.ErrDuplicate)}
	svc, cleanup := newGradeService(t, repo, activeGradeEnrollment())
	defer cleanup()

	_, err := svc.Add(context.Background(), AddGradeRequest{
		EnrollmentID: "enr-1",
		Component:    "final_exam",
		Score:        88,
		Weight:       0.4,
	})
	requireErrCode(t, err, "CONFLICT")
}

func TestGradeServiceAddRequiresActiveEnrollment(t *testing.T) {
	enrollments := &mockGradeEnrollmentRepo{
		enrollment: &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusDropped},
	}
	svc, cleanup := newGradeService(t, &mockGradeRepo{}, enrollments)
	defer cleanup()

	_, err := svc.Add(context.Background(), AddGradeRequest{
		EnrollmentID: "enr-1",
		Component:    "final_exam",
		Score:        88,
		Weight:       0.4,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestGradeServiceUpdateReplacesOwnWeight(t *testing.T) {
	repo := &mockGradeRepo{
		found:   &models.GradeEntry{ID: "grade-1", EnrollmentID: "enr-1", Component: "final_exam", Weight: 0.4},
		summary: models.GradeSummary{TotalWeight: 1.0},
	}
	svc, cleanup := newGradeService(t, repo, activeGradeEnrollment())
	defer cleanup()

	entry, err := svc.Update(context.Background(), "grade-1", UpdateGradeRequest{
		Component: "final_exam",
		Score:     95,
		Weight:    0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, 95.0, entry.Score)
	require.NotNil(t, repo.updated)
}

func TestGradeServiceDeleteMissing(t *testing.T) {
	svc, cleanup := newGradeService(t, &mockGradeRepo{}, activeGradeEnrollment())
	defer cleanup()

	err := svc.Delete(context.Background(), "grade-404")
	requireErrCode(t, err, "NOT_FOUND")
}
