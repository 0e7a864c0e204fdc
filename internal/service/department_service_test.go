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

type mockDepartmentRepo struct {
	found   *models.Department
	detail  *models.DepartmentDetail
	nameErr error
	codeErr error

	created       *models.Department
	updated       *models.Department
	softDeletedID string
}

func (m *mockDepartmentRepo) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	return nil, 0, nil
}

func (m *mockDepartmentRepo) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if m.found == nil {
		return nil, sql.ErrNoRows
	}
	return m.found, nil
}

func (m *mockDepartmentRepo) FindDetailByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockDepartmentRepo) NameAvailable(ctx context.Context, q repository.Queryer, name, excludeID string) error {
	return m.nameErr
}

func (m *mockDepartmentRepo) CodeAvailable(ctx context.Context, q repository.Queryer, code, excludeID string) error {
	return m.codeErr
}

func (m *mockDepartmentRepo) Create(ctx context.Context, dept *models.Department) error {
	dept.ID = "dept-new"
	m.created = dept
	return nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, dept *models.Department) error {
	m.updated = dept
	return nil
}

func (m *mockDepartmentRepo) SoftDelete(ctx context.Context, id string) error {
	m.softDeletedID = id
	return nil
}

type mockDepartmentTeacherRepo struct {
	teacher *models.Teacher
}

func (m *mockDepartmentTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if m.teacher == nil || m.teacher.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.teacher, nil
}

func newDepartmentService(t *testing.T, repo *mockDepartmentRepo) (*DepartmentService, func()) {
	return newDepartmentServiceWithTeachers(t, repo, &mockDepartmentTeacherRepo{})
}

func newDepartmentServiceWithTeachers(t *testing.T, repo *mockDepartmentRepo, teachers *mockDepartmentTeacherRepo) (*DepartmentService, func()) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	svc := NewDepartmentService(repo, teachers, repository.NewStore(sqlx.NewDb(db, "sqlmock")), nil, nil)
	return svc, func() { db.Close() }
}

func TestDepartmentServiceCreateSuccess(t *testing.T) {
	repo := &mockDepartmentRepo{}
	svc, cleanup := newDepartmentService(t, repo)
	defer cleanup()

	dept, err := svc.Create(context.Background(), CreateDepartmentRequest{
		Name: "Mathematics",
		Code: "MATH",
	})
	require.NoError(t, err)
	assert.Equal(t, "dept-new", dept.ID)
	assert.Equal(t, "MATH", repo.created.Code)
}

func TestDepartmentServiceCreateWithHeadTeacher(t *testing.T) {
	repo := &mockDepartmentRepo{}
	teachers := &mockDepartmentTeacherRepo{teacher: &models.Teacher{ID: "tch-1"}}
	svc, cleanup := newDepartmentServiceWithTeachers(t, repo, teachers)
	defer cleanup()

	headID := "tch-1"
	dept, err := svc.Create(context.Background(), CreateDepartmentRequest{
		Name:   "Mathematics",
		Code:   "MATH",
		HeadID: &headID,
	})
	require.NoError(t, err)
	require.NotNil(t, dept.HeadID)
	assert.Equal(t, "tch-1", *dept.HeadID)
}

func TestDepartmentServiceCreateUnknownHeadRejected(t *testing.T) {
	svc, cleanup := newDepartmentService(t, &mockDepartmentRepo{})
	defer cleanup()

	headID := "tch-missing"
	_, err := svc.Create(context.Background(), CreateDepartmentRequest{
		Name:   "Mathematics",
		Code:   "MATH",
		HeadID: &headID,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestDepartmentServiceUpdateUnknownHeadRejected(t *testing.T) {
	repo := &mockDepartmentRepo{found: &models.Department{ID: "dept-1", Name: "Mathematics", Code: "MATH"}}
	svc, cleanup := newDepartmentService(t, repo)
	defer cleanup()

	headID := "tch-missing"
	_, err := svc.Update(context.Background(), "dept-1", UpdateDepartmentRequest{
		Name:   "Mathematics",
		Code:   "MATH",
		HeadID: &headID,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestDepartmentServiceCreateDuplicateCode(t *testing.T) {
	repo := &mockDepartmentRepo{codeErr: fmt.Errorf("departments.code: %w", repository.ErrDuplicate)}
	svc, cleanup := newDepartmentService(t, repo)
	defer cleanup()

	_, err := svc.Create(context.Background(), CreateDepartmentRequest{
		Name: "Mathematics",
		Code: "MATH",
	})
	requireErrCode(t, err, "CONFLICT")
	assert.Contains(t, err.Error(), "code")
}

func TestDepartmentServiceCreateLowercaseCodeRejected(t *testing.T) {
	svc, cleanup := newDepartmentService(t, &mockDepartmentRepo{})
	defer cleanup()

	_, err := svc.Create(context.Background(), CreateDepartmentRequest{
		Name: "Mathematics",
		Code: "math",
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestDepartmentServiceDeleteWithTeachersRefused(t *testing.T) {
	repo := &mockDepartmentRepo{
		detail: &models.DepartmentDetail{
			Department:   models.Department{ID: "dept-1", Name: "Mathematics"},
			TeacherCount: 4,
		},
	}
	svc, cleanup := newDepartmentService(t, repo)
	defer cleanup()

	err := svc.Delete(context.Background(), "dept-1")
	requireErrCode(t, err, "PRECONDITION_FAILED")
	assert.Contains(t, err.Error(), "teachers")
	assert.Empty(t, repo.softDeletedID)
}

func TestDepartmentServiceDeleteWithCoursesRefused(t *testing.T) {
	repo := &mockDepartmentRepo{
		detail: &models.DepartmentDetail{
			Department:  models.Department{ID: "dept-1", Name: "Mathematics"},
			CourseCount: 2,
		},
	}
	svc, cleanup := newDepartmentService(t, repo)
	defer cleanup()

	err := svc.Delete(context.Background(), "dept-1")
	requireErrCode(t, err, "PRECONDITION_FAILED")
	assert.Contains(t, err.Error(), "courses")
}

func TestDepartmentServiceDeleteEmptyDepartment(t *testing.T) {
	repo := &mockDepartmentRepo{
		detail: &models.DepartmentDetail{
			Department: models.Department{ID: "dept-1", Name: "Mathematics"},
		},
	}
	svc, cleanup := newDepartmentService(t, repo)
	defer cleanup()

	err := svc.Delete(context.Background(), "dept-1")
	require.NoError(t, err)
	assert.Equal(t, "dept-1", repo.softDeletedID)
}
