package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	existsLive     bool
	hasCompleted   bool
	waitlisted     *models.Enrollment
	found          *models.Enrollment
	foundForOwner  *models.Enrollment
	detail         *models.EnrollmentDetail
	history        []models.EnrollmentStatusChange
	createErr      error

	created       *models.Enrollment
	deletedID     string
	statusUpdates []models.EnrollmentStatus
	gradeUpdates  []*float64
	changes       []models.EnrollmentStatusChange
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.found == nil {
		return nil, sql.ErrNoRows
	}
	return m.found, nil
}

func (m *mockEnrollmentRepo) FindByIDForStudent(ctx context.Context, q repository.Queryer, id, studentID string) (*models.Enrollment, error) {
	if m.foundForOwner == nil {
		return nil, sql.ErrNoRows
	}
	return m.foundForOwner, nil
}

func (m *mockEnrollmentRepo) ExistsLive(ctx context.Context, q repository.Queryer, studentID, classID, excludeID string) (bool, error) {
	return m.existsLive, nil
}

func (m *mockEnrollmentRepo) HasCompleted(ctx context.Context, q repository.Queryer, studentID, classID string) (bool, error) {
	return m.hasCompleted, nil
}

func (m *mockEnrollmentRepo) FirstWaitlisted(ctx context.Context, q repository.Queryer, classID string) (*models.Enrollment, error) {
	if m.waitlisted == nil {
		return nil, sql.ErrNoRows
	}
	return m.waitlisted, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, q repository.Queryer, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) AddStatusChange(ctx context.Context, q repository.Queryer, change *models.EnrollmentStatusChange) error {
	m.changes = append(m.changes, *change)
	return nil
}

func (m *mockEnrollmentRepo) StatusHistory(ctx context.Context, id string) ([]models.EnrollmentStatusChange, error) {
	return m.history, nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, q repository.Queryer, id string, status models.EnrollmentStatus, completedAt *time.Time, grade *float64) error {
	m.statusUpdates = append(m.statusUpdates, status)
	m.gradeUpdates = append(m.gradeUpdates, grade)
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, q repository.Queryer, id string) error {
	m.deletedID = id
	return nil
}

type mockEnrollmentClassRepo struct {
	class    *models.ClassRoom
	enrolled int
}

func (m *mockEnrollmentClassRepo) FindByID(ctx context.Context, q repository.Queryer, id string) (*models.ClassRoom, error) {
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

func (m *mockEnrollmentClassRepo) CountActiveEnrollments(ctx context.Context, q repository.Queryer, id string) (int, error) {
	return m.enrolled, nil
}

type mockEnrollmentStudentRepo struct {
	student *models.Student
}

func (m *mockEnrollmentStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

type mockEnrollmentCourseRepo struct {
	missing []models.Course
}

func (m *mockEnrollmentCourseRepo) MissingPrerequisites(ctx context.Context, q repository.Queryer, studentID, classID string) ([]models.Course, error) {
	return m.missing, nil
}

type mockEnrollmentSemesterRepo struct {
	semester *models.Semester
}

func (m *mockEnrollmentSemesterRepo) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if m.semester == nil {
		return nil, sql.ErrNoRows
	}
	return m.semester, nil
}

type mockAuditSink struct {
	logs []models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

type mockEnrollmentGradeRepo struct {
	summary models.GradeSummary
}

func (m *mockEnrollmentGradeRepo) Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error) {
	summary := m.summary
	summary.EnrollmentID = enrollmentID
	return &summary, nil
}

type enrollmentFixture struct {
	svc      *EnrollmentService
	repo     *mockEnrollmentRepo
	classes  *mockEnrollmentClassRepo
	students *mockEnrollmentStudentRepo
	courses  *mockEnrollmentCourseRepo
	audit    *mockAuditSink
	grades   *mockEnrollmentGradeRepo
	dbMock   sqlmock.Sqlmock
}

func newEnrollmentFixture(t *testing.T) (*enrollmentFixture, func()) {
	db, dbMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	f := &enrollmentFixture{
		repo: &mockEnrollmentRepo{},
		classes: &mockEnrollmentClassRepo{
			class: &models.ClassRoom{ID: "class-1", SemesterID: "sem-1", MaxEnrollment: 2},
		},
		students: &mockEnrollmentStudentRepo{
			student: &models.Student{ID: "stu-1", FullName: "Rina Wulandari", Active: true},
		},
		courses: &mockEnrollmentCourseRepo{},
		audit:   &mockAuditSink{},
		grades:  &mockEnrollmentGradeRepo{},
		dbMock:  dbMock,
	}
	f.svc = NewEnrollmentService(
		f.repo,
		f.classes,
		f.students,
		f.courses,
		&mockEnrollmentSemesterRepo{semester: &models.Semester{ID: "sem-1", Status: models.SemesterStatusActive}},
		f.audit,
		f.grades,
		repository.NewStore(sqlx.NewDb(db, "sqlmock")),
		nil,
		nil,
		nil,
	)
	return f, func() { db.Close() }
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestEnrollmentServiceRegisterSuccess(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	enrollment, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NotNil(t, f.repo.created)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionEnroll, f.audit.logs[0].Action)
	require.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestEnrollmentServiceRegisterDuplicateRejected(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.existsLive = true

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	_, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	requireErrCode(t, err, "CONFLICT")
	assert.Nil(t, f.repo.created)
	require.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestEnrollmentServiceRegisterRetakeRejected(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.hasCompleted = true

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	_, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	requireErrCode(t, err, "CONFLICT")
}

func TestEnrollmentServiceRegisterFullClassRejected(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.classes.enrolled = 2

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	_, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "full")
}

func TestEnrollmentServiceRegisterFullClassWaitlists(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.classes.enrolled = 2

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	enrollment, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
		Waitlist:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, enrollment.Status)
}

func TestEnrollmentServiceRegisterMissingPrerequisites(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.courses.missing = []models.Course{{ID: "crs-1", Code: "MATH101"}}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	_, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	requireErrCode(t, err, "PRECONDITION_FAILED")
	assert.Contains(t, err.Error(), "MATH101")
}

func TestEnrollmentServiceRegisterInactiveStudent(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.students.student.Active = false

	_, err := f.svc.Register(context.Background(), "user-1", RegisterEnrollmentRequest{
		StudentID: "stu-1",
		ClassID:   "class-1",
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestEnrollmentServiceDropForeignReadsAsNotFound(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	err := f.svc.Drop(context.Background(), "stu-other", "enr-1")
	requireErrCode(t, err, "NOT_FOUND")
	assert.Empty(t, f.repo.deletedID)
}

func TestEnrollmentServiceDropCompletedRejected(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.foundForOwner = &models.Enrollment{ID: "enr-1", StudentID: "stu-1", ClassID: "class-1", Status: models.EnrollmentStatusCompleted}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	err := f.svc.Drop(context.Background(), "stu-1", "enr-1")
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestEnrollmentServiceDropPromotesOldestWaitlisted(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.foundForOwner = &models.Enrollment{ID: "enr-1", StudentID: "stu-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}
	f.repo.waitlisted = &models.Enrollment{ID: "enr-9", StudentID: "stu-9", ClassID: "class-1", Status: models.EnrollmentStatusWaitlisted}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	err := f.svc.Drop(context.Background(), "stu-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", f.repo.deletedID)
	require.Len(t, f.repo.statusUpdates, 1)
	assert.Equal(t, models.EnrollmentStatusActive, f.repo.statusUpdates[0])
	require.Len(t, f.repo.changes, 1)
	require.NotNil(t, f.repo.changes[0].Reason)
	assert.Equal(t, "promoted from waitlist", *f.repo.changes[0].Reason)
	require.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestEnrollmentServiceDropWaitlistedFreesNoSeat(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.foundForOwner = &models.Enrollment{ID: "enr-1", StudentID: "stu-1", ClassID: "class-1", Status: models.EnrollmentStatusWaitlisted}
	f.repo.waitlisted = &models.Enrollment{ID: "enr-9", Status: models.EnrollmentStatusWaitlisted}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	err := f.svc.Drop(context.Background(), "stu-1", "enr-1")
	require.NoError(t, err)
	assert.Empty(t, f.repo.statusUpdates)
}

func TestEnrollmentServiceUpdateStatusRejectsInvalidTransition(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.found = &models.Enrollment{ID: "enr-1", ClassID: "class-1", Status: models.EnrollmentStatusCompleted}

	_, err := f.svc.UpdateStatus(context.Background(), "user-1", "enr-1", UpdateEnrollmentStatusRequest{
		Status: models.EnrollmentStatusActive,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestEnrollmentServiceUpdateStatusCompletionRequiresGrade(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.found = &models.Enrollment{ID: "enr-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}

	_, err := f.svc.UpdateStatus(context.Background(), "user-1", "enr-1", UpdateEnrollmentStatusRequest{
		Status: models.EnrollmentStatusCompleted,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
	assert.Contains(t, err.Error(), "grade")
}

func TestEnrollmentServiceUpdateStatusCompletionRollsUpComponents(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.found = &models.Enrollment{ID: "enr-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}
	f.grades.summary = models.GradeSummary{FinalScore: 87.5, TotalWeight: 1.0, Components: 3}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	_, err := f.svc.UpdateStatus(context.Background(), "user-1", "enr-1", UpdateEnrollmentStatusRequest{
		Status: models.EnrollmentStatusCompleted,
	})
	require.NoError(t, err)
	require.Len(t, f.repo.gradeUpdates, 1)
	require.NotNil(t, f.repo.gradeUpdates[0])
	assert.InDelta(t, 87.5, *f.repo.gradeUpdates[0], 1e-9)
}

func TestEnrollmentServiceUpdateStatusExplicitGradeWins(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.found = &models.Enrollment{ID: "enr-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}
	f.grades.summary = models.GradeSummary{FinalScore: 70.0, TotalWeight: 1.0, Components: 2}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	grade := 95.0
	_, err := f.svc.UpdateStatus(context.Background(), "user-1", "enr-1", UpdateEnrollmentStatusRequest{
		Status: models.EnrollmentStatusCompleted,
		Grade:  &grade,
	})
	require.NoError(t, err)
	require.Len(t, f.repo.gradeUpdates, 1)
	require.NotNil(t, f.repo.gradeUpdates[0])
	assert.InDelta(t, 95.0, *f.repo.gradeUpdates[0], 1e-9)
}

func TestEnrollmentServiceUpdateStatusRecordsHistory(t *testing.T) {
	f, cleanup := newEnrollmentFixture(t)
	defer cleanup()
	f.repo.found = &models.Enrollment{ID: "enr-1", ClassID: "class-1", Status: models.EnrollmentStatusActive}

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	grade := 92.0
	_, err := f.svc.UpdateStatus(context.Background(), "user-1", "enr-1", UpdateEnrollmentStatusRequest{
		Status: models.EnrollmentStatusCompleted,
		Grade:  &grade,
	})
	require.NoError(t, err)
	require.Len(t, f.repo.statusUpdates, 1)
	assert.Equal(t, models.EnrollmentStatusCompleted, f.repo.statusUpdates[0])
	require.Len(t, f.repo.changes, 1)
	assert.Equal(t, models.EnrollmentStatusCompleted, f.repo.changes[0].Status)
}
