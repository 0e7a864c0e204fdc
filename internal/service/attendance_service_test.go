package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
)

type mockAttendanceRepo struct {
	records   map[string]*models.Attendance
	found     *models.Attendance
	counts    map[models.AttendanceStatus]int
	deletedID string
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: map[string]*models.Attendance{}}
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	if m.found == nil {
		return nil, sql.ErrNoRows
	}
	return m.found, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) error {
	record.ID = "att-1"
	m.records[record.EnrollmentID+"|"+record.Date.Format("2006-01-02")] = record
	return nil
}

func (m *mockAttendanceRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, enrollmentID string) (map[models.AttendanceStatus]int, error) {
	return m.counts, nil
}

func newAttendanceService(repo *mockAttendanceRepo, enrollment *models.Enrollment) *AttendanceService {
	return NewAttendanceService(repo, &mockGradeEnrollmentRepo{enrollment: enrollment}, nil, nil)
}

func activeAttendanceEnrollment() *models.Enrollment {
	return &models.Enrollment{ID: "enr-1", StudentID: "stu-1", ClassID: "cls-1", Status: models.EnrollmentStatusActive}
}

func TestAttendanceServiceRecordSuccess(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, activeAttendanceEnrollment())

	record, err := svc.Record(context.Background(), RecordAttendanceRequest{
		EnrollmentID: "enr-1",
		Date:         time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC),
		Status:       models.AttendancePresent,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, record.Status)
	assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), record.Date)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceRecordOverwritesSameDay(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, activeAttendanceEnrollment())

	day := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		EnrollmentID: "enr-1", Date: day, Status: models.AttendanceAbsent,
	})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), RecordAttendanceRequest{
		EnrollmentID: "enr-1", Date: day, Status: models.AttendanceLate,
	})
	require.NoError(t, err)

	require.Len(t, repo.records, 1)
	assert.Equal(t, models.AttendanceLate, repo.records["enr-1|2026-02-03"].Status)
}

func TestAttendanceServiceRecordFutureDateRejected(t *testing.T) {
	svc := newAttendanceService(newMockAttendanceRepo(), activeAttendanceEnrollment())

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		EnrollmentID: "enr-1",
		Date:         time.Now().UTC().Add(48 * time.Hour),
		Status:       models.AttendancePresent,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestAttendanceServiceRecordRequiresActiveEnrollment(t *testing.T) {
	enrollment := activeAttendanceEnrollment()
	enrollment.Status = models.EnrollmentStatusCompleted
	svc := newAttendanceService(newMockAttendanceRepo(), enrollment)

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		EnrollmentID: "enr-1",
		Date:         time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Status:       models.AttendancePresent,
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestAttendanceServiceRecordUnknownStatus(t *testing.T) {
	svc := newAttendanceService(newMockAttendanceRepo(), activeAttendanceEnrollment())

	_, err := svc.Record(context.Background(), RecordAttendanceRequest{
		EnrollmentID: "enr-1",
		Date:         time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Status:       models.AttendanceStatus("SLEEPING"),
	})
	requireErrCode(t, err, "VALIDATION_ERROR")
}

func TestAttendanceServiceSummary(t *testing.T) {
	repo := newMockAttendanceRepo()
	repo.counts = map[models.AttendanceStatus]int{
		models.AttendancePresent: 12,
		models.AttendanceAbsent:  2,
		models.AttendanceLate:    1,
	}
	svc := newAttendanceService(repo, activeAttendanceEnrollment())

	summary, err := svc.Summary(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", summary.EnrollmentID)
	assert.Equal(t, 15, summary.Total)
	assert.Equal(t, 12, summary.Counts[models.AttendancePresent])
}

func TestAttendanceServiceDeleteMissing(t *testing.T) {
	svc := newAttendanceService(newMockAttendanceRepo(), activeAttendanceEnrollment())

	err := svc.Delete(context.Background(), "att-missing")
	requireErrCode(t, err, "NOT_FOUND")
}
