package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/pkg/export"
)

type mockExportEnrollmentRepo struct {
	completed []models.EnrollmentDetail
	roster    []models.EnrollmentDetail
}

func (m *mockExportEnrollmentRepo) ListCompletedByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return m.completed, nil
}

func (m *mockExportEnrollmentRepo) ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return m.roster, nil
}

type mockExportStudentRepo struct {
	student *models.Student
}

func (m *mockExportStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

type mockExportClassRepo struct {
	detail *models.ClassRoomDetail
}

func (m *mockExportClassRepo) FindDetailByID(ctx context.Context, id string) (*models.ClassRoomDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

type recordingPDFRenderer struct {
	dataset  export.Dataset
	title    string
	subtitle string
}

func (r *recordingPDFRenderer) Render(data export.Dataset, title, subtitle string) ([]byte, error) {
	r.dataset = data
	r.title = title
	r.subtitle = subtitle
	return []byte("pdf-bytes"), nil
}

func TestExportServiceTranscript(t *testing.T) {
	grade := 91.5
	completedAt := time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC)
	enrollments := &mockExportEnrollmentRepo{
		completed: []models.EnrollmentDetail{
			{
				Enrollment:   models.Enrollment{Status: models.EnrollmentStatusCompleted, Grade: &grade, CompletedAt: &completedAt},
				CourseCode:   "MATH101",
				CourseName:   "Algebra I",
				SemesterName: "2025 Fall",
			},
		},
	}
	students := &mockExportStudentRepo{
		student: &models.Student{ID: "stu-1", NIS: "2025001", FullName: "Rina Wulandari"},
	}
	pdf := &recordingPDFRenderer{}
	svc := NewExportService(enrollments, students, &mockExportClassRepo{}, nil, nil, pdf)

	file, err := svc.Transcript(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "transcript_2025001_"))
	assert.Equal(t, []byte("pdf-bytes"), file.Payload)

	assert.Equal(t, "Academic Transcript - Rina Wulandari", pdf.title)
	assert.Equal(t, "Student Number 2025001", pdf.subtitle)
	require.Len(t, pdf.dataset.Rows, 1)
	assert.Equal(t, "MATH101", pdf.dataset.Rows[0]["Code"])
	assert.Equal(t, "91.50", pdf.dataset.Rows[0]["Grade"])
	assert.Equal(t, "2025-12-19", pdf.dataset.Rows[0]["Completed"])
}

func TestExportServiceTranscriptUnknownStudent(t *testing.T) {
	svc := NewExportService(&mockExportEnrollmentRepo{}, &mockExportStudentRepo{}, &mockExportClassRepo{}, nil, nil, &recordingPDFRenderer{})

	_, err := svc.Transcript(context.Background(), "stu-404")
	requireErrCode(t, err, "NOT_FOUND")
}

func TestExportServiceRosterCSV(t *testing.T) {
	enrollments := &mockExportEnrollmentRepo{
		roster: []models.EnrollmentDetail{
			{
				Enrollment:  models.Enrollment{Status: models.EnrollmentStatusActive, EnrolledAt: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)},
				StudentNIS:  "2025001",
				StudentName: "Rina Wulandari",
			},
		},
	}
	classes := &mockExportClassRepo{
		detail: &models.ClassRoomDetail{
			ClassRoom:  models.ClassRoom{ID: "class-1", Name: "Section A"},
			CourseCode: "MATH101",
		},
	}
	svc := NewExportService(enrollments, &mockExportStudentRepo{}, classes, nil, nil, nil)

	file, err := svc.Roster(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "roster_MATH101_Section_A_"))

	content := string(file.Payload)
	assert.Contains(t, content, "NIS,Name,Status,Enrolled At")
	assert.Contains(t, content, "2025001,Rina Wulandari,ACTIVE,2026-01-15")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "Section_A", sanitizeFilename("Section A"))
	assert.Equal(t, "a-b", sanitizeFilename("a/b"))
}
