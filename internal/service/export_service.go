package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/school-api/internal/models"
	appErrors "github.com/campuskit/school-api/pkg/errors"
	"github.com/campuskit/school-api/pkg/export"
)

type exportEnrollmentRepo interface {
	ListCompletedByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type exportStudentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type exportClassRepo interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassRoomDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportFile is a rendered document ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders transcripts and class rosters.
type ExportService struct {
	enrollments exportEnrollmentRepo
	students    exportStudentRepo
	classes     exportClassRepo
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments exportEnrollmentRepo, students exportStudentRepo, classes exportClassRepo, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		enrollments: enrollments,
		students:    students,
		classes:     classes,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
	}
}

// Transcript renders a PDF listing the student's completed courses with
// grades and earned credits.
func (s *ExportService) Transcript(ctx context.Context, studentID string) (*ExportFile, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	completed, err := s.enrollments.ListCompletedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed enrollments")
	}

	rows := make([]map[string]string, 0, len(completed))
	for _, enrollment := range completed {
		grade := ""
		if enrollment.Grade != nil {
			grade = fmt.Sprintf("%.2f", *enrollment.Grade)
		}
		completedAt := ""
		if enrollment.CompletedAt != nil {
			completedAt = enrollment.CompletedAt.UTC().Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Code":      enrollment.CourseCode,
			"Course":    enrollment.CourseName,
			"Semester":  enrollment.SemesterName,
			"Grade":     grade,
			"Completed": completedAt,
		})
	}

	dataset := export.Dataset{
		Headers: []string{"Code", "Course", "Semester", "Grade", "Completed"},
		Rows:    rows,
		Footer:  fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)),
	}
	title := fmt.Sprintf("Academic Transcript - %s", student.FullName)
	subtitle := fmt.Sprintf("Student Number %s", student.NIS)

	payload, err := s.pdf.Render(dataset, title, subtitle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}

	return &ExportFile{
		Filename:    exportFilename("transcript", student.NIS, "pdf"),
		ContentType: "application/pdf",
		Payload:     payload,
	}, nil
}

// Roster renders a CSV of the active students in a class section.
func (s *ExportService) Roster(ctx context.Context, classID string) (*ExportFile, error) {
	class, err := s.classes.FindDetailByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}

	roster, err := s.enrollments.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	rows := make([]map[string]string, 0, len(roster))
	for _, enrollment := range roster {
		rows = append(rows, map[string]string{
			"NIS":         enrollment.StudentNIS,
			"Name":        enrollment.StudentName,
			"Status":      string(enrollment.Status),
			"Enrolled At": enrollment.EnrolledAt.UTC().Format("2006-01-02"),
		})
	}

	dataset := export.Dataset{
		Headers: []string{"NIS", "Name", "Status", "Enrolled At"},
		Rows:    rows,
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	name := fmt.Sprintf("%s_%s", class.CourseCode, class.Name)
	return &ExportFile{
		Filename:    exportFilename("roster", name, "csv"),
		ContentType: "text/csv",
		Payload:     payload,
	}, nil
}

func exportFilename(kind, raw, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", kind, sanitizeFilename(raw), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
