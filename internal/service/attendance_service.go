package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/school-api/internal/models"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Upsert(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, enrollmentID string) (map[models.AttendanceStatus]int, error)
}

type attendanceEnrollmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// RecordAttendanceRequest writes one day's attendance for an enrollment.
type RecordAttendanceRequest struct {
	EnrollmentID string                  `json:"enrollment_id" validate:"required"`
	Date         time.Time               `json:"date" validate:"required"`
	Status       models.AttendanceStatus `json:"status" validate:"required"`
	Note         *string                 `json:"note"`
}

// AttendanceSummary aggregates per-status counts for one enrollment.
type AttendanceSummary struct {
	EnrollmentID string                          `json:"enrollment_id"`
	Counts       map[models.AttendanceStatus]int `json:"counts"`
	Total        int                             `json:"total"`
}

// AttendanceService coordinates attendance records.
type AttendanceService struct {
	repo           attendanceRepository
	enrollmentRepo attendanceEnrollmentRepo
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, enrollmentRepo attendanceEnrollmentRepo, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, enrollmentRepo: enrollmentRepo, validator: validate, logger: logger}
}

// List returns attendance records with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	if filter.Status != "" && !models.ValidAttendanceStatus(filter.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Record writes an attendance entry. Writing the same enrollment and date
// twice overwrites the earlier entry.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !models.ValidAttendanceStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	if req.Date.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be recorded for a future date")
	}

	enrollment, err := s.enrollmentRepo.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance requires an active enrollment")
	}

	record := &models.Attendance{
		EnrollmentID: req.EnrollmentID,
		Date:         req.Date.Truncate(24 * time.Hour),
		Status:       req.Status,
		Note:         req.Note,
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return record, nil
}

// Delete removes an attendance entry.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance record")
	}
	return nil
}

// Summary returns per-status counts for one enrollment.
func (s *AttendanceService) Summary(ctx context.Context, enrollmentID string) (*AttendanceSummary, error) {
	if _, err := s.enrollmentRepo.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	counts, err := s.repo.Summary(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}

	total := 0
	for _, count := range counts {
		total += count
	}
	return &AttendanceSummary{EnrollmentID: enrollmentID, Counts: counts, Total: total}, nil
}
