package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByIDForStudent(ctx context.Context, q repository.Queryer, id, studentID string) (*models.Enrollment, error)
	ExistsLive(ctx context.Context, q repository.Queryer, studentID, classID, excludeID string) (bool, error)
	HasCompleted(ctx context.Context, q repository.Queryer, studentID, classID string) (bool, error)
	FirstWaitlisted(ctx context.Context, q repository.Queryer, classID string) (*models.Enrollment, error)
	Create(ctx context.Context, q repository.Queryer, enrollment *models.Enrollment) error
	AddStatusChange(ctx context.Context, q repository.Queryer, change *models.EnrollmentStatusChange) error
	StatusHistory(ctx context.Context, id string) ([]models.EnrollmentStatusChange, error)
	UpdateStatus(ctx context.Context, q repository.Queryer, id string, status models.EnrollmentStatus, completedAt *time.Time, grade *float64) error
	Delete(ctx context.Context, q repository.Queryer, id string) error
}

type enrollmentClassRepo interface {
	FindByID(ctx context.Context, q repository.Queryer, id string) (*models.ClassRoom, error)
	CountActiveEnrollments(ctx context.Context, q repository.Queryer, id string) (int, error)
}

type enrollmentStudentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentCourseRepo interface {
	MissingPrerequisites(ctx context.Context, q repository.Queryer, studentID, classID string) ([]models.Course, error)
}

type enrollmentSemesterRepo interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type enrollmentAuditRepo interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type enrollmentGradeRepo interface {
	Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error)
}

// RegisterEnrollmentRequest captures a registration attempt.
type RegisterEnrollmentRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	ClassID   string  `json:"class_id" validate:"required"`
	Waitlist  bool    `json:"waitlist"`
	Notes     *string `json:"notes"`
}

// UpdateEnrollmentStatusRequest moves an enrollment through its lifecycle.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required"`
	Grade  *float64                `json:"grade" validate:"omitempty,min=0,max=100"`
	Reason *string                 `json:"reason"`
}

// EnrollmentService coordinates class registration.
type EnrollmentService struct {
	repo         enrollmentRepository
	classRepo    enrollmentClassRepo
	studentRepo  enrollmentStudentRepo
	courseRepo   enrollmentCourseRepo
	semesterRepo enrollmentSemesterRepo
	auditRepo    enrollmentAuditRepo
	gradeRepo    enrollmentGradeRepo
	store        *repository.Store
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(
	repo enrollmentRepository,
	classRepo enrollmentClassRepo,
	studentRepo enrollmentStudentRepo,
	courseRepo enrollmentCourseRepo,
	semesterRepo enrollmentSemesterRepo,
	auditRepo enrollmentAuditRepo,
	gradeRepo enrollmentGradeRepo,
	store *repository.Store,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:         repo,
		classRepo:    classRepo,
		studentRepo:  studentRepo,
		courseRepo:   courseRepo,
		semesterRepo: semesterRepo,
		auditRepo:    auditRepo,
		gradeRepo:    gradeRepo,
		store:        store,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !models.ValidEnrollmentStatus(filter.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed enrollment information.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// History returns the status history of an enrollment.
func (s *EnrollmentService) History(ctx context.Context, id string) ([]models.EnrollmentStatusChange, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	history, err := s.repo.StatusHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list status history")
	}
	return history, nil
}

// Register enrolls a student into a class section. The duplicate probe,
// capacity count and insert run inside one transaction so two concurrent
// registrations cannot both claim the last seat.
func (s *EnrollmentService) Register(ctx context.Context, actorID string, req RegisterEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.studentRepo.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Notes:     req.Notes,
	}

	txErr := s.store.WithinTx(ctx, func(q repository.Queryer) error {
		class, err := s.classRepo.FindByID(ctx, q, req.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "class section not found")
			}
			return err
		}

		if s.semesterRepo != nil {
			semester, err := s.semesterRepo.FindByID(ctx, class.SemesterID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if semester != nil && semester.Status == models.SemesterStatusArchived {
				return appErrors.Clone(appErrors.ErrValidation, "semester is archived")
			}
		}

		exists, err := s.repo.ExistsLive(ctx, q, req.StudentID, req.ClassID, "")
		if err != nil {
			return err
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "student already registered for this class")
		}

		done, err := s.repo.HasCompleted(ctx, q, req.StudentID, req.ClassID)
		if err != nil {
			return err
		}
		if done {
			return appErrors.Clone(appErrors.ErrConflict, "student already completed this course")
		}

		missing, err := s.courseRepo.MissingPrerequisites(ctx, q, req.StudentID, req.ClassID)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			codes := make([]string, 0, len(missing))
			for _, course := range missing {
				codes = append(codes, course.Code)
			}
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("missing prerequisites: %s", strings.Join(codes, ", ")))
		}

		enrolled, err := s.classRepo.CountActiveEnrollments(ctx, q, req.ClassID)
		if err != nil {
			return err
		}
		if enrolled >= class.MaxEnrollment {
			if !req.Waitlist {
				return appErrors.Clone(appErrors.ErrValidation, "class section is full")
			}
			enrollment.Status = models.EnrollmentStatusWaitlisted
		}

		return s.repo.Create(ctx, q, enrollment)
	})
	if txErr != nil {
		s.recordOutcome("register", "rejected")
		var appErr *appErrors.Error
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(txErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register enrollment")
	}

	s.recordOutcome("register", strings.ToLower(string(enrollment.Status)))
	s.audit(ctx, actorID, models.AuditActionEnroll, enrollment.ID)
	return enrollment, nil
}

// Drop removes a student's own enrollment. The lookup is constrained to the
// requesting student so an enrollment belonging to someone else reads as not
// found. A freed seat promotes the oldest waitlisted student.
func (s *EnrollmentService) Drop(ctx context.Context, studentID, enrollmentID string) error {
	txErr := s.store.WithinTx(ctx, func(q repository.Queryer) error {
		enrollment, err := s.repo.FindByIDForStudent(ctx, q, enrollmentID, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return err
		}

		if enrollment.Status == models.EnrollmentStatusCompleted {
			return appErrors.Clone(appErrors.ErrValidation, "completed enrollments cannot be dropped")
		}

		freedSeat := enrollment.Status == models.EnrollmentStatusActive

		if err := s.repo.Delete(ctx, q, enrollment.ID); err != nil {
			return err
		}

		if freedSeat {
			return s.promoteWaitlisted(ctx, q, enrollment.ClassID)
		}
		return nil
	})
	if txErr != nil {
		s.recordOutcome("drop", "rejected")
		var appErr *appErrors.Error
		if errors.As(txErr, &appErr) {
			return appErr
		}
		return appErrors.Wrap(txErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}

	s.recordOutcome("drop", "dropped")
	s.audit(ctx, studentID, models.AuditActionEnrollDrop, enrollmentID)
	return nil
}

// UpdateStatus moves an enrollment through its lifecycle. Administrative
// operation; owner checks do not apply.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actorID, id string, req UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidEnrollmentStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if enrollment.Status == req.Status {
		return enrollment, nil
	}
	if !validTransition(enrollment.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot move enrollment from %s to %s", enrollment.Status, req.Status))
	}
	grade := req.Grade
	var completedAt *time.Time
	if req.Status == models.EnrollmentStatusCompleted {
		if grade == nil {
			// No explicit grade: roll up the weighted component scores.
			summary, err := s.gradeRepo.Summary(ctx, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate grade components")
			}
			if summary.Components > 0 {
				final := summary.FinalScore
				grade = &final
			} else if enrollment.Grade == nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "completing an enrollment requires a grade or graded components")
			}
		}
		now := time.Now().UTC()
		completedAt = &now
	}

	txErr := s.store.WithinTx(ctx, func(q repository.Queryer) error {
		if err := s.repo.UpdateStatus(ctx, q, id, req.Status, completedAt, grade); err != nil {
			return err
		}
		if err := s.repo.AddStatusChange(ctx, q, &models.EnrollmentStatusChange{
			EnrollmentID: id,
			Status:       req.Status,
			Reason:       req.Reason,
		}); err != nil {
			return err
		}
		// A student leaving an active seat makes room for the waitlist.
		if enrollment.Status == models.EnrollmentStatusActive &&
			(req.Status == models.EnrollmentStatusDropped || req.Status == models.EnrollmentStatusOnHold) {
			return s.promoteWaitlisted(ctx, q, enrollment.ClassID)
		}
		return nil
	})
	if txErr != nil {
		return nil, appErrors.Wrap(txErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}

	s.audit(ctx, actorID, models.AuditActionEnrollStatus, id)
	return s.repo.FindByID(ctx, id)
}

func (s *EnrollmentService) promoteWaitlisted(ctx context.Context, q repository.Queryer, classID string) error {
	next, err := s.repo.FirstWaitlisted(ctx, q, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if err := s.repo.UpdateStatus(ctx, q, next.ID, models.EnrollmentStatusActive, nil, nil); err != nil {
		return err
	}
	reason := "promoted from waitlist"
	return s.repo.AddStatusChange(ctx, q, &models.EnrollmentStatusChange{
		EnrollmentID: next.ID,
		Status:       models.EnrollmentStatusActive,
		Reason:       &reason,
	})
}

// validTransition encodes the enrollment lifecycle. Completed and dropped are
// terminal for administrative updates.
func validTransition(from, to models.EnrollmentStatus) bool {
	switch from {
	case models.EnrollmentStatusActive:
		return to == models.EnrollmentStatusDropped || to == models.EnrollmentStatusCompleted || to == models.EnrollmentStatusOnHold
	case models.EnrollmentStatusWaitlisted:
		return to == models.EnrollmentStatusActive || to == models.EnrollmentStatusDropped
	case models.EnrollmentStatusOnHold:
		return to == models.EnrollmentStatusActive || to == models.EnrollmentStatusDropped
	}
	return false
}

func (s *EnrollmentService) recordOutcome(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordEnrollmentOperation(operation, outcome)
	}
}

func (s *EnrollmentService) audit(ctx context.Context, actorID, action, resourceID string) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "enrollments",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
