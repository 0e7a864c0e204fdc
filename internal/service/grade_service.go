package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, int, error)
	FindByID(ctx context.Context, id string) (*models.GradeEntry, error)
	ComponentAvailable(ctx context.Context, enrollmentID, component, excludeID string) error
	Create(ctx context.Context, q repository.Queryer, entry *models.GradeEntry) error
	Update(ctx context.Context, entry *models.GradeEntry) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error)
}

type gradeEnrollmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// AddGradeRequest captures one scored component.
type AddGradeRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Component    string  `json:"component" validate:"required"`
	Score        float64 `json:"score" validate:"min=0,max=100"`
	Weight       float64 `json:"weight" validate:"required,gt=0,lte=1"`
}

// UpdateGradeRequest modifies a scored component.
type UpdateGradeRequest struct {
	Component string  `json:"component" validate:"required"`
	Score     float64 `json:"score" validate:"min=0,max=100"`
	Weight    float64 `json:"weight" validate:"required,gt=0,lte=1"`
}

// GradeService coordinates grade components for enrollments.
type GradeService struct {
	repo           gradeRepository
	enrollmentRepo gradeEnrollmentRepo
	store          *repository.Store
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(repo gradeRepository, enrollmentRepo gradeEnrollmentRepo, store *repository.Store, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, enrollmentRepo: enrollmentRepo, store: store, validator: validate, logger: logger}
}

// List returns grade entries with pagination metadata.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return entries, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Add records a new grade component for an enrollment. The combined weight
// across components may not exceed 1.
func (s *GradeService) Add(ctx context.Context, req AddGradeRequest) (*models.GradeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	enrollment, err := s.enrollmentRepo.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grades require an active enrollment")
	}

	if err := s.repo.ComponentAvailable(ctx, req.EnrollmentID, req.Component, ""); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "component already graded for this enrollment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grade component")
	}

	if err := s.checkWeightBudget(ctx, req.EnrollmentID, req.Weight, 0); err != nil {
		return nil, err
	}

	entry := &models.GradeEntry{
		EnrollmentID: req.EnrollmentID,
		Component:    req.Component,
		Score:        req.Score,
		Weight:       req.Weight,
	}
	if err := s.repo.Create(ctx, s.store.Q(), entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}
	return entry, nil
}

// Update modifies a grade component.
func (s *GradeService) Update(ctx context.Context, id string, req UpdateGradeRequest) (*models.GradeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade entry")
	}

	if err := s.repo.ComponentAvailable(ctx, entry.EnrollmentID, req.Component, id); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "component already graded for this enrollment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grade component")
	}

	if err := s.checkWeightBudget(ctx, entry.EnrollmentID, req.Weight, entry.Weight); err != nil {
		return nil, err
	}

	entry.Component = req.Component
	entry.Score = req.Score
	entry.Weight = req.Weight

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	return entry, nil
}

// Delete removes a grade component.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade entry")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}

// Summary returns the weighted aggregate for an enrollment.
func (s *GradeService) Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error) {
	if _, err := s.enrollmentRepo.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	summary, err := s.repo.Summary(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise grades")
	}
	return summary, nil
}

func (s *GradeService) checkWeightBudget(ctx context.Context, enrollmentID string, newWeight, replacedWeight float64) error {
	summary, err := s.repo.Summary(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check weight total")
	}
	const epsilon = 1e-9
	if summary.TotalWeight-replacedWeight+newWeight > 1+epsilon {
		return appErrors.Clone(appErrors.ErrValidation, "combined component weight exceeds 1")
	}
	return nil
}
