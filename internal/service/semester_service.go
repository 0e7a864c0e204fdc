package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindCurrent(ctx context.Context) (*models.Semester, error)
	NameAvailable(ctx context.Context, q repository.Queryer, name, excludeID string) error
	OverlapExists(ctx context.Context, start, end time.Time, excludeID string) (bool, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	SetCurrent(ctx context.Context, id string) error
	CountClassRooms(ctx context.Context, id string) (int, error)
	SoftDelete(ctx context.Context, id string) error
}

// CreateSemesterRequest captures semester creation payload.
type CreateSemesterRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// UpdateSemesterRequest modifies semester fields.
type UpdateSemesterRequest struct {
	Name      string                `json:"name" validate:"required"`
	StartDate time.Time             `json:"start_date" validate:"required"`
	EndDate   time.Time             `json:"end_date" validate:"required"`
	Status    models.SemesterStatus `json:"status" validate:"required"`
}

// semesterCurrentKey caches the current-semester lookup. It lives under the
// catalog: prefix so catalog-wide invalidation clears it too.
const semesterCurrentKey = "catalog:semester:current"

// SemesterService coordinates semester operations.
type SemesterService struct {
	repo      semesterRepository
	store     *repository.Store
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs a SemesterService.
func NewSemesterService(repo semesterRepository, store *repository.Store, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, store: store, cache: cache, validator: validate, logger: logger}
}

// List returns semesters with pagination metadata.
func (s *SemesterService) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, *models.Pagination, error) {
	semesters, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one semester by ID.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// Current returns the semester flagged as current, served from cache when warm.
func (s *SemesterService) Current(ctx context.Context) (*models.Semester, error) {
	var cached models.Semester
	if hit, err := s.cache.Get(ctx, semesterCurrentKey, &cached); err == nil && hit {
		return &cached, nil
	}

	semester, err := s.repo.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current semester set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current semester")
	}

	if err := s.cache.Set(ctx, semesterCurrentKey, semester, 0); err != nil {
		s.logger.Warn("failed to cache current semester", zap.Error(err))
	}
	return semester, nil
}

// Create adds a new semester. The date range must not overlap any live
// semester.
func (s *SemesterService) Create(ctx context.Context, req CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	if err := s.checkDates(ctx, req.Name, req.StartDate, req.EndDate, ""); err != nil {
		return nil, err
	}

	semester := &models.Semester{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	s.invalidateCurrent(ctx)
	return semester, nil
}

// Update modifies a semester record.
func (s *SemesterService) Update(ctx context.Context, id string, req UpdateSemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	if !models.ValidSemesterStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown semester status")
	}

	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	if err := s.checkDates(ctx, req.Name, req.StartDate, req.EndDate, id); err != nil {
		return nil, err
	}

	semester.Name = req.Name
	semester.StartDate = req.StartDate
	semester.EndDate = req.EndDate
	semester.Status = req.Status

	if err := s.repo.Update(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update semester")
	}
	s.invalidateCurrent(ctx)
	return semester, nil
}

// SetCurrent flags the semester as current, clearing the flag elsewhere.
func (s *SemesterService) SetCurrent(ctx context.Context, id string) (*models.Semester, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	if err := s.repo.SetCurrent(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current semester")
	}
	s.invalidateCurrent(ctx)
	return s.Get(ctx, id)
}

// Delete soft deletes a semester. Semesters with class sections cannot be
// removed.
func (s *SemesterService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}

	count, err := s.repo.CountClassRooms(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class sections")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "semester has class sections")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete semester")
	}
	s.invalidateCurrent(ctx)
	return nil
}

func (s *SemesterService) invalidateCurrent(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "catalog:semester:*"); err != nil {
		s.logger.Warn("failed to invalidate current semester cache", zap.Error(err))
	}
}

func (s *SemesterService) checkDates(ctx context.Context, name string, start, end time.Time, excludeID string) error {
	if err := s.repo.NameAvailable(ctx, s.store.Q(), name, excludeID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "semester name already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester name")
	}

	overlaps, err := s.repo.OverlapExists(ctx, start, end, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester dates")
	}
	if overlaps {
		return appErrors.Clone(appErrors.ErrValidation, "semester dates overlap an existing semester")
	}
	return nil
}
