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

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	NameAvailable(ctx context.Context, q repository.Queryer, name, excludeID string) error
	CodeAvailable(ctx context.Context, q repository.Queryer, code, excludeID string) error
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	CountClassRooms(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	Prerequisites(ctx context.Context, id string) ([]models.Course, error)
	ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error
}

type courseDepartmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// CreateCourseRequest captures course creation payload.
type CreateCourseRequest struct {
	Name         string  `json:"name" validate:"required"`
	Code         string  `json:"code" validate:"required"`
	Description  *string `json:"description"`
	DepartmentID string  `json:"department_id" validate:"required"`
	Credits      int     `json:"credits" validate:"required,min=1,max=10"`
	Required     bool    `json:"required"`
}

// UpdateCourseRequest modifies course fields.
type UpdateCourseRequest struct {
	Name         string              `json:"name" validate:"required"`
	Code         string              `json:"code" validate:"required"`
	Description  *string             `json:"description"`
	DepartmentID string              `json:"department_id" validate:"required"`
	Credits      int                 `json:"credits" validate:"required,min=1,max=10"`
	Required     bool                `json:"required"`
	Status       models.CourseStatus `json:"status" validate:"required"`
}

// SetPrerequisitesRequest replaces a course's prerequisite list.
type SetPrerequisitesRequest struct {
	PrerequisiteIDs []string `json:"prerequisite_ids"`
}

// CourseService coordinates course and prerequisite operations.
type CourseService struct {
	repo      courseRepository
	deptRepo  courseDepartmentRepo
	store     *repository.Store
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, deptRepo courseDepartmentRepo, store *repository.Store, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, deptRepo: deptRepo, store: store, cache: cache, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed course information including prerequisites.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return detail, nil
}

// Create adds a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.checkIdentity(ctx, req.Name, req.Code, ""); err != nil {
		return nil, err
	}
	if _, err := s.deptRepo.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate department")
	}

	course := &models.Course{
		Name:         req.Name,
		Code:         req.Code,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
		Credits:      req.Credits,
		Required:     req.Required,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Update modifies a course record.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if !models.ValidCourseStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course status")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.checkIdentity(ctx, req.Name, req.Code, id); err != nil {
		return nil, err
	}
	if _, err := s.deptRepo.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate department")
	}

	course.Name = req.Name
	course.Code = req.Code
	course.Description = req.Description
	course.DepartmentID = req.DepartmentID
	course.Credits = req.Credits
	course.Required = req.Required
	course.Status = req.Status

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course permanently. Courses with class sections in any
// semester cannot be removed.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	count, err := s.repo.CountClassRooms(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class sections")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course has class sections")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// Prerequisites lists a course's prerequisites.
func (s *CourseService) Prerequisites(ctx context.Context, id string) ([]models.Course, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	prereqs, err := s.repo.Prerequisites(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
	}
	return prereqs, nil
}

// SetPrerequisites replaces the prerequisite list for a course.
func (s *CourseService) SetPrerequisites(ctx context.Context, id string, req SetPrerequisitesRequest) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	seen := make(map[string]struct{}, len(req.PrerequisiteIDs))
	for _, prereqID := range req.PrerequisiteIDs {
		if prereqID == id {
			return appErrors.Clone(appErrors.ErrValidation, "course cannot be its own prerequisite")
		}
		if _, ok := seen[prereqID]; ok {
			return appErrors.Clone(appErrors.ErrValidation, "duplicate prerequisite")
		}
		seen[prereqID] = struct{}{}
		if _, err := s.repo.FindByID(ctx, prereqID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate prerequisite")
		}
	}

	if err := s.checkPrerequisiteCycle(ctx, id, req.PrerequisiteIDs); err != nil {
		return err
	}

	if err := s.repo.ReplacePrerequisites(ctx, id, req.PrerequisiteIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set prerequisites")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// checkPrerequisiteCycle walks the prerequisite graph from each candidate.
// The change is rejected when the course itself is reachable, since such a
// chain can never be satisfied by any student.
func (s *CourseService) checkPrerequisiteCycle(ctx context.Context, id string, prereqIDs []string) error {
	visited := make(map[string]struct{})
	queue := append([]string(nil), prereqIDs...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == id {
			return appErrors.Clone(appErrors.ErrValidation, "prerequisites would form a cycle")
		}
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		prereqs, err := s.repo.Prerequisites(ctx, current)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to walk prerequisites")
		}
		for _, prereq := range prereqs {
			queue = append(queue, prereq.ID)
		}
	}
	return nil
}

func (s *CourseService) checkIdentity(ctx context.Context, name, code, excludeID string) error {
	if err := s.repo.NameAvailable(ctx, s.store.Q(), name, excludeID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "course name already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
	}
	if err := s.repo.CodeAvailable(ctx, s.store.Q(), code, excludeID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "catalog:*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
