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

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	FindDetailByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
	NameAvailable(ctx context.Context, q repository.Queryer, name, excludeID string) error
	CodeAvailable(ctx context.Context, q repository.Queryer, code, excludeID string) error
	Create(ctx context.Context, dept *models.Department) error
	Update(ctx context.Context, dept *models.Department) error
	SoftDelete(ctx context.Context, id string) error
}

type departmentTeacherRepo interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateDepartmentRequest captures creation payload.
type CreateDepartmentRequest struct {
	Name        string  `json:"name" validate:"required"`
	Code        string  `json:"code" validate:"required,uppercase"`
	HeadID      *string `json:"head_id"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
}

// UpdateDepartmentRequest modifies department fields.
type UpdateDepartmentRequest struct {
	Name        string  `json:"name" validate:"required"`
	Code        string  `json:"code" validate:"required,uppercase"`
	HeadID      *string `json:"head_id"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
}

// DepartmentService coordinates department operations.
type DepartmentService struct {
	repo        departmentRepository
	teacherRepo departmentTeacherRepo
	store       *repository.Store
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentRepository, teacherRepo departmentTeacherRepo, store *repository.Store, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, teacherRepo: teacherRepo, store: store, validator: validate, logger: logger}
}

// List returns departments with pagination metadata.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, *models.Pagination, error) {
	departments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed department information including dependant counts.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return detail, nil
}

// Create adds a new department.
func (s *DepartmentService) Create(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	if err := s.checkIdentity(ctx, req.Name, req.Code, ""); err != nil {
		return nil, err
	}
	if err := s.checkHead(ctx, req.HeadID); err != nil {
		return nil, err
	}

	dept := &models.Department{
		Name:        req.Name,
		Code:        req.Code,
		HeadID:      req.HeadID,
		Description: req.Description,
		Location:    req.Location,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return dept, nil
}

// Update modifies a department record.
func (s *DepartmentService) Update(ctx context.Context, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	dept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	if err := s.checkIdentity(ctx, req.Name, req.Code, id); err != nil {
		return nil, err
	}
	if err := s.checkHead(ctx, req.HeadID); err != nil {
		return nil, err
	}

	dept.Name = req.Name
	dept.Code = req.Code
	dept.HeadID = req.HeadID
	dept.Description = req.Description
	dept.Location = req.Location
	dept.Email = req.Email
	dept.PhoneNumber = req.PhoneNumber

	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return dept, nil
}

// Delete soft deletes a department. Departments with assigned teachers or
// courses must be emptied first.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	if detail.TeacherCount > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "department still has teachers assigned")
	}
	if detail.CourseCount > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "department still has courses assigned")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	return nil
}

func (s *DepartmentService) checkHead(ctx context.Context, headID *string) error {
	if headID == nil {
		return nil
	}
	if _, err := s.teacherRepo.FindByID(ctx, *headID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "head teacher does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate head teacher")
	}
	return nil
}

func (s *DepartmentService) checkIdentity(ctx context.Context, name, code, excludeID string) error {
	if err := s.repo.NameAvailable(ctx, s.store.Q(), name, excludeID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "department name already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department name")
	}
	if err := s.repo.CodeAvailable(ctx, s.store.Q(), code, excludeID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "department code already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department code")
	}
	return nil
}
