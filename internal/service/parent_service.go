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

type parentRepository interface {
	List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, int, error)
	FindByID(ctx context.Context, id string) (*models.Parent, error)
	EmailAvailable(ctx context.Context, email, excludeID string) error
	Create(ctx context.Context, parent *models.Parent) error
	Update(ctx context.Context, parent *models.Parent) error
	SoftDelete(ctx context.Context, id string) error
	Students(ctx context.Context, parentID string) ([]models.Student, error)
	LinkStudent(ctx context.Context, link *models.ParentStudent) error
	UnlinkStudent(ctx context.Context, parentID, studentID string) (int64, error)
}

type parentStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateParentRequest captures parent creation payload.
type CreateParentRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	FullName   string  `json:"full_name" validate:"required"`
	Phone      *string `json:"phone"`
	Occupation *string `json:"occupation"`
}

// UpdateParentRequest modifies parent fields.
type UpdateParentRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	FullName   string  `json:"full_name" validate:"required"`
	Phone      *string `json:"phone"`
	Occupation *string `json:"occupation"`
}

// LinkStudentRequest attaches a student to a parent.
type LinkStudentRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	Relationship string `json:"relationship" validate:"required,oneof=FATHER MOTHER GUARDIAN"`
}

// ParentService coordinates parent records and their student links.
type ParentService struct {
	repo        parentRepository
	studentRepo parentStudentLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewParentService constructs a ParentService.
func NewParentService(repo parentRepository, studentRepo parentStudentLookup, validate *validator.Validate, logger *zap.Logger) *ParentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParentService{repo: repo, studentRepo: studentRepo, validator: validate, logger: logger}
}

// List returns parents with pagination metadata.
func (s *ParentService) List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, *models.Pagination, error) {
	parents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	return parents, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one parent by ID.
func (s *ParentService) Get(ctx context.Context, id string) (*models.Parent, error) {
	parent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	return parent, nil
}

// Create adds a new parent.
func (s *ParentService) Create(ctx context.Context, req CreateParentRequest) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}

	if err := s.repo.EmailAvailable(ctx, req.Email, ""); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	parent := &models.Parent{
		Email:      req.Email,
		FullName:   req.FullName,
		Phone:      req.Phone,
		Occupation: req.Occupation,
	}
	if err := s.repo.Create(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create parent")
	}
	return parent, nil
}

// Update modifies a parent record.
func (s *ParentService) Update(ctx context.Context, id string, req UpdateParentRequest) (*models.Parent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}

	parent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}

	if err := s.repo.EmailAvailable(ctx, req.Email, id); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	parent.Email = req.Email
	parent.FullName = req.FullName
	parent.Phone = req.Phone
	parent.Occupation = req.Occupation

	if err := s.repo.Update(ctx, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update parent")
	}
	return parent, nil
}

// Delete soft deletes a parent and its student links.
func (s *ParentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete parent")
	}
	return nil
}

// Students returns the children linked to a parent.
func (s *ParentService) Students(ctx context.Context, parentID string) ([]models.Student, error) {
	if _, err := s.repo.FindByID(ctx, parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	students, err := s.repo.Students(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parent students")
	}
	return students, nil
}

// LinkStudent attaches a student to a parent.
func (s *ParentService) LinkStudent(ctx context.Context, parentID string, req LinkStudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}

	if _, err := s.repo.FindByID(ctx, parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	if _, err := s.studentRepo.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	link := &models.ParentStudent{
		ParentID:     parentID,
		StudentID:    req.StudentID,
		Relationship: req.Relationship,
	}
	if err := s.repo.LinkStudent(ctx, link); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link student")
	}
	return nil
}

// UnlinkStudent removes a parent-student link.
func (s *ParentService) UnlinkStudent(ctx context.Context, parentID, studentID string) error {
	affected, err := s.repo.UnlinkStudent(ctx, parentID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink student")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "link not found")
	}
	return nil
}
