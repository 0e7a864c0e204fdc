package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/school-api/internal/models"
	"github.com/campuskit/school-api/internal/repository"
	appErrors "github.com/campuskit/school-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	NISAvailable(ctx context.Context, nis, excludeID string) error
	CreateAddress(ctx context.Context, q repository.Queryer, address *models.Address) error
	UpdateAddress(ctx context.Context, q repository.Queryer, address *models.Address) error
	Create(ctx context.Context, q repository.Queryer, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SoftDelete(ctx context.Context, id string) error
	CountActiveEnrollments(ctx context.Context, id string) (int, error)
}

type studentUserRepository interface {
	EmailAvailable(ctx context.Context, q repository.Queryer, email, excludeID string) error
	UsernameAvailable(ctx context.Context, q repository.Queryer, username, excludeID string) error
	Create(ctx context.Context, q repository.Queryer, user *models.User) error
	SoftDelete(ctx context.Context, id string) error
}

// AddressPayload captures a postal address.
type AddressPayload struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	Province   string `json:"province" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country"`
}

// StudentAccountPayload creates a login for the student.
type StudentAccountPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

// CreateStudentRequest captures student creation payload.
type CreateStudentRequest struct {
	NIS       string                 `json:"nis" validate:"required"`
	FullName  string                 `json:"full_name" validate:"required"`
	Gender    string                 `json:"gender" validate:"required,oneof=M F"`
	BirthDate time.Time              `json:"birth_date" validate:"required"`
	Phone     *string                `json:"phone"`
	Address   *AddressPayload        `json:"address"`
	Account   *StudentAccountPayload `json:"account"`
}

// UpdateStudentRequest modifies student fields.
type UpdateStudentRequest struct {
	NIS       string          `json:"nis" validate:"required"`
	FullName  string          `json:"full_name" validate:"required"`
	Gender    string          `json:"gender" validate:"required,oneof=M F"`
	BirthDate time.Time       `json:"birth_date" validate:"required"`
	Phone     *string         `json:"phone"`
	Active    *bool           `json:"active"`
	Address   *AddressPayload `json:"address"`
}

// StudentService coordinates student records, addresses and accounts.
type StudentService struct {
	repo      studentRepository
	userRepo  studentUserRepository
	store     *repository.Store
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, userRepo studentUserRepository, store *repository.Store, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, userRepo: userRepo, store: store, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// ByUserID resolves the student record behind a login account.
func (s *StudentService) ByUserID(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a student record")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student account")
	}
	return student, nil
}

// Create adds a new student. Address and login account, when provided, are
// written in the same transaction so a failure leaves nothing behind.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	if err := s.repo.NISAvailable(ctx, req.NIS, ""); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}

	student := &models.Student{
		NIS:       req.NIS,
		FullName:  req.FullName,
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
		Phone:     req.Phone,
		Active:    true,
	}

	err := s.store.WithinTx(ctx, func(q repository.Queryer) error {
		if req.Address != nil {
			address := addressFromPayload(*req.Address)
			if err := s.repo.CreateAddress(ctx, q, address); err != nil {
				return err
			}
			student.AddressID = &address.ID
		}

		if req.Account != nil {
			if err := s.userRepo.EmailAvailable(ctx, q, req.Account.Email, ""); err != nil {
				return err
			}
			if err := s.userRepo.UsernameAvailable(ctx, q, req.Account.Username, ""); err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(req.Account.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := &models.User{
				Email:        req.Account.Email,
				Username:     req.Account.Username,
				PasswordHash: string(hash),
				FullName:     req.FullName,
				Role:         models.RoleStudent,
				Active:       true,
			}
			if err := s.userRepo.Create(ctx, q, user); err != nil {
				return err
			}
			student.UserID = &user.ID
		}

		return s.repo.Create(ctx, q, student)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "account email or username already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies a student and its address.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.NISAvailable(ctx, req.NIS, id); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}

	student.NIS = req.NIS
	student.FullName = req.FullName
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.Phone = req.Phone
	if req.Active != nil {
		student.Active = *req.Active
	}

	err = s.store.WithinTx(ctx, func(q repository.Queryer) error {
		if req.Address != nil {
			address := addressFromPayload(*req.Address)
			if student.AddressID != nil {
				address.ID = *student.AddressID
				if err := s.repo.UpdateAddress(ctx, q, address); err != nil {
					return err
				}
			} else {
				if err := s.repo.CreateAddress(ctx, q, address); err != nil {
					return err
				}
				student.AddressID = &address.ID
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student address")
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete soft deletes a student. Students holding live enrollments must drop
// them first.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	count, err := s.repo.CountActiveEnrollments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has active enrollments")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	if student.UserID != nil {
		if err := s.userRepo.SoftDelete(ctx, *student.UserID); err != nil {
			s.logger.Warn("failed to disable student account", zap.String("user_id", *student.UserID), zap.Error(err))
		}
	}
	return nil
}

func addressFromPayload(p AddressPayload) *models.Address {
	country := p.Country
	if country == "" {
		country = "Indonesia"
	}
	return &models.Address{
		Street:     p.Street,
		City:       p.City,
		Province:   p.Province,
		PostalCode: p.PostalCode,
		Country:    country,
	}
}
