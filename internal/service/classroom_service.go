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

type classRoomRepository interface {
	List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoomDetail, int, error)
	FindByID(ctx context.Context, q repository.Queryer, id string) (*models.ClassRoom, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassRoomDetail, error)
	NameTaken(ctx context.Context, courseID, semesterID, name, excludeID string) (bool, error)
	CountActiveEnrollments(ctx context.Context, q repository.Queryer, id string) (int, error)
	Create(ctx context.Context, class *models.ClassRoom) error
	Update(ctx context.Context, class *models.ClassRoom) error
	Delete(ctx context.Context, id string) error
}

type classCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type classSemesterLookup interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type classRoomLookup interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// CreateClassRoomRequest captures class section creation payload.
type CreateClassRoomRequest struct {
	CourseID      string  `json:"course_id" validate:"required"`
	SemesterID    string  `json:"semester_id" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	DayOfWeek     string  `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	StartTime     string  `json:"start_time" validate:"required,len=5"`
	EndTime       string  `json:"end_time" validate:"required,len=5"`
	RoomID        *string `json:"room_id"`
	MaxEnrollment int     `json:"max_enrollment" validate:"required,min=1"`
}

// UpdateClassRoomRequest modifies class section fields.
type UpdateClassRoomRequest struct {
	Name          string  `json:"name" validate:"required"`
	DayOfWeek     string  `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	StartTime     string  `json:"start_time" validate:"required,len=5"`
	EndTime       string  `json:"end_time" validate:"required,len=5"`
	RoomID        *string `json:"room_id"`
	MaxEnrollment int     `json:"max_enrollment" validate:"required,min=1"`
}

// ClassRoomService coordinates class section operations.
type ClassRoomService struct {
	repo         classRoomRepository
	courseRepo   classCourseLookup
	semesterRepo classSemesterLookup
	roomRepo     classRoomLookup
	store        *repository.Store
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewClassRoomService constructs a ClassRoomService.
func NewClassRoomService(repo classRoomRepository, courseRepo classCourseLookup, semesterRepo classSemesterLookup, roomRepo classRoomLookup, store *repository.Store, validate *validator.Validate, logger *zap.Logger) *ClassRoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassRoomService{
		repo:         repo,
		courseRepo:   courseRepo,
		semesterRepo: semesterRepo,
		roomRepo:     roomRepo,
		store:        store,
		validator:    validate,
		logger:       logger,
	}
}

// List returns class sections with pagination metadata.
func (s *ClassRoomService) List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoomDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class sections")
	}
	return classes, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed class section information.
func (s *ClassRoomService) Get(ctx context.Context, id string) (*models.ClassRoomDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}
	return detail, nil
}

// Create opens a new class section for a course in a semester.
func (s *ClassRoomService) Create(ctx context.Context, req CreateClassRoomRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class section payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	course, err := s.courseRepo.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course")
	}
	if course.Status != models.CourseStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is not active")
	}

	if _, err := s.semesterRepo.FindByID(ctx, req.SemesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "semester does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate semester")
	}

	if err := s.checkRoom(ctx, req.RoomID, req.MaxEnrollment); err != nil {
		return nil, err
	}

	taken, err := s.repo.NameTaken(ctx, req.CourseID, req.SemesterID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "section name already used for this course and semester")
	}

	class := &models.ClassRoom{
		CourseID:      req.CourseID,
		SemesterID:    req.SemesterID,
		Name:          req.Name,
		DayOfWeek:     req.DayOfWeek,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		RoomID:        req.RoomID,
		MaxEnrollment: req.MaxEnrollment,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class section")
	}
	return class, nil
}

// Update modifies a class section. Course and semester bindings are fixed
// after creation.
func (s *ClassRoomService) Update(ctx context.Context, id string, req UpdateClassRoomRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class section payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	class, err := s.repo.FindByID(ctx, s.store.Q(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}

	if err := s.checkRoom(ctx, req.RoomID, req.MaxEnrollment); err != nil {
		return nil, err
	}

	// Shrinking below the current headcount would orphan active students.
	enrolled, err := s.repo.CountActiveEnrollments(ctx, s.store.Q(), id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if req.MaxEnrollment < enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max enrollment below current enrollment count")
	}

	taken, err := s.repo.NameTaken(ctx, class.CourseID, class.SemesterID, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "section name already used for this course and semester")
	}

	class.Name = req.Name
	class.DayOfWeek = req.DayOfWeek
	class.StartTime = req.StartTime
	class.EndTime = req.EndTime
	class.RoomID = req.RoomID
	class.MaxEnrollment = req.MaxEnrollment

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class section")
	}
	return class, nil
}

// Delete removes a class section. Sections with active enrollments cannot be
// removed.
func (s *ClassRoomService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, s.store.Q(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}

	count, err := s.repo.CountActiveEnrollments(ctx, s.store.Q(), id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class section has active enrollments")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class section")
	}
	return nil
}

func (s *ClassRoomService) checkRoom(ctx context.Context, roomID *string, maxEnrollment int) error {
	if roomID == nil || *roomID == "" || s.roomRepo == nil {
		return nil
	}
	room, err := s.roomRepo.FindByID(ctx, *roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "room does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate room")
	}
	if room.Capacity < maxEnrollment {
		return appErrors.Clone(appErrors.ErrValidation, "room capacity below max enrollment")
	}
	return nil
}
