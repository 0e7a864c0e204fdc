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

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	NumberAvailable(ctx context.Context, q repository.Queryer, roomNumber, excludeID string) error
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	CountClassRooms(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// CreateRoomRequest captures room creation payload.
type CreateRoomRequest struct {
	RoomNumber    string          `json:"room_number" validate:"required"`
	Building      *string         `json:"building"`
	Capacity      int             `json:"capacity" validate:"required,min=1"`
	RoomType      models.RoomType `json:"room_type"`
	HasProjector  bool            `json:"has_projector"`
	HasWhiteboard bool            `json:"has_whiteboard"`
}

// UpdateRoomRequest modifies room fields.
type UpdateRoomRequest struct {
	RoomNumber    string          `json:"room_number" validate:"required"`
	Building      *string         `json:"building"`
	Capacity      int             `json:"capacity" validate:"required,min=1"`
	RoomType      models.RoomType `json:"room_type" validate:"required"`
	HasProjector  bool            `json:"has_projector"`
	HasWhiteboard bool            `json:"has_whiteboard"`
}

// RoomService coordinates room operations.
type RoomService struct {
	repo      roomRepository
	store     *repository.Store
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(repo roomRepository, store *repository.Store, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, store: store, validator: validate, logger: logger}
}

// List returns rooms with pagination metadata.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one room by ID.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create adds a new room.
func (s *RoomService) Create(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	if req.RoomType != "" && !models.ValidRoomType(req.RoomType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown room type")
	}

	if err := s.repo.NumberAvailable(ctx, s.store.Q(), req.RoomNumber, ""); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "room number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room number")
	}

	room := &models.Room{
		RoomNumber:    req.RoomNumber,
		Building:      req.Building,
		Capacity:      req.Capacity,
		RoomType:      req.RoomType,
		HasProjector:  req.HasProjector,
		HasWhiteboard: req.HasWhiteboard,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// Update modifies a room record.
func (s *RoomService) Update(ctx context.Context, id string, req UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	if !models.ValidRoomType(req.RoomType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown room type")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if err := s.repo.NumberAvailable(ctx, s.store.Q(), req.RoomNumber, id); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "room number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room number")
	}

	room.RoomNumber = req.RoomNumber
	room.Building = req.Building
	room.Capacity = req.Capacity
	room.RoomType = req.RoomType
	room.HasProjector = req.HasProjector
	room.HasWhiteboard = req.HasWhiteboard

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	return room, nil
}

// Delete removes a room. Rooms with class sections scheduled in them cannot
// be removed.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	count, err := s.repo.CountClassRooms(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class sections")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "room has class sections scheduled")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	return nil
}
