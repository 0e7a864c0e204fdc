package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/school-api/internal/models"
)

// RoomRepository handles persistence for rooms.
type RoomRepository struct {
	store *Store
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(store *Store) *RoomRepository {
	return &RoomRepository{store: store}
}

// List returns rooms matching the filter.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE 1=1"
	var args []interface{}

	if filter.Building != "" {
		base += fmt.Sprintf(" AND building = $%d", len(args)+1)
		args = append(args, filter.Building)
	}
	if filter.RoomType != "" {
		base += fmt.Sprintf(" AND room_type = $%d", len(args)+1)
		args = append(args, filter.RoomType)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(room_number) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"room_number": true, "building": true, "capacity": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "room_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 50 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, room_number, building, capacity, room_type, has_projector, has_whiteboard, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, size, offset)
	var rooms []models.Room
	if err := r.store.DB().SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}
	return rooms, total, nil
}

// FindByID loads a room by identifier.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, room_number, building, capacity, room_type, has_projector, has_whiteboard, created_at, updated_at FROM rooms WHERE id = $1`
	return GetOne[models.Room](ctx, r.store.Q(), query, id)
}

// NumberAvailable probes room number uniqueness.
func (r *RoomRepository) NumberAvailable(ctx context.Context, q Queryer, roomNumber, excludeID string) error {
	return EnsureUnique(ctx, q, UniqueCheck{Table: "rooms", Column: "room_number", Value: roomNumber, Exclude: excludeID})
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	if room.RoomType == "" {
		room.RoomType = models.RoomTypeClassroom
	}
	const query = `INSERT INTO rooms (id, room_number, building, capacity, room_type, has_projector, has_whiteboard, created_at, updated_at)
        VALUES (:id, :room_number, :building, :capacity, :room_type, :has_projector, :has_whiteboard, :created_at, :updated_at)`
	if _, err := r.store.DB().NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies an existing room.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET room_number = :room_number, building = :building, capacity = :capacity, room_type = :room_type, has_projector = :has_projector, has_whiteboard = :has_whiteboard, updated_at = :updated_at WHERE id = :id`
	if _, err := r.store.DB().NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// CountClassRooms returns the number of class sections meeting in the room.
func (r *RoomRepository) CountClassRooms(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_rooms WHERE room_id = $1`
	var count int
	if err := r.store.DB().GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count room class sections: %w", err)
	}
	return count, nil
}

// Delete removes a room permanently.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Q().ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
