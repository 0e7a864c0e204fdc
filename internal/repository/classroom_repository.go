package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/school-api/internal/models"
)

// ClassRoomRepository handles persistence for class sections.
type ClassRoomRepository struct {
	store *Store
}

// NewClassRoomRepository constructs the repository.
func NewClassRoomRepository(store *Store) *ClassRoomRepository {
	return &ClassRoomRepository{store: store}
}

// List returns class sections matching the filter with joined context.
func (r *ClassRoomRepository) List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoomDetail, int, error) {
	base := `FROM class_rooms cr
JOIN courses c ON c.id = cr.course_id
JOIN semesters s ON s.id = cr.semester_id
LEFT JOIN rooms rm ON rm.id = cr.room_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(cr.name) LIKE $%d OR LOWER(c.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base += " WHERE " + strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":        "cr.name",
		"course_name": "c.name",
		"day_of_week": "cr.day_of_week",
		"created_at":  "cr.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "cr.name"
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

	query := fmt.Sprintf(`SELECT cr.id, cr.course_id, cr.semester_id, cr.name, cr.day_of_week, cr.start_time, cr.end_time, cr.room_id, cr.max_enrollment, cr.created_at, cr.updated_at,
        c.name AS course_name, c.code AS course_code, s.name AS semester_name, rm.room_number,
        (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = cr.id AND e.status = $%d) AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, len(args)+1, base, column, order, size, offset)
	listArgs := append(append([]interface{}{}, args...), models.EnrollmentStatusActive)

	var classes []models.ClassRoomDetail
	if err := r.store.DB().SelectContext(ctx, &classes, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list class sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count class sections: %w", err)
	}
	return classes, total, nil
}

// FindByID loads a class section by identifier, optionally inside a transaction.
func (r *ClassRoomRepository) FindByID(ctx context.Context, q Queryer, id string) (*models.ClassRoom, error) {
	const query = `SELECT id, course_id, semester_id, name, day_of_week, start_time, end_time, room_id, max_enrollment, created_at, updated_at FROM class_rooms WHERE id = $1`
	return GetOne[models.ClassRoom](ctx, q, query, id)
}

// FindDetailByID loads a class section with its joined context.
func (r *ClassRoomRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassRoomDetail, error) {
	const query = `SELECT cr.id, cr.course_id, cr.semester_id, cr.name, cr.day_of_week, cr.start_time, cr.end_time, cr.room_id, cr.max_enrollment, cr.created_at, cr.updated_at,
        c.name AS course_name, c.code AS course_code, s.name AS semester_name, rm.room_number,
        (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = cr.id AND e.status = $2) AS enrolled_count
        FROM class_rooms cr
        JOIN courses c ON c.id = cr.course_id
        JOIN semesters s ON s.id = cr.semester_id
        LEFT JOIN rooms rm ON rm.id = cr.room_id
        WHERE cr.id = $1`
	detail, err := GetOne[models.ClassRoomDetail](ctx, r.store.Q(), query, id, models.EnrollmentStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class section detail: %w", err)
	}
	return detail, nil
}

// NameTaken reports whether a section name already exists for the same course
// and semester.
func (r *ClassRoomRepository) NameTaken(ctx context.Context, courseID, semesterID, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM class_rooms WHERE course_id = $1 AND semester_id = $2 AND name = $3`
	args := []interface{}{courseID, semesterID, name}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	taken, err := Exists(ctx, r.store.Q(), query+" LIMIT 1", args...)
	if err != nil {
		return false, fmt.Errorf("check class section name: %w", err)
	}
	return taken, nil
}

// CountActiveEnrollments counts live registrations for the section. Runs on
// the provided queryer so registration can count inside its transaction.
func (r *ClassRoomRepository) CountActiveEnrollments(ctx context.Context, q Queryer, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = $2`
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, id, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// Create inserts a new class section.
func (r *ClassRoomRepository) Create(ctx context.Context, class *models.ClassRoom) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO class_rooms (id, course_id, semester_id, name, day_of_week, start_time, end_time, room_id, max_enrollment, created_at, updated_at)
        VALUES (:id, :course_id, :semester_id, :name, :day_of_week, :start_time, :end_time, :room_id, :max_enrollment, :created_at, :updated_at)`
	if _, err := r.store.DB().NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class section: %w", err)
	}
	return nil
}

// Update modifies an existing class section.
func (r *ClassRoomRepository) Update(ctx context.Context, class *models.ClassRoom) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_rooms SET name = :name, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, room_id = :room_id, max_enrollment = :max_enrollment, updated_at = :updated_at WHERE id = :id`
	if _, err := r.store.DB().NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class section: %w", err)
	}
	return nil
}

// Delete removes a class section permanently.
func (r *ClassRoomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Q().ExecContext(ctx, `DELETE FROM class_rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class section: %w", err)
	}
	return nil
}
