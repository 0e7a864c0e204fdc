package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/school-api/internal/models"
)

const teacherColumns = `id, nip, email, full_name, phone, expertise, department_id, active, created_at, updated_at, deleted_at`

// TeacherRepository handles persistence of teachers.
type TeacherRepository struct {
	store *Store
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(store *Store) *TeacherRepository {
	return &TeacherRepository{store: store}
}

// List returns teachers matching the filter with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	base := `FROM teachers t LEFT JOIN departments d ON d.id = t.department_id AND d.deleted_at IS NULL`
	conditions := []string{"t.deleted_at IS NULL"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(t.full_name ILIKE $%d OR t.email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("t.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("t.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"full_name":  "t.full_name",
		"email":      "t.email",
		"created_at": "t.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "t.full_name"
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

	query := fmt.Sprintf(`SELECT t.id, t.nip, t.email, t.full_name, t.phone, t.expertise, t.department_id, t.active, t.created_at, t.updated_at, t.deleted_at,
        d.name AS department_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var teachers []models.TeacherDetail
	if err := r.store.DB().SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a live teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE id = $1 AND deleted_at IS NULL`, teacherColumns)
	return GetOne[models.Teacher](ctx, r.store.Q(), query, id)
}

// FindDetailByID returns a teacher joined with department name.
func (r *TeacherRepository) FindDetailByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	const query = `SELECT t.id, t.nip, t.email, t.full_name, t.phone, t.expertise, t.department_id, t.active, t.created_at, t.updated_at, t.deleted_at,
        d.name AS department_name
        FROM teachers t
        LEFT JOIN departments d ON d.id = t.department_id AND d.deleted_at IS NULL
        WHERE t.id = $1 AND t.deleted_at IS NULL`
	return GetOne[models.TeacherDetail](ctx, r.store.Q(), query, id)
}

// EmailAvailable checks that no live teacher holds the given email.
func (r *TeacherRepository) EmailAvailable(ctx context.Context, email, excludeID string) error {
	return EnsureUnique(ctx, r.store.Q(), UniqueCheck{
		Table:    "teachers",
		Column:   "email",
		Value:    email,
		Exclude:  excludeID,
		LiveOnly: true,
	})
}

// NIPAvailable checks that no live teacher holds the given NIP.
func (r *TeacherRepository) NIPAvailable(ctx context.Context, nip, excludeID string) error {
	return EnsureUnique(ctx, r.store.Q(), UniqueCheck{
		Table:    "teachers",
		Column:   "nip",
		Value:    nip,
		Exclude:  excludeID,
		LiveOnly: true,
	})
}

// Create inserts a new teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, nip, email, full_name, phone, expertise, department_id, active, created_at, updated_at)
        VALUES (:id, :nip, :email, :full_name, :phone, :expertise, :department_id, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update saves mutable teacher fields.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET nip = :nip, email = :email, full_name = :full_name, phone = :phone,
        expertise = :expertise, department_id = :department_id, active = :active, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// SoftDelete marks the teacher removed and inactive.
func (r *TeacherRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE teachers SET active = FALSE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.store.Q().ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return nil
}
