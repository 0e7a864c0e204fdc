package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/school-api/internal/models"
)

// DepartmentRepository handles persistence for academic departments.
type DepartmentRepository struct {
	store *Store
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(store *Store) *DepartmentRepository {
	return &DepartmentRepository{store: store}
}

// List returns live departments matching the filter.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	base := "FROM departments WHERE deleted_at IS NULL"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "code": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "name"
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

	query := fmt.Sprintf(`SELECT id, name, code, head_id, description, location, email, phone_number, created_at, updated_at, deleted_at %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, sortBy, order, size, offset)
	var departments []models.Department
	if err := r.store.DB().SelectContext(ctx, &departments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	return departments, total, nil
}

// FindByID loads a live department by identifier.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name, code, head_id, description, location, email, phone_number, created_at, updated_at, deleted_at FROM departments WHERE id = $1 AND deleted_at IS NULL`
	dept, err := GetOne[models.Department](ctx, r.store.Q(), query, id)
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// FindDetailByID loads a department together with its head name and the
// counts of dependent teachers and courses.
func (r *DepartmentRepository) FindDetailByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	const query = `SELECT d.id, d.name, d.code, d.head_id, d.description, d.location, d.email, d.phone_number, d.created_at, d.updated_at, d.deleted_at,
        t.full_name AS head_name,
        (SELECT COUNT(*) FROM teachers WHERE department_id = d.id AND deleted_at IS NULL) AS teacher_count,
        (SELECT COUNT(*) FROM courses WHERE department_id = d.id) AS course_count
        FROM departments d
        LEFT JOIN teachers t ON t.id = d.head_id
        WHERE d.id = $1 AND d.deleted_at IS NULL`
	detail, err := GetOne[models.DepartmentDetail](ctx, r.store.Q(), query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department detail: %w", err)
	}
	return detail, nil
}

// NameAvailable probes department name uniqueness among live rows.
func (r *DepartmentRepository) NameAvailable(ctx context.Context, q Queryer, name, excludeID string) error {
	return EnsureUnique(ctx, q, UniqueCheck{Table: "departments", Column: "name", Value: name, Exclude: excludeID, LiveOnly: true})
}

// CodeAvailable probes department code uniqueness among live rows.
func (r *DepartmentRepository) CodeAvailable(ctx context.Context, q Queryer, code, excludeID string) error {
	return EnsureUnique(ctx, q, UniqueCheck{Table: "departments", Column: "code", Value: code, Exclude: excludeID, LiveOnly: true})
}

// Create inserts a new department record.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now
	const query = `INSERT INTO departments (id, name, code, head_id, description, location, email, phone_number, created_at, updated_at)
        VALUES (:id, :name, :code, :head_id, :description, :location, :email, :phone_number, :created_at, :updated_at)`
	if _, err := r.store.DB().NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update modifies an existing department.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, code = :code, head_id = :head_id, description = :description, location = :location, email = :email, phone_number = :phone_number, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.store.DB().NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// SoftDelete stamps deleted_at on the department.
func (r *DepartmentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE departments SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.store.Q().ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete department: %w", err)
	}
	return nil
}
