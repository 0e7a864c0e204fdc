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

const parentColumns = `id, email, full_name, phone, occupation, user_id, created_at, updated_at, deleted_at`

// ParentRepository handles persistence of parents and their student links.
type ParentRepository struct {
	store *Store
}

// NewParentRepository constructs the repository.
func NewParentRepository(store *Store) *ParentRepository {
	return &ParentRepository{store: store}
}

// List returns parents matching the filter with total count.
func (r *ParentRepository) List(ctx context.Context, filter models.ParentFilter) ([]models.Parent, int, error) {
	base := "FROM parents p"
	conditions := []string{"p.deleted_at IS NULL"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.full_name ILIKE $%d OR p.email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.StudentID != "" {
		base += " JOIN parent_students ps ON ps.parent_id = p.id"
		conditions = append(conditions, fmt.Sprintf("ps.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"full_name":  "p.full_name",
		"email":      "p.email",
		"created_at": "p.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "p.full_name"
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

	query := fmt.Sprintf(`SELECT p.id, p.email, p.full_name, p.phone, p.occupation, p.user_id, p.created_at, p.updated_at, p.deleted_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var parents []models.Parent
	if err := r.store.DB().SelectContext(ctx, &parents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list parents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count parents: %w", err)
	}
	return parents, total, nil
}

// FindByID returns a live parent by ID.
func (r *ParentRepository) FindByID(ctx context.Context, id string) (*models.Parent, error) {
	query := fmt.Sprintf(`SELECT %s FROM parents WHERE id = $1 AND deleted_at IS NULL`, parentColumns)
	return GetOne[models.Parent](ctx, r.store.Q(), query, id)
}

// EmailAvailable checks that no live parent holds the given email.
func (r *ParentRepository) EmailAvailable(ctx context.Context, email, excludeID string) error {
	return EnsureUnique(ctx, r.store.Q(), UniqueCheck{
		Table:    "parents",
		Column:   "email",
		Value:    email,
		Exclude:  excludeID,
		LiveOnly: true,
	})
}

// Create inserts a new parent.
func (r *ParentRepository) Create(ctx context.Context, parent *models.Parent) error {
	if parent.ID == "" {
		parent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	parent.CreatedAt = now
	parent.UpdatedAt = now
	const query = `INSERT INTO parents (id, email, full_name, phone, occupation, user_id, created_at, updated_at)
        VALUES (:id, :email, :full_name, :phone, :occupation, :user_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, parent); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	return nil
}

// Update saves mutable parent fields.
func (r *ParentRepository) Update(ctx context.Context, parent *models.Parent) error {
	parent.UpdatedAt = time.Now().UTC()
	const query = `UPDATE parents SET email = :email, full_name = :full_name, phone = :phone,
        occupation = :occupation, user_id = :user_id, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, parent); err != nil {
		return fmt.Errorf("update parent: %w", err)
	}
	return nil
}

// SoftDelete marks the parent removed and clears its student links.
func (r *ParentRepository) SoftDelete(ctx context.Context, id string) error {
	return r.store.WithinTx(ctx, func(q Queryer) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM parent_students WHERE parent_id = $1`, id); err != nil {
			return fmt.Errorf("unlink parent students: %w", err)
		}
		const query = `UPDATE parents SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
		if _, err := q.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
			return fmt.Errorf("delete parent: %w", err)
		}
		return nil
	})
}

// Students returns the students linked to a parent.
func (r *ParentRepository) Students(ctx context.Context, parentID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.nis, s.full_name, s.gender, s.birth_date, s.phone, s.user_id, s.address_id, s.active, s.created_at, s.updated_at, s.deleted_at
        FROM students s
        JOIN parent_students ps ON ps.student_id = s.id
        WHERE ps.parent_id = $1 AND s.deleted_at IS NULL
        ORDER BY s.full_name ASC`
	var students []models.Student
	if err := r.store.DB().SelectContext(ctx, &students, query, parentID); err != nil {
		return nil, fmt.Errorf("list parent students: %w", err)
	}
	return students, nil
}

// LinkStudent attaches a student to a parent. Re-linking updates the
// relationship instead of failing.
func (r *ParentRepository) LinkStudent(ctx context.Context, link *models.ParentStudent) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO parent_students (parent_id, student_id, relationship, created_at)
        VALUES (:parent_id, :student_id, :relationship, :created_at)
        ON CONFLICT (parent_id, student_id) DO UPDATE SET relationship = EXCLUDED.relationship`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, link); err != nil {
		return fmt.Errorf("link parent student: %w", err)
	}
	return nil
}

// UnlinkStudent removes a parent-student link. Returns the number of rows
// removed so callers can distinguish a missing link.
func (r *ParentRepository) UnlinkStudent(ctx context.Context, parentID, studentID string) (int64, error) {
	res, err := r.store.Q().ExecContext(ctx, `DELETE FROM parent_students WHERE parent_id = $1 AND student_id = $2`, parentID, studentID)
	if err != nil {
		return 0, fmt.Errorf("unlink parent student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unlink parent student: %w", err)
	}
	return affected, nil
}
