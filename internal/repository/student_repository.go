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

const studentColumns = `id, nis, full_name, gender, birth_date, phone, user_id, address_id, active, created_at, updated_at, deleted_at`

// StudentRepository handles persistence of students and their addresses.
type StudentRepository struct {
	store *Store
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(store *Store) *StudentRepository {
	return &StudentRepository{store: store}
}

// List returns students matching the filter with total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"s.deleted_at IS NULL"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.full_name ILIKE $%d OR s.nis ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	base := "FROM students s"
	if filter.ClassID != "" {
		base += " JOIN enrollments e ON e.student_id = s.id"
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, models.EnrollmentStatusActive)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"full_name":  "s.full_name",
		"nis":        "s.nis",
		"created_at": "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.full_name"
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

	query := fmt.Sprintf(`SELECT s.id, s.nis, s.full_name, s.gender, s.birth_date, s.phone, s.user_id, s.address_id, s.active, s.created_at, s.updated_at, s.deleted_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var students []models.Student
	if err := r.store.DB().SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s", base+clause)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a live student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1 AND deleted_at IS NULL`, studentColumns)
	return GetOne[models.Student](ctx, r.store.Q(), query, id)
}

// FindByUserID resolves the student record linked to a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE user_id = $1 AND deleted_at IS NULL`, studentColumns)
	return GetOne[models.Student](ctx, r.store.Q(), query, userID)
}

// FindDetailByID returns a student joined with address and account email.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.nis, s.full_name, s.gender, s.birth_date, s.phone, s.user_id, s.address_id, s.active, s.created_at, s.updated_at, s.deleted_at,
        a.street, a.city, a.province, a.postal_code, u.email AS user_email
        FROM students s
        LEFT JOIN addresses a ON a.id = s.address_id
        LEFT JOIN users u ON u.id = s.user_id AND u.deleted_at IS NULL
        WHERE s.id = $1 AND s.deleted_at IS NULL`
	return GetOne[models.StudentDetail](ctx, r.store.Q(), query, id)
}

// NISAvailable checks that no live student holds the given NIS.
func (r *StudentRepository) NISAvailable(ctx context.Context, nis, excludeID string) error {
	return EnsureUnique(ctx, r.store.Q(), UniqueCheck{
		Table:    "students",
		Column:   "nis",
		Value:    nis,
		Exclude:  excludeID,
		LiveOnly: true,
	})
}

// CreateAddress inserts an address on the caller's queryer.
func (r *StudentRepository) CreateAddress(ctx context.Context, q Queryer, address *models.Address) error {
	if address.ID == "" {
		address.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	address.CreatedAt = now
	address.UpdatedAt = now
	const query = `INSERT INTO addresses (id, street, city, province, postal_code, country, created_at, updated_at)
        VALUES (:id, :street, :city, :province, :postal_code, :country, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, address); err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

// UpdateAddress updates an address on the caller's queryer.
func (r *StudentRepository) UpdateAddress(ctx context.Context, q Queryer, address *models.Address) error {
	address.UpdatedAt = time.Now().UTC()
	const query = `UPDATE addresses SET street = :street, city = :city, province = :province, postal_code = :postal_code, country = :country, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, q, query, address); err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	return nil
}

// Create inserts a student row on the caller's queryer. The service wraps
// this with address and account creation inside one transaction.
func (r *StudentRepository) Create(ctx context.Context, q Queryer, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, nis, full_name, gender, birth_date, phone, user_id, address_id, active, created_at, updated_at)
        VALUES (:id, :nis, :full_name, :gender, :birth_date, :phone, :user_id, :address_id, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update saves mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET nis = :nis, full_name = :full_name, gender = :gender, birth_date = :birth_date,
        phone = :phone, user_id = :user_id, address_id = :address_id, active = :active, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SoftDelete marks the student removed and inactive.
func (r *StudentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = FALSE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.store.Q().ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// CountActiveEnrollments returns the number of non-dropped enrollments the
// student still holds. Deletion is refused while this is non-zero.
func (r *StudentRepository) CountActiveEnrollments(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND status IN ($2, $3, $4)`
	var count int
	err := sqlx.GetContext(ctx, r.store.Q(), &count, query, id,
		models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted, models.EnrollmentStatusOnHold)
	if err != nil {
		return 0, fmt.Errorf("count student enrollments: %w", err)
	}
	return count, nil
}
