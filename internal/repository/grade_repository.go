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

// GradeRepository handles persistence of grade components.
type GradeRepository struct {
	store *Store
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(store *Store) *GradeRepository {
	return &GradeRepository{store: store}
}

// List returns grade entries matching the filter with total count.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeEntry, int, error) {
	base := "FROM grade_entries g"
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("g.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.ClassID != "" {
		base += " JOIN enrollments e ON e.id = g.enrollment_id"
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Component != "" {
		conditions = append(conditions, fmt.Sprintf("g.component = $%d", len(args)+1))
		args = append(args, filter.Component)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT g.id, g.enrollment_id, g.component, g.score, g.weight, g.created_at, g.updated_at
        %s ORDER BY g.created_at ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var entries []models.GradeEntry
	if err := r.store.DB().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return entries, total, nil
}

// FindByID returns one grade entry.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeEntry, error) {
	const query = `SELECT id, enrollment_id, component, score, weight, created_at, updated_at FROM grade_entries WHERE id = $1`
	return GetOne[models.GradeEntry](ctx, r.store.Q(), query, id)
}

// ComponentAvailable checks that the enrollment has no entry for this
// component yet.
func (r *GradeRepository) ComponentAvailable(ctx context.Context, enrollmentID, component, excludeID string) error {
	query := `SELECT 1 FROM grade_entries WHERE enrollment_id = $1 AND component = $2`
	args := []interface{}{enrollmentID, component}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	exists, err := Exists(ctx, r.store.Q(), query+" LIMIT 1", args...)
	if err != nil {
		return fmt.Errorf("check grade component: %w", err)
	}
	if exists {
		return ErrDuplicate
	}
	return nil
}

// Create inserts a grade entry on the caller's queryer.
func (r *GradeRepository) Create(ctx context.Context, q Queryer, entry *models.GradeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO grade_entries (id, enrollment_id, component, score, weight, created_at, updated_at)
        VALUES (:id, :enrollment_id, :component, :score, :weight, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, entry); err != nil {
		return fmt.Errorf("create grade entry: %w", err)
	}
	return nil
}

// Update saves score and weight for a grade entry.
func (r *GradeRepository) Update(ctx context.Context, entry *models.GradeEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_entries SET component = :component, score = :score, weight = :weight, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.store.Q(), query, entry); err != nil {
		return fmt.Errorf("update grade entry: %w", err)
	}
	return nil
}

// Delete removes one grade entry.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Q().ExecContext(ctx, `DELETE FROM grade_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete grade entry: %w", err)
	}
	return nil
}

// Summary computes the weighted final score for one enrollment.
func (r *GradeRepository) Summary(ctx context.Context, enrollmentID string) (*models.GradeSummary, error) {
	const query = `SELECT $1::text AS enrollment_id,
        COALESCE(SUM(score * weight), 0) AS final_score,
        COALESCE(SUM(weight), 0) AS total_weight,
        COUNT(*) AS components
        FROM grade_entries WHERE enrollment_id = $1`
	summary := &models.GradeSummary{}
	if err := sqlx.GetContext(ctx, r.store.Q(), summary, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("grade summary: %w", err)
	}
	return summary, nil
}
