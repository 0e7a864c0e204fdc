package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/school-api/internal/models"
)

const semesterColumns = `id, name, start_date, end_date, current, status, created_at, updated_at, deleted_at`

// SemesterRepository handles persistence for academic semesters.
type SemesterRepository struct {
	store *Store
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(store *Store) *SemesterRepository {
	return &SemesterRepository{store: store}
}

// List returns live semesters matching the filter.
func (r *SemesterRepository) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	base := "FROM semesters WHERE deleted_at IS NULL"
	var args []interface{}

	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Current != nil {
		base += fmt.Sprintf(" AND current = $%d", len(args)+1)
		args = append(args, *filter.Current)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "start_date": true, "end_date": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", semesterColumns, base, sortBy, order, size, offset)
	var semesters []models.Semester
	if err := r.store.DB().SelectContext(ctx, &semesters, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list semesters: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count semesters: %w", err)
	}
	return semesters, total, nil
}

// FindByID loads a live semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters WHERE id = $1 AND deleted_at IS NULL`, semesterColumns)
	return GetOne[models.Semester](ctx, r.store.Q(), query, id)
}

// FindCurrent returns the semester flagged as current.
func (r *SemesterRepository) FindCurrent(ctx context.Context) (*models.Semester, error) {
	query := fmt.Sprintf(`SELECT %s FROM semesters WHERE current = TRUE AND deleted_at IS NULL LIMIT 1`, semesterColumns)
	return GetOne[models.Semester](ctx, r.store.Q(), query)
}

// NameAvailable probes semester name uniqueness among live rows.
func (r *SemesterRepository) NameAvailable(ctx context.Context, q Queryer, name, excludeID string) error {
	return EnsureUnique(ctx, q, UniqueCheck{Table: "semesters", Column: "name", Value: name, Exclude: excludeID, LiveOnly: true})
}

// OverlapExists reports whether any other live semester's date range
// intersects [start, end]. excludeID skips the semester's own row on update.
func (r *SemesterRepository) OverlapExists(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	query := `SELECT 1 FROM semesters WHERE deleted_at IS NULL AND start_date <= $2 AND end_date >= $1`
	args := []interface{}{start, end}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	overlap, err := Exists(ctx, r.store.Q(), query+" LIMIT 1", args...)
	if err != nil {
		return false, fmt.Errorf("check semester overlap: %w", err)
	}
	return overlap, nil
}

// Create inserts a new semester record.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if semester.CreatedAt.IsZero() {
		semester.CreatedAt = now
	}
	semester.UpdatedAt = now
	if semester.Status == "" {
		semester.Status = models.SemesterStatusPlanned
	}
	const query = `INSERT INTO semesters (id, name, start_date, end_date, current, status, created_at, updated_at)
        VALUES (:id, :name, :start_date, :end_date, :current, :status, :created_at, :updated_at)`
	if _, err := r.store.DB().NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// Update modifies an existing semester.
func (r *SemesterRepository) Update(ctx context.Context, semester *models.Semester) error {
	semester.UpdatedAt = time.Now().UTC()
	const query = `UPDATE semesters SET name = :name, start_date = :start_date, end_date = :end_date, status = :status, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.store.DB().NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("update semester: %w", err)
	}
	return nil
}

// SetCurrent marks the provided semester as current and clears the flag on
// the rest in one transaction.
func (r *SemesterRepository) SetCurrent(ctx context.Context, id string) error {
	return r.store.WithinTx(ctx, func(q Queryer) error {
		now := time.Now().UTC()
		if _, err := q.ExecContext(ctx, `UPDATE semesters SET current = FALSE, updated_at = $1 WHERE current = TRUE AND id <> $2`, now, id); err != nil {
			return fmt.Errorf("clear current semesters: %w", err)
		}
		if _, err := q.ExecContext(ctx, `UPDATE semesters SET current = TRUE, status = $3, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, now, models.SemesterStatusActive); err != nil {
			return fmt.Errorf("set current semester: %w", err)
		}
		return nil
	})
}

// CountClassRooms returns the number of class sections scheduled in the semester.
func (r *SemesterRepository) CountClassRooms(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_rooms WHERE semester_id = $1`
	var count int
	if err := r.store.DB().GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count semester class sections: %w", err)
	}
	return count, nil
}

// SoftDelete stamps deleted_at on the semester.
func (r *SemesterRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE semesters SET deleted_at = $2, updated_at = $2, current = FALSE WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.store.Q().ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete semester: %w", err)
	}
	return nil
}
