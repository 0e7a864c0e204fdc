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

// blockingStatuses are the statuses that count as a live registration for the
// duplicate check. A dropped enrollment does not block re-registration; a
// completed one is handled by the service (retakes are rejected separately).
var blockingStatuses = []models.EnrollmentStatus{
	models.EnrollmentStatusActive,
	models.EnrollmentStatusWaitlisted,
	models.EnrollmentStatusOnHold,
}

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	store *Store
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(store *Store) *EnrollmentRepository {
	return &EnrollmentRepository{store: store}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN class_rooms cr ON cr.id = e.class_id
JOIN courses c ON c.id = cr.course_id
JOIN semesters s ON s.id = cr.semester_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "st.full_name",
		"course_code":  "c.code",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.status, e.enrolled_at, e.completed_at, e.grade, e.notes, e.created_at, e.updated_at,
        st.full_name AS student_name, st.nis AS student_nis, cr.name AS class_name,
        c.name AS course_name, c.code AS course_code, s.name AS semester_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.store.DB().SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, enrolled_at, completed_at, grade, notes, created_at, updated_at FROM enrollments WHERE id = $1`
	return GetOne[models.Enrollment](ctx, r.store.Q(), query, id)
}

// FindByIDForStudent fetches an enrollment constrained to both its own ID and
// the requesting student's ID. The combined predicate fuses the existence
// check with ownership, so a student cannot reach another student's
// enrollment by guessing IDs.
func (r *EnrollmentRepository) FindByIDForStudent(ctx context.Context, q Queryer, id, studentID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, enrolled_at, completed_at, grade, notes, created_at, updated_at FROM enrollments WHERE id = $1 AND student_id = $2`
	return GetOne[models.Enrollment](ctx, q, query, id, studentID)
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.status, e.enrolled_at, e.completed_at, e.grade, e.notes, e.created_at, e.updated_at,
        st.full_name AS student_name, st.nis AS student_nis, cr.name AS class_name,
        c.name AS course_name, c.code AS course_code, s.name AS semester_name
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN class_rooms cr ON cr.id = e.class_id
        JOIN courses c ON c.id = cr.course_id
        JOIN semesters s ON s.id = cr.semester_id
        WHERE e.id = $1`
	detail, err := GetOne[models.EnrollmentDetail](ctx, r.store.Q(), query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment detail: %w", err)
	}
	return detail, nil
}

// ExistsLive checks whether the student already holds a blocking registration
// for the class section. Runs on the caller's queryer so the probe and the
// subsequent insert share one transaction.
func (r *EnrollmentRepository) ExistsLive(ctx context.Context, q Queryer, studentID, classID, excludeID string) (bool, error) {
	query := `SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4, $5)`
	args := []interface{}{studentID, classID, blockingStatuses[0], blockingStatuses[1], blockingStatuses[2]}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	exists, err := Exists(ctx, q, query+" LIMIT 1", args...)
	if err != nil {
		return false, fmt.Errorf("check live enrollment: %w", err)
	}
	return exists, nil
}

// HasCompleted reports whether the student already completed the class's course.
func (r *EnrollmentRepository) HasCompleted(ctx context.Context, q Queryer, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e
        JOIN class_rooms cr ON cr.id = e.class_id
        WHERE e.student_id = $1 AND e.status = $2
          AND cr.course_id = (SELECT course_id FROM class_rooms WHERE id = $3)
        LIMIT 1`
	done, err := Exists(ctx, q, query, studentID, models.EnrollmentStatusCompleted, classID)
	if err != nil {
		return false, fmt.Errorf("check completed enrollment: %w", err)
	}
	return done, nil
}

// FirstWaitlisted returns the oldest waitlisted enrollment for a class, used
// to promote after a seat frees up.
func (r *EnrollmentRepository) FirstWaitlisted(ctx context.Context, q Queryer, classID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, enrolled_at, completed_at, grade, notes, created_at, updated_at
        FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY enrolled_at ASC LIMIT 1`
	return GetOne[models.Enrollment](ctx, q, query, classID, models.EnrollmentStatusWaitlisted)
}

// Create persists a new enrollment together with its first history entry.
func (r *EnrollmentRepository) Create(ctx context.Context, q Queryer, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, class_id, status, enrolled_at, completed_at, grade, notes, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :status, :enrolled_at, :completed_at, :grade, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return r.AddStatusChange(ctx, q, &models.EnrollmentStatusChange{
		EnrollmentID: enrollment.ID,
		Status:       enrollment.Status,
		ChangedAt:    now,
	})
}

// AddStatusChange appends one status history entry.
func (r *EnrollmentRepository) AddStatusChange(ctx context.Context, q Queryer, change *models.EnrollmentStatusChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_status_history (id, enrollment_id, status, reason, changed_at)
        VALUES (:id, :enrollment_id, :status, :reason, :changed_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, change); err != nil {
		return fmt.Errorf("record status change: %w", err)
	}
	return nil
}

// StatusHistory returns the ordered status history for an enrollment.
func (r *EnrollmentRepository) StatusHistory(ctx context.Context, id string) ([]models.EnrollmentStatusChange, error) {
	const query = `SELECT id, enrollment_id, status, reason, changed_at FROM enrollment_status_history WHERE enrollment_id = $1 ORDER BY changed_at ASC`
	var history []models.EnrollmentStatusChange
	if err := r.store.DB().SelectContext(ctx, &history, query, id); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// UpdateStatus sets status, completion timestamp and grade for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, q Queryer, id string, status models.EnrollmentStatus, completedAt *time.Time, grade *float64) error {
	const query = `UPDATE enrollments SET status = $2, completed_at = $3, grade = COALESCE($4, grade), updated_at = $5 WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, id, status, completedAt, grade, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Delete removes the enrollment and its history permanently.
func (r *EnrollmentRepository) Delete(ctx context.Context, q Queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM enrollment_status_history WHERE enrollment_id = $1`, id); err != nil {
		return fmt.Errorf("delete status history: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// ListCompletedByStudent returns completed enrollments with course context,
// ordered by completion date. Used for transcript export.
func (r *EnrollmentRepository) ListCompletedByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.status, e.enrolled_at, e.completed_at, e.grade, e.notes, e.created_at, e.updated_at,
        st.full_name AS student_name, st.nis AS student_nis, cr.name AS class_name,
        c.name AS course_name, c.code AS course_code, s.name AS semester_name
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN class_rooms cr ON cr.id = e.class_id
        JOIN courses c ON c.id = cr.course_id
        JOIN semesters s ON s.id = cr.semester_id
        WHERE e.student_id = $1 AND e.status = $2
        ORDER BY e.completed_at ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.store.DB().SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("list completed enrollments: %w", err)
	}
	return enrollments, nil
}

// ListActiveByClass returns the active roster for a class section.
func (r *EnrollmentRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.status, e.enrolled_at, e.completed_at, e.grade, e.notes, e.created_at, e.updated_at,
        st.full_name AS student_name, st.nis AS student_nis, cr.name AS class_name,
        c.name AS course_name, c.code AS course_code, s.name AS semester_name
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN class_rooms cr ON cr.id = e.class_id
        JOIN courses c ON c.id = cr.course_id
        JOIN semesters s ON s.id = cr.semester_id
        WHERE e.class_id = $1 AND e.status = $2
        ORDER BY st.full_name ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.store.DB().SelectContext(ctx, &enrollments, query, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return enrollments, nil
}
