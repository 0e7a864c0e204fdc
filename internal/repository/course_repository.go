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

// CourseRepository handles persistence for catalog courses.
type CourseRepository struct {
	store *Store
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(store *Store) *CourseRepository {
	return &CourseRepository{store: store}
}

// List returns courses matching the filter with department names joined in.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c JOIN departments d ON d.id = c.department_id WHERE 1=1`
	var args []interface{}

	if filter.DepartmentID != "" {
		base += fmt.Sprintf(" AND c.department_id = $%d", len(args)+1)
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND c.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Required != nil {
		base += fmt.Sprintf(" AND c.required = $%d", len(args)+1)
		args = append(args, *filter.Required)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "c.name",
		"code":       "c.code",
		"credits":    "c.credits",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.name"
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

	query := fmt.Sprintf(`SELECT c.id, c.name, c.code, c.description, c.department_id, c.credits, c.required, c.status, c.created_at, c.updated_at,
        d.name AS department_name %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)
	var courses []models.CourseDetail
	if err := r.store.DB().SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.store.DB().GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, code, description, department_id, credits, required, status, created_at, updated_at FROM courses WHERE id = $1`
	return GetOne[models.Course](ctx, r.store.Q(), query, id)
}

// FindDetailByID loads a course with department name and prerequisites.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	const query = `SELECT c.id, c.name, c.code, c.description, c.department_id, c.credits, c.required, c.status, c.created_at, c.updated_at,
        d.name AS department_name
        FROM courses c JOIN departments d ON d.id = c.department_id
        WHERE c.id = $1`
	detail, err := GetOne[models.CourseDetail](ctx, r.store.Q(), query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course detail: %w", err)
	}
	prereqs, err := r.Prerequisites(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Prerequisites = prereqs
	return detail, nil
}

// NameAvailable probes course name uniqueness.
func (r *CourseRepository) NameAvailable(ctx context.Context, q Queryer, name, excludeID string) error {
	return EnsureUnique(ctx, q, UniqueCheck{Table: "courses", Column: "name", Value: name, Exclude: excludeID})
}

// CodeAvailable probes course code uniqueness.
func (r *CourseRepository) CodeAvailable(ctx context.Context, q Queryer, code, excludeID string) error {
	return EnsureUnique(ctx, q, UniqueCheck{Table: "courses", Column: "code", Value: code, Exclude: excludeID})
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.CourseStatusActive
	}
	const query = `INSERT INTO courses (id, name, code, description, department_id, credits, required, status, created_at, updated_at)
        VALUES (:id, :name, :code, :description, :department_id, :credits, :required, :status, :created_at, :updated_at)`
	if _, err := r.store.DB().NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, code = :code, description = :description, department_id = :department_id, credits = :credits, required = :required, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.store.DB().NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// CountClassRooms returns the number of class sections referencing the course.
func (r *CourseRepository) CountClassRooms(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_rooms WHERE course_id = $1`
	var count int
	if err := r.store.DB().GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count course class sections: %w", err)
	}
	return count, nil
}

// Delete removes a course permanently. Prerequisite links go with it.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return r.store.WithinTx(ctx, func(q Queryer) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1 OR prerequisite_id = $1`, id); err != nil {
			return fmt.Errorf("delete course prerequisites: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		return nil
	})
}

// Prerequisites returns the prerequisite courses of a course.
func (r *CourseRepository) Prerequisites(ctx context.Context, id string) ([]models.Course, error) {
	const query = `SELECT c.id, c.name, c.code, c.description, c.department_id, c.credits, c.required, c.status, c.created_at, c.updated_at
        FROM course_prerequisites p JOIN courses c ON c.id = p.prerequisite_id
        WHERE p.course_id = $1 ORDER BY c.code`
	var courses []models.Course
	if err := r.store.DB().SelectContext(ctx, &courses, query, id); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return courses, nil
}

// ReplacePrerequisites rewrites the prerequisite set for a course.
func (r *CourseRepository) ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error {
	return r.store.WithinTx(ctx, func(q Queryer) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, courseID); err != nil {
			return fmt.Errorf("clear prerequisites: %w", err)
		}
		for _, prereqID := range prerequisiteIDs {
			if _, err := q.ExecContext(ctx, `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)`, courseID, prereqID); err != nil {
				return fmt.Errorf("insert prerequisite: %w", err)
			}
		}
		return nil
	})
}

// MissingPrerequisites returns prerequisite courses of classID's course for
// which the student has no completed enrollment.
func (r *CourseRepository) MissingPrerequisites(ctx context.Context, q Queryer, studentID, classID string) ([]models.Course, error) {
	const query = `SELECT c.id, c.name, c.code, c.description, c.department_id, c.credits, c.required, c.status, c.created_at, c.updated_at
        FROM class_rooms cr
        JOIN course_prerequisites p ON p.course_id = cr.course_id
        JOIN courses c ON c.id = p.prerequisite_id
        WHERE cr.id = $1
          AND NOT EXISTS (
            SELECT 1 FROM enrollments e
            JOIN class_rooms pcr ON pcr.id = e.class_id
            WHERE e.student_id = $2 AND pcr.course_id = p.prerequisite_id AND e.status = $3
          )`
	var missing []models.Course
	if err := sqlx.SelectContext(ctx, q, &missing, query, classID, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("check prerequisites: %w", err)
	}
	return missing, nil
}
