package models

import "time"

// CourseStatus represents the publication state of a course.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "ACTIVE"
	CourseStatusInactive CourseStatus = "INACTIVE"
	CourseStatusArchived CourseStatus = "ARCHIVED"
)

// ValidCourseStatus reports whether s is a known status value.
func ValidCourseStatus(s CourseStatus) bool {
	switch s {
	case CourseStatusActive, CourseStatusInactive, CourseStatusArchived:
		return true
	}
	return false
}

// Course represents a catalog course owned by a department.
type Course struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Code         string       `db:"code" json:"code"`
	Description  *string      `db:"description" json:"description,omitempty"`
	DepartmentID string       `db:"department_id" json:"department_id"`
	Credits      int          `db:"credits" json:"credits"`
	Required     bool         `db:"required" json:"required"`
	Status       CourseStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with department and prerequisite info.
type CourseDetail struct {
	Course
	DepartmentName string   `db:"department_name" json:"department_name"`
	Prerequisites  []Course `db:"-" json:"prerequisites,omitempty"`
}

// CourseFilter defines filter criteria for the course catalog.
type CourseFilter struct {
	Search       string
	DepartmentID string
	Status       CourseStatus
	Required     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
