package models

import "time"

// Department groups courses and teachers under one academic unit.
type Department struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Code        string     `db:"code" json:"code"`
	HeadID      *string    `db:"head_id" json:"head_id,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	Location    *string    `db:"location" json:"location,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	PhoneNumber *string    `db:"phone_number" json:"phone_number,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// DepartmentDetail enriches Department with head info and dependent counts.
type DepartmentDetail struct {
	Department
	HeadName     *string `db:"head_name" json:"head_name,omitempty"`
	TeacherCount int     `db:"teacher_count" json:"teacher_count"`
	CourseCount  int     `db:"course_count" json:"course_count"`
}

// DepartmentFilter defines filter criteria for listing departments.
type DepartmentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
