package models

import "time"

// Teacher represents an instructor record.
type Teacher struct {
	ID           string     `db:"id" json:"id"`
	NIP          *string    `db:"nip" json:"nip,omitempty"`
	Email        string     `db:"email" json:"email"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Expertise    *string    `db:"expertise" json:"expertise,omitempty"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// TeacherDetail enriches Teacher with its department name.
type TeacherDetail struct {
	Teacher
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search       string
	DepartmentID string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
