package models

import "time"

// Parent represents a student guardian.
type Parent struct {
	ID         string     `db:"id" json:"id"`
	Email      string     `db:"email" json:"email"`
	FullName   string     `db:"full_name" json:"full_name"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Occupation *string    `db:"occupation" json:"occupation,omitempty"`
	UserID     *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}

// ParentStudent links a parent to one of their children.
type ParentStudent struct {
	ParentID     string    `db:"parent_id" json:"parent_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Relationship string    `db:"relationship" json:"relationship"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ParentFilter captures filtering options for listing parents.
type ParentFilter struct {
	Search    string
	StudentID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
