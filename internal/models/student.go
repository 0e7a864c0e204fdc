package models

import "time"

// Student represents an enrolled pupil.
type Student struct {
	ID        string     `db:"id" json:"id"`
	NIS       string     `db:"nis" json:"nis"`
	FullName  string     `db:"full_name" json:"full_name"`
	Gender    string     `db:"gender" json:"gender"`
	BirthDate time.Time  `db:"birth_date" json:"birth_date"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	UserID    *string    `db:"user_id" json:"user_id,omitempty"`
	AddressID *string    `db:"address_id" json:"address_id,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// StudentDetail joins the student with its address and user account.
type StudentDetail struct {
	Student
	Street     *string `db:"street" json:"street,omitempty"`
	City       *string `db:"city" json:"city,omitempty"`
	Province   *string `db:"province" json:"province,omitempty"`
	PostalCode *string `db:"postal_code" json:"postal_code,omitempty"`
	UserEmail  *string `db:"user_email" json:"user_email,omitempty"`
}

// StudentFilter defines filter criteria for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
