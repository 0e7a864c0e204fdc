package models

import "time"

// SemesterStatus represents the lifecycle of a semester.
type SemesterStatus string

const (
	SemesterStatusPlanned  SemesterStatus = "PLANNED"
	SemesterStatusActive   SemesterStatus = "ACTIVE"
	SemesterStatusArchived SemesterStatus = "ARCHIVED"
)

// ValidSemesterStatus reports whether s is a known status value.
func ValidSemesterStatus(s SemesterStatus) bool {
	switch s {
	case SemesterStatusPlanned, SemesterStatusActive, SemesterStatusArchived:
		return true
	}
	return false
}

// Semester represents an academic period. At most one semester is current.
type Semester struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	StartDate time.Time      `db:"start_date" json:"start_date"`
	EndDate   time.Time      `db:"end_date" json:"end_date"`
	Current   bool           `db:"current" json:"current"`
	Status    SemesterStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time     `db:"deleted_at" json:"-"`
}

// SemesterFilter defines filter criteria for listing semesters.
type SemesterFilter struct {
	Status    SemesterStatus
	Current   *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
