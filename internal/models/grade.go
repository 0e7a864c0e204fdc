package models

import "time"

// GradeEntry is a scored component of an enrollment (assignment, exam, ...).
type GradeEntry struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Component    string    `db:"component" json:"component"`
	Score        float64   `db:"score" json:"score"`
	Weight       float64   `db:"weight" json:"weight"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeSummary aggregates the weighted score for an enrollment.
type GradeSummary struct {
	EnrollmentID string  `db:"enrollment_id" json:"enrollment_id"`
	FinalScore   float64 `db:"final_score" json:"final_score"`
	TotalWeight  float64 `db:"total_weight" json:"total_weight"`
	Components   int     `db:"components" json:"components"`
}

// GradeFilter provides filters for grade listings.
type GradeFilter struct {
	EnrollmentID string
	ClassID      string
	Component    string
	Page         int
	PageSize     int
}
