package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive     EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusOnHold     EnrollmentStatus = "ON_HOLD"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
)

// ValidEnrollmentStatus reports whether s is a known status value.
func ValidEnrollmentStatus(s EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusDropped, EnrollmentStatusCompleted,
		EnrollmentStatusOnHold, EnrollmentStatusWaitlisted:
		return true
	}
	return false
}

// Enrollment captures a student's registration to a class section.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	ClassID     string           `db:"class_id" json:"class_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	Grade       *float64         `db:"grade" json:"grade,omitempty"`
	Notes       *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentNIS   string `db:"student_nis" json:"student_nis"`
	ClassName    string `db:"class_name" json:"class_name"`
	CourseName   string `db:"course_name" json:"course_name"`
	CourseCode   string `db:"course_code" json:"course_code"`
	SemesterName string `db:"semester_name" json:"semester_name"`
}

// EnrollmentStatusChange records one entry of an enrollment's status history.
type EnrollmentStatusChange struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	Reason       *string          `db:"reason" json:"reason,omitempty"`
	ChangedAt    time.Time        `db:"changed_at" json:"changed_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	ClassID    string
	SemesterID string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
