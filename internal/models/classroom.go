package models

import "time"

// ClassRoom represents a scheduled section of a course within a semester.
type ClassRoom struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	SemesterID    string    `db:"semester_id" json:"semester_id"`
	Name          string    `db:"name" json:"name"`
	DayOfWeek     string    `db:"day_of_week" json:"day_of_week"`
	StartTime     string    `db:"start_time" json:"start_time"`
	EndTime       string    `db:"end_time" json:"end_time"`
	RoomID        *string   `db:"room_id" json:"room_id,omitempty"`
	MaxEnrollment int       `db:"max_enrollment" json:"max_enrollment"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ClassRoomDetail enriches ClassRoom with course, semester and room info.
type ClassRoomDetail struct {
	ClassRoom
	CourseName    string  `db:"course_name" json:"course_name"`
	CourseCode    string  `db:"course_code" json:"course_code"`
	SemesterName  string  `db:"semester_name" json:"semester_name"`
	RoomNumber    *string `db:"room_number" json:"room_number,omitempty"`
	EnrolledCount int     `db:"enrolled_count" json:"enrolled_count"`
}

// ClassRoomFilter defines filter criteria for listing class sections.
type ClassRoomFilter struct {
	CourseID   string
	SemesterID string
	RoomID     string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
