package models

import "time"

// RoomType classifies rooms by purpose.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "CLASSROOM"
	RoomTypeLaboratory RoomType = "LABORATORY"
	RoomTypeAuditorium RoomType = "AUDITORIUM"
	RoomTypeOffice     RoomType = "OFFICE"
)

// ValidRoomType reports whether t is a known room type.
func ValidRoomType(t RoomType) bool {
	switch t {
	case RoomTypeClassroom, RoomTypeLaboratory, RoomTypeAuditorium, RoomTypeOffice:
		return true
	}
	return false
}

// Room represents a physical room where class sections meet.
type Room struct {
	ID            string    `db:"id" json:"id"`
	RoomNumber    string    `db:"room_number" json:"room_number"`
	Building      *string   `db:"building" json:"building,omitempty"`
	Capacity      int       `db:"capacity" json:"capacity"`
	RoomType      RoomType  `db:"room_type" json:"room_type"`
	HasProjector  bool      `db:"has_projector" json:"has_projector"`
	HasWhiteboard bool      `db:"has_whiteboard" json:"has_whiteboard"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter defines filter criteria for listing rooms.
type RoomFilter struct {
	Building  string
	RoomType  RoomType
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
