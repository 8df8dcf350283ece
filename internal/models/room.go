package models

import "time"

// RoomStatus tracks whether a room can host sessions.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusMaintenance RoomStatus = "maintenance"
	RoomStatusRetired     RoomStatus = "retired"
)

// Room is a physical classroom.
type Room struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Capacity  int        `db:"capacity" json:"capacity"`
	Status    RoomStatus `db:"status" json:"status"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
