package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SessionStatus represents the lifecycle of a class session.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusPostponed  SessionStatus = "postponed"
)

// Blocking reports whether a session in this status occupies its teacher and room.
func (s SessionStatus) Blocking() bool {
	return s == SessionStatusScheduled || s == SessionStatusInProgress
}

// Valid reports whether the status is one of the known values.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled, SessionStatusPostponed:
		return true
	}
	return false
}

// SlotSet is a set of slot numbers stored as a Postgres integer array.
type SlotSet []int

// Value implements driver.Valuer.
func (s SlotSet) Value() (driver.Value, error) {
	arr := make(pq.Int64Array, len(s))
	for i, v := range s {
		arr[i] = int64(v)
	}
	return arr.Value()
}

// Scan implements sql.Scanner.
func (s *SlotSet) Scan(src interface{}) error {
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan slot set: %w", err)
	}
	out := make(SlotSet, len(arr))
	for i, v := range arr {
		out[i] = int(v)
	}
	*s = out
	return nil
}

// Overlaps reports whether the two sets share at least one slot.
func (s SlotSet) Overlaps(other []int) bool {
	if len(s) == 0 || len(other) == 0 {
		return false
	}
	seen := make(map[int]struct{}, len(s))
	for _, v := range s {
		seen[v] = struct{}{}
	}
	for _, v := range other {
		if _, ok := seen[v]; ok {
			return true
		}
	}
	return false
}

// ClassSession is a persisted meeting of a class.
type ClassSession struct {
	ID          string        `db:"id" json:"id"`
	ClassID     string        `db:"class_id" json:"class_id"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	RoomID      string        `db:"room_id" json:"room_id"`
	SessionDate time.Time     `db:"session_date" json:"session_date"`
	StartTime   string        `db:"start_time" json:"start_time"`
	EndTime     string        `db:"end_time" json:"end_time"`
	Slots       SlotSet       `db:"slots" json:"slots"`
	Topic       string        `db:"topic" json:"topic"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
	Status      SessionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// WeeklySession is a read-only projection of a session with display names.
type WeeklySession struct {
	ID          string        `db:"id" json:"id"`
	ClassID     string        `db:"class_id" json:"class_id"`
	ClassName   string        `db:"class_name" json:"class_name"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	TeacherName string        `db:"teacher_name" json:"teacher_name"`
	RoomID      string        `db:"room_id" json:"room_id"`
	RoomName    string        `db:"room_name" json:"room_name"`
	SessionDate time.Time     `db:"session_date" json:"session_date"`
	StartTime   string        `db:"start_time" json:"start_time"`
	EndTime     string        `db:"end_time" json:"end_time"`
	Slots       SlotSet       `db:"slots" json:"slots"`
	Topic       string        `db:"topic" json:"topic"`
	Status      SessionStatus `db:"status" json:"status"`
}

// WeeklyFilter narrows the weekly projection.
type WeeklyFilter struct {
	StartDate time.Time
	EndDate   time.Time
	ClassID   string
	UserID    string
}
