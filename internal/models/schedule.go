package models

import "fmt"

// Resource dimensions a session can collide on.
const (
	ConflictDimensionTeacher = "teacher"
	ConflictDimensionRoom    = "room"
)

// SessionConflict describes the occupied resource behind a rejected placement.
type SessionConflict struct {
	Dimension   string `json:"dimension"`
	ResourceID  string `json:"resource_id"`
	SessionDate string `json:"session_date"`
	Slots       []int  `json:"slots"`
}

// ScheduleConflictError is returned when a manual placement collides with existing sessions.
type ScheduleConflictError struct {
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Conflict SessionConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Details exposes the conflict payload to API clients.
func (e *ScheduleConflictError) Details() interface{} {
	return e
}

// ScheduleInfeasibleError names the class whose weekly target could not be met.
type ScheduleInfeasibleError struct {
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	Target    int    `json:"target"`
	Achieved  int    `json:"achieved"`
}

func (e *ScheduleInfeasibleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("class %s (%s) reached %d of %d required sessions", e.ClassName, e.ClassID, e.Achieved, e.Target)
}

// Details exposes the unmet target to API clients.
func (e *ScheduleInfeasibleError) Details() interface{} {
	return e
}
