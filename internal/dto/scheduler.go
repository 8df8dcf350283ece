package dto

import "time"

// ConflictType enumerates why a placement was rejected.
type ConflictType string

const (
	ConflictTeacherBusy            ConflictType = "teacher_busy"
	ConflictRoomUnavailable        ConflictType = "room_unavailable"
	ConflictMaxSlotViolation       ConflictType = "max_slot_violation"
	ConflictRequestClassConflict   ConflictType = "request_class_conflict"
	ConflictRequestTeacherConflict ConflictType = "request_teacher_conflict"
	ConflictNoSlots                ConflictType = "no_slots"
)

// ConflictMap declares caller-side blackouts: entity id -> ISO date -> slot numbers.
type ConflictMap map[string]map[string][]int

// GenerateScheduleRequest instructs the generator to plan sessions over a date window.
type GenerateScheduleRequest struct {
	StartDate          string      `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string      `json:"end_date" validate:"required,datetime=2006-01-02"`
	ClassIDs           []string    `json:"class_ids" validate:"omitempty,dive,required"`
	MaxSlotsPerSession int         `json:"max_slots_per_session" validate:"omitempty,min=1"`
	PreferMorning      bool        `json:"prefer_morning"`
	ClassConflictMap   ConflictMap `json:"class_conflict_map"`
	TeacherConflictMap ConflictMap `json:"teacher_conflict_map"`
}

// SessionProposal is a planned, not yet persisted, session.
type SessionProposal struct {
	ClassID     string `json:"class_id" validate:"required"`
	ClassName   string `json:"class_name,omitempty"`
	TeacherID   string `json:"teacher_id" validate:"required"`
	TeacherName string `json:"teacher_name,omitempty"`
	RoomID      string `json:"room_id" validate:"required"`
	RoomName    string `json:"room_name,omitempty"`
	SessionDate string `json:"session_date" validate:"required,datetime=2006-01-02"`
	DayOfWeek   string `json:"day_of_week,omitempty"`
	Slots       []int  `json:"slots" validate:"required,min=1,dive,min=1"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Topic       string `json:"topic"`
}

// PlacementSuggestion is an alternative free placement for a conflicting session.
type PlacementSuggestion struct {
	SessionDate string `json:"session_date"`
	DayOfWeek   string `json:"day_of_week"`
	Slots       []int  `json:"slots"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
}

// ConflictInfo records a rejected placement attempt.
type ConflictInfo struct {
	ClassID      string                `json:"class_id"`
	ClassName    string                `json:"class_name"`
	ConflictType ConflictType          `json:"conflict_type"`
	SessionDate  string                `json:"session_date"`
	Slots        []int                 `json:"slots"`
	Reason       string                `json:"reason"`
	Suggestions  []PlacementSuggestion `json:"suggestions"`
}

// ScheduleStatistics summarises a generation run.
type ScheduleStatistics struct {
	WindowDays      int                  `json:"window_days"`
	TotalAttempts   int                  `json:"total_attempts"`
	SuccessRate     float64              `json:"success_rate"`
	ConflictsByType map[ConflictType]int `json:"conflicts_by_type"`
	SessionsByClass map[string]int       `json:"sessions_by_class"`
	Targets         map[string]int       `json:"targets"`
}

// ScheduleProposal is the reviewable output of a generation run.
type ScheduleProposal struct {
	ProposalID         string             `json:"proposal_id"`
	TotalClasses       int                `json:"total_classes"`
	SuccessfulSessions int                `json:"successful_sessions"`
	ConflictCount      int                `json:"conflict_count"`
	Sessions           []SessionProposal  `json:"sessions" validate:"dive"`
	Conflicts          []ConflictInfo     `json:"conflicts"`
	Statistics         ScheduleStatistics `json:"statistics"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// ApplyProposalRequest persists either an inline proposal or a stored one by id.
type ApplyProposalRequest struct {
	ProposalID string            `json:"proposal_id"`
	Proposal   *ScheduleProposal `json:"proposal"`
}

// ApplyProposalResponse reports the sessions created by an apply.
type ApplyProposalResponse struct {
	CreatedCount int      `json:"created_count"`
	Message      string   `json:"message"`
	SessionIDs   []string `json:"session_ids"`
}

// CreateSessionRequest manually places a single session.
type CreateSessionRequest struct {
	ClassID     string  `json:"class_id" validate:"required"`
	SessionDate string  `json:"session_date" validate:"required,datetime=2006-01-02"`
	Slots       []int   `json:"slots" validate:"required,min=1,dive,min=1"`
	RoomID      *string `json:"room_id" validate:"omitempty,min=1"`
	TeacherID   *string `json:"teacher_id" validate:"omitempty,min=1"`
	Topic       *string `json:"topic" validate:"omitempty,max=255"`
	Notes       *string `json:"notes"`
}

// UpdateSessionRequest patches a session; nil fields are left unchanged.
type UpdateSessionRequest struct {
	SessionDate *string `json:"session_date" validate:"omitempty,datetime=2006-01-02"`
	Slots       []int   `json:"slots" validate:"omitempty,min=1,dive,min=1"`
	RoomID      *string `json:"room_id" validate:"omitempty,min=1"`
	TeacherID   *string `json:"teacher_id" validate:"omitempty,min=1"`
	Topic       *string `json:"topic" validate:"omitempty,max=255"`
	Notes       *string `json:"notes"`
	Status      *string `json:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelled postponed"`
}

// SessionResponse is the API view of a persisted session.
type SessionResponse struct {
	ID          string  `json:"id"`
	ClassID     string  `json:"class_id"`
	TeacherID   string  `json:"teacher_id"`
	RoomID      string  `json:"room_id"`
	SessionDate string  `json:"session_date"`
	DayOfWeek   string  `json:"day_of_week"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Slots       []int   `json:"slots"`
	Topic       string  `json:"topic"`
	Notes       *string `json:"notes,omitempty"`
	Status      string  `json:"status"`
}

// DeleteSessionResponse confirms a soft delete.
type DeleteSessionResponse struct {
	Success bool `json:"success"`
}

// SuggestPlacementRequest asks for free alternatives to a desired placement.
type SuggestPlacementRequest struct {
	ClassID        string  `json:"class_id" validate:"required"`
	SessionDate    string  `json:"session_date" validate:"required,datetime=2006-01-02"`
	Slots          []int   `json:"slots" validate:"required,min=1,dive,min=1"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,min=1"`
	SearchDays     int     `json:"search_days" validate:"omitempty,min=1,max=31"`
	MaxSuggestions int     `json:"max_suggestions" validate:"omitempty,min=1,max=20"`
}

// SuggestPlacementResponse wraps the optional conflict with its alternatives.
type SuggestPlacementResponse struct {
	Available bool          `json:"available"`
	Conflict  *ConflictInfo `json:"conflict,omitempty"`
}

// WeeklyScheduleQuery filters the weekly projection.
type WeeklyScheduleQuery struct {
	StartDate string `form:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	ClassID   string `form:"class_id" json:"class_id"`
	UserID    string `form:"user_id" json:"user_id"`
}

// WeeklySessionView is one row of the weekly projection.
type WeeklySessionView struct {
	ID          string `json:"id"`
	ClassID     string `json:"class_id"`
	ClassName   string `json:"class_name"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	SessionDate string `json:"session_date"`
	DayOfWeek   string `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Slots       []int  `json:"slots"`
	Topic       string `json:"topic"`
	Status      string `json:"status"`
}

// WeeklyScheduleResponse lists sessions in a date window.
type WeeklyScheduleResponse struct {
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Total     int                 `json:"total"`
	Sessions  []WeeklySessionView `json:"sessions"`
}

// ExportWeeklyQuery selects the weekly window and file format for export.
type ExportWeeklyQuery struct {
	WeeklyScheduleQuery
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportResult carries a rendered export file.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}
