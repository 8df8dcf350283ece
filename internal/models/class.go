package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassStatus represents the lifecycle of a class.
type ClassStatus string

const (
	ClassStatusActive   ClassStatus = "active"
	ClassStatusInactive ClassStatus = "inactive"
	ClassStatusFinished ClassStatus = "finished"
)

// Class is a course group that meets a number of times per week.
type Class struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	TeacherID       *string        `db:"teacher_id" json:"teacher_id,omitempty"`
	MaxStudents     int            `db:"max_students" json:"max_students"`
	SessionsPerWeek int            `db:"sessions_per_week" json:"sessions_per_week"`
	FixedSchedule   types.JSONText `db:"fixed_schedule" json:"fixed_schedule,omitempty"`
	Status          ClassStatus    `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleRule pins a class to a weekday and a block of slot numbers.
type ScheduleRule struct {
	Day   string `json:"day"`
	Slots []int  `json:"slots"`
}

// FixedRules decodes the class' declared weekly pattern. It returns false when the
// pattern is absent or any entry lacks a day or a slot list.
func (c Class) FixedRules() ([]ScheduleRule, bool) {
	raw := strings.TrimSpace(string(c.FixedSchedule))
	if raw == "" || raw == "null" || raw == "{}" || raw == "[]" {
		return nil, false
	}
	var rules []ScheduleRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, false
	}
	for i := range rules {
		rules[i].Day = strings.ToLower(strings.TrimSpace(rules[i].Day))
		if rules[i].Day == "" || len(rules[i].Slots) == 0 {
			return nil, false
		}
	}
	return rules, true
}

// Teacher returns the default teacher id or an empty string.
func (c Class) Teacher() string {
	if c.TeacherID == nil {
		return ""
	}
	return *c.TeacherID
}
