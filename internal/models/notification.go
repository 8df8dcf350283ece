package models

import "time"

// NotificationType classifies scheduling notifications.
type NotificationType string

const (
	NotificationSessionScheduled   NotificationType = "session_scheduled"
	NotificationSessionRescheduled NotificationType = "session_rescheduled"
	NotificationSessionCancelled   NotificationType = "session_cancelled"
)

// NotificationPriority orders notifications for display.
type NotificationPriority string

const (
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// Notification is an inbox entry addressed to one user.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"user_id"`
	Title     string               `db:"title" json:"title"`
	Content   string               `db:"content" json:"content"`
	Type      NotificationType     `db:"type" json:"type"`
	Priority  NotificationPriority `db:"priority" json:"priority"`
	ActionURL *string              `db:"action_url" json:"action_url,omitempty"`
	IsRead    bool                 `db:"is_read" json:"is_read"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}
