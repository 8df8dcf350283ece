package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
)

const sessionColumns = "id, class_id, teacher_id, room_id, session_date, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, slots, topic, notes, status, created_at, updated_at"

const insertSessionQuery = `INSERT INTO class_sessions (id, class_id, teacher_id, room_id, session_date, start_time, end_time, slots, topic, notes, status, created_at, updated_at) VALUES (:id, :class_id, :teacher_id, :room_id, :session_date, :start_time, :end_time, :slots, :topic, :notes, :status, :created_at, :updated_at)`

// ClassSessionRepository provides persistence for class sessions.
type ClassSessionRepository struct {
	db *sqlx.DB
}

// NewClassSessionRepository creates a new class session repository.
func NewClassSessionRepository(db *sqlx.DB) *ClassSessionRepository {
	return &ClassSessionRepository{db: db}
}

// FindByID loads a session by id.
func (r *ClassSessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE id = $1", sessionColumns)
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create stores a single session.
func (r *ClassSessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	sessions := []models.ClassSession{*session}
	if err := r.insertSessions(ctx, r.db, sessions); err != nil {
		return err
	}
	*session = sessions[0]
	return nil
}

// BulkCreateWithTx inserts sessions using an existing transaction.
func (r *ClassSessionRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.ClassSession) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.insertSessions(ctx, tx, sessions)
}

func (r *ClassSessionRepository) insertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.ClassSession) error {
	now := time.Now().UTC()
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.Status == "" {
			payload.Status = models.SessionStatusScheduled
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, insertSessionQuery, &payload); err != nil {
			return fmt.Errorf("insert class session: %w", err)
		}
		sessions[i] = payload
	}
	return nil
}

// Update rewrites the mutable fields of a session.
func (r *ClassSessionRepository) Update(ctx context.Context, session *models.ClassSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sessions SET teacher_id = :teacher_id, room_id = :room_id, session_date = :session_date, start_time = :start_time, end_time = :end_time, slots = :slots, topic = :topic, notes = :notes, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update class session: %w", err)
	}
	return nil
}

// UpdateStatus flips the lifecycle status of a session without touching its placement.
func (r *ClassSessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE class_sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update class session status: %w", err)
	}
	return nil
}

// ListBlockingByTeacher returns scheduled or in-progress sessions of a teacher on a date.
func (r *ClassSessionRepository) ListBlockingByTeacher(ctx context.Context, teacherID string, date time.Time, excludeID string) ([]models.ClassSession, error) {
	return r.listBlocking(ctx, "teacher_id", teacherID, date, excludeID)
}

// ListBlockingByRoom returns scheduled or in-progress sessions held in a room on a date.
func (r *ClassSessionRepository) ListBlockingByRoom(ctx context.Context, roomID string, date time.Time, excludeID string) ([]models.ClassSession, error) {
	return r.listBlocking(ctx, "room_id", roomID, date, excludeID)
}

func (r *ClassSessionRepository) listBlocking(ctx context.Context, column, resourceID string, date time.Time, excludeID string) ([]models.ClassSession, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE %s = $1 AND session_date = $2 AND status IN ('scheduled', 'in_progress')", sessionColumns, column)
	args := []interface{}{resourceID, date.Format("2006-01-02")}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions by %s: %w", column, err)
	}
	return sessions, nil
}

// ListWeekly returns scheduled sessions in the window joined with class, teacher and room names.
// UserID matches either the teaching user or an actively enrolled student.
func (r *ClassSessionRepository) ListWeekly(ctx context.Context, filter models.WeeklyFilter) ([]models.WeeklySession, error) {
	query := `SELECT cs.id, cs.class_id, c.name AS class_name, cs.teacher_id, TRIM(u.first_name || ' ' || u.last_name) AS teacher_name, cs.room_id, r.name AS room_name, cs.session_date, to_char(cs.start_time, 'HH24:MI') AS start_time, to_char(cs.end_time, 'HH24:MI') AS end_time, cs.slots, cs.topic, cs.status FROM class_sessions cs JOIN classes c ON c.id = cs.class_id JOIN users u ON u.id = cs.teacher_id JOIN rooms r ON r.id = cs.room_id WHERE cs.status = 'scheduled' AND cs.session_date BETWEEN $1 AND $2`
	args := []interface{}{filter.StartDate.Format("2006-01-02"), filter.EndDate.Format("2006-01-02")}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		query += fmt.Sprintf(" AND cs.class_id = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND (cs.teacher_id = $%d OR EXISTS (SELECT 1 FROM enrollments e WHERE e.class_id = cs.class_id AND e.student_id = $%d AND e.status = 'active'))", len(args), len(args))
	}
	query += " ORDER BY cs.session_date ASC, cs.start_time ASC, c.name ASC"

	var sessions []models.WeeklySession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list weekly sessions: %w", err)
	}
	return sessions, nil
}
