package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	"github.com/noah-isme/lingua-scheduler-api/pkg/config"
	"github.com/noah-isme/lingua-scheduler-api/pkg/jobs"
)

const jobTypeSessionFanout = "session_fanout"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type enrollmentReader interface {
	ListActiveStudentIDs(ctx context.Context, classID string) ([]string, error)
}

type sessionNotice struct {
	Session models.ClassSession
	Kind    models.NotificationType
}

// sessionFanout is the payload of one queued session. Recipients are resolved on the first
// attempt; a retry only covers the recipients whose delivery failed.
type sessionFanout struct {
	notice     sessionNotice
	resolved   bool
	recipients []string
}

// NotificationService delivers session notifications on a background queue.
// Delivery never blocks or fails the scheduling call that triggered it.
type NotificationService struct {
	repo        notificationWriter
	enrollments enrollmentReader
	queue       *jobs.Queue
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewNotificationService wires the delivery queue. Call Start before sending.
func NewNotificationService(repo notificationWriter, enrollments enrollmentReader, metrics *MetricsService, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, enrollments: enrollments, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the workers to exit. Buffered jobs are dropped.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifySessions queues one job per session for the teacher and every enrolled student.
// It returns immediately; queueing waits for buffer space in the background.
func (s *NotificationService) NotifySessions(ctx context.Context, sessions []models.ClassSession, kind models.NotificationType) {
	if len(sessions) == 0 {
		return
	}
	batch := make([]jobs.Job, 0, len(sessions))
	for _, session := range sessions {
		batch = append(batch, jobs.Job{
			ID:      uuid.NewString(),
			Type:    jobTypeSessionFanout,
			Payload: &sessionFanout{notice: sessionNotice{Session: session, Kind: kind}},
		})
	}
	go func() {
		for i, job := range batch {
			if err := s.queue.Enqueue(job); err != nil {
				s.metrics.RecordNotification("dropped")
				s.logger.Warn("notifications dropped", zap.Int("sessions", len(batch)-i), zap.Error(err))
				return
			}
		}
	}()
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	fanout, ok := job.Payload.(*sessionFanout)
	if !ok {
		s.logger.Error("unknown notification job payload", zap.String("job_type", job.Type))
		return nil
	}
	if !fanout.resolved {
		fanout.recipients = s.resolveRecipients(ctx, fanout.notice.Session)
		fanout.resolved = true
	}

	var failed []string
	var lastErr error
	for _, userID := range fanout.recipients {
		if err := s.send(ctx, buildSessionNotification(userID, fanout.notice)); err != nil {
			failed = append(failed, userID)
			lastErr = err
		}
	}
	fanout.recipients = failed
	if lastErr != nil {
		return fmt.Errorf("deliver session %s to %d recipients: %w", fanout.notice.Session.ID, len(failed), lastErr)
	}
	return nil
}

// resolveRecipients lists the teacher and enrolled students. A failed enrollment lookup still notifies the teacher.
func (s *NotificationService) resolveRecipients(ctx context.Context, session models.ClassSession) []string {
	students, err := s.enrollments.ListActiveStudentIDs(ctx, session.ClassID)
	if err != nil {
		s.logger.Warn("failed to resolve enrolled students", zap.String("class_id", session.ClassID), zap.Error(err))
	}
	recipients := make([]string, 0, len(students)+1)
	for _, userID := range append([]string{session.TeacherID}, students...) {
		if userID != "" {
			recipients = append(recipients, userID)
		}
	}
	return recipients
}

func (s *NotificationService) send(ctx context.Context, notification models.Notification) error {
	if err := s.repo.Create(ctx, &notification); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("delivered")
	return nil
}

func buildSessionNotification(userID string, notice sessionNotice) models.Notification {
	session := notice.Session
	when := fmt.Sprintf("%s %s-%s", session.SessionDate.Format(dateLayout), session.StartTime, session.EndTime)
	action := "/sessions/" + session.ID

	n := models.Notification{
		UserID:    userID,
		Type:      notice.Kind,
		Priority:  models.NotificationPriorityNormal,
		ActionURL: &action,
	}
	switch notice.Kind {
	case models.NotificationSessionCancelled:
		n.Title = "Class session cancelled"
		n.Content = fmt.Sprintf("The session on %s has been cancelled.", when)
		n.Priority = models.NotificationPriorityHigh
	case models.NotificationSessionRescheduled:
		n.Title = "Class session rescheduled"
		n.Content = fmt.Sprintf("The session now takes place on %s.", when)
		n.Priority = models.NotificationPriorityHigh
	default:
		n.Title = "New class session scheduled"
		n.Content = fmt.Sprintf("%s on %s.", session.Topic, when)
	}
	return n
}
