package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	"github.com/noah-isme/lingua-scheduler-api/pkg/config"
)

type notificationStoreFake struct {
	mu    sync.Mutex
	items []models.Notification
	// failures counts how many inserts fail for a user before one succeeds.
	failures map[string]int
}

func (f *notificationStoreFake) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[n.UserID] > 0 {
		f.failures[n.UserID]--
		return errors.New("insert failed")
	}
	f.items = append(f.items, *n)
	return nil
}

func (f *notificationStoreFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *notificationStoreFake) recipients() map[string]models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.Notification, len(f.items))
	for _, n := range f.items {
		out[n.UserID] = n
	}
	return out
}

type enrollmentFake struct {
	students map[string][]string
	err      error
}

func (f enrollmentFake) ListActiveStudentIDs(_ context.Context, classID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.students[classID], nil
}

func startNotificationService(t *testing.T, store *notificationStoreFake, enrollments enrollmentFake) *NotificationService {
	t.Helper()
	svc := NewNotificationService(store, enrollments, NewMetricsService(), nil, config.NotificationConfig{
		Workers:    2,
		BufferSize: 32,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func TestNotifySessionsFansOutToTeacherAndStudents(t *testing.T) {
	store := &notificationStoreFake{}
	svc := startNotificationService(t, store, enrollmentFake{students: map[string][]string{"class-1": {"student-1", "student-2"}}})

	session := scheduled("s1", "teacher-1", "room-fit", testMonday, 1)
	svc.NotifySessions(context.Background(), []models.ClassSession{session}, models.NotificationSessionScheduled)

	require.Eventually(t, func() bool { return len(store.recipients()) == 3 }, time.Second, 10*time.Millisecond)
	got := store.recipients()
	for _, user := range []string{"teacher-1", "student-1", "student-2"} {
		n, ok := got[user]
		require.True(t, ok, user)
		assert.Equal(t, models.NotificationSessionScheduled, n.Type)
		assert.Equal(t, "New class session scheduled", n.Title)
		require.NotNil(t, n.ActionURL)
		assert.Equal(t, "/sessions/s1", *n.ActionURL)
	}
}

func TestNotifySessionsStillReachesTeacherWhenEnrollmentLookupFails(t *testing.T) {
	store := &notificationStoreFake{}
	svc := startNotificationService(t, store, enrollmentFake{err: errors.New("db down")})

	session := scheduled("s1", "teacher-1", "room-fit", testMonday, 1)
	svc.NotifySessions(context.Background(), []models.ClassSession{session}, models.NotificationSessionCancelled)

	require.Eventually(t, func() bool { return len(store.recipients()) == 1 }, time.Second, 10*time.Millisecond)
	n := store.recipients()["teacher-1"]
	assert.Equal(t, models.NotificationPriorityHigh, n.Priority)
	assert.Equal(t, "Class session cancelled", n.Title)
}

func TestNotifySessionsRetriesOnlyFailedRecipients(t *testing.T) {
	store := &notificationStoreFake{failures: map[string]int{"student-2": 1}}
	svc := startNotificationService(t, store, enrollmentFake{students: map[string][]string{"class-1": {"student-1", "student-2"}}})

	session := scheduled("s1", "teacher-1", "room-fit", testMonday, 1)
	svc.NotifySessions(context.Background(), []models.ClassSession{session}, models.NotificationSessionScheduled)

	require.Eventually(t, func() bool { return len(store.recipients()) == 3 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, store.count())
}

func TestNotifySessionsDeliversLargeApply(t *testing.T) {
	students := make([]string, 10)
	for i := range students {
		students[i] = fmt.Sprintf("student-%d", i)
	}
	store := &notificationStoreFake{}
	svc := NewNotificationService(store, enrollmentFake{students: map[string][]string{"class-1": students}}, NewMetricsService(), nil, config.NotificationConfig{
		Workers:    2,
		BufferSize: 256,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	sessions := make([]models.ClassSession, 800)
	for i := range sessions {
		sessions[i] = scheduled(fmt.Sprintf("s%d", i), "teacher-1", "room-1", testMonday, 1)
	}
	svc.NotifySessions(context.Background(), sessions, models.NotificationSessionScheduled)

	require.Eventually(t, func() bool { return store.count() == 800*11 }, 5*time.Second, 20*time.Millisecond)
}

func TestNotifyBeforeStartDoesNotBlock(t *testing.T) {
	store := &notificationStoreFake{}
	svc := NewNotificationService(store, enrollmentFake{}, nil, nil, config.NotificationConfig{})

	done := make(chan struct{})
	go func() {
		svc.NotifySessions(context.Background(), []models.ClassSession{scheduled("s1", "teacher-1", "room-1", testMonday, 1)}, models.NotificationSessionScheduled)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifySessions blocked")
	}
	assert.Empty(t, store.recipients())
}

func TestBuildSessionNotificationRescheduled(t *testing.T) {
	session := scheduled("s9", "teacher-1", "room-1", testMonday, 1)
	n := buildSessionNotification("student-1", sessionNotice{Session: session, Kind: models.NotificationSessionRescheduled})

	assert.Equal(t, "student-1", n.UserID)
	assert.Equal(t, "Class session rescheduled", n.Title)
	assert.Contains(t, n.Content, "2024-01-01 08:00-09:30")
	assert.Equal(t, models.NotificationPriorityHigh, n.Priority)
}
