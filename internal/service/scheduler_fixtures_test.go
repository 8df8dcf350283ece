package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
)

var testMonday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestCatalog(t *testing.T) *TimeSlotCatalog {
	t.Helper()
	catalog, err := NewTimeSlotCatalog([]models.TimeSlot{
		{Number: 1, Start: "08:00", End: "09:30"},
		{Number: 2, Start: "09:45", End: "11:15"},
		{Number: 3, Start: "13:00", End: "14:30"},
		{Number: 4, Start: "14:45", End: "16:15"},
		{Number: 5, Start: "17:30", End: "19:00"},
		{Number: 6, Start: "19:15", End: "20:45"},
	}, []int{1, 2})
	require.NoError(t, err)
	return catalog
}

func strPtr(v string) *string { return &v }

func testClass(id, name, teacherID string, perWeek int, fixed string) models.Class {
	class := models.Class{
		ID:              id,
		Name:            name,
		MaxStudents:     10,
		SessionsPerWeek: perWeek,
		Status:          models.ClassStatusActive,
	}
	if teacherID != "" {
		class.TeacherID = strPtr(teacherID)
	}
	if fixed != "" {
		class.FixedSchedule = types.JSONText(fixed)
	}
	return class
}

type classRepoFake struct {
	items map[string]models.Class
	err   error
}

func newClassRepoFake(classes ...models.Class) *classRepoFake {
	repo := &classRepoFake{items: make(map[string]models.Class)}
	for _, c := range classes {
		repo.items[c.ID] = c
	}
	return repo
}

func (f *classRepoFake) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (f *classRepoFake) ListActive(_ context.Context, ids []string) ([]models.Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Class
	for _, c := range f.items {
		if c.Status != models.ClassStatusActive {
			continue
		}
		if len(ids) > 0 && !wanted[c.ID] {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type userRepoFake struct {
	items map[string]models.User
}

func newUserRepoFake(ids ...string) *userRepoFake {
	repo := &userRepoFake{items: make(map[string]models.User)}
	for _, id := range ids {
		repo.items[id] = models.User{ID: id, FirstName: "Teacher", LastName: id, Role: models.RoleTeacher, Active: true}
	}
	return repo
}

func (f *userRepoFake) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

type roomRepoFake struct {
	rooms []models.Room
}

func newRoomRepoFake(rooms ...models.Room) *roomRepoFake {
	return &roomRepoFake{rooms: rooms}
}

func testRoom(id, name string, capacity int) models.Room {
	return models.Room{ID: id, Name: name, Capacity: capacity, Status: models.RoomStatusAvailable}
}

func (f *roomRepoFake) FindByID(_ context.Context, id string) (*models.Room, error) {
	for _, r := range f.rooms {
		if r.ID == id {
			room := r
			return &room, nil
		}
	}
	return nil, sql.ErrNoRows
}

// ListAvailable filters like the SQL query but keeps insertion order so the allocator's sort is exercised.
func (f *roomRepoFake) ListAvailable(_ context.Context, minCapacity int) ([]models.Room, error) {
	var out []models.Room
	for _, r := range f.rooms {
		if r.Status == models.RoomStatusAvailable && r.DeletedAt == nil && r.Capacity >= minCapacity {
			out = append(out, r)
		}
	}
	return out, nil
}

type sessionRepoFake struct {
	mu       sync.Mutex
	items    []models.ClassSession
	weekly   []models.WeeklySession
	bulkErr  error
	nextID   int
	lookups  int
	updated  []models.ClassSession
	statuses map[string]models.SessionStatus
}

func newSessionRepoFake(sessions ...models.ClassSession) *sessionRepoFake {
	return &sessionRepoFake{items: sessions, statuses: make(map[string]models.SessionStatus)}
}

func (f *sessionRepoFake) assignID(s *models.ClassSession) {
	if s.ID == "" {
		f.nextID++
		s.ID = fmt.Sprintf("session-%d", f.nextID)
	}
}

func (f *sessionRepoFake) FindByID(_ context.Context, id string) (*models.ClassSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.items {
		if s.ID == id {
			session := s
			return &session, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *sessionRepoFake) Create(_ context.Context, session *models.ClassSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignID(session)
	f.items = append(f.items, *session)
	return nil
}

func (f *sessionRepoFake) BulkCreateWithTx(_ context.Context, _ *sqlx.Tx, sessions []models.ClassSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for i := range sessions {
		f.assignID(&sessions[i])
		f.items = append(f.items, sessions[i])
	}
	return nil
}

func (f *sessionRepoFake) Update(_ context.Context, session *models.ClassSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == session.ID {
			f.items[i] = *session
		}
	}
	f.updated = append(f.updated, *session)
	return nil
}

func (f *sessionRepoFake) UpdateStatus(_ context.Context, id string, status models.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = status
		}
	}
	f.statuses[id] = status
	return nil
}

func (f *sessionRepoFake) ListWeekly(_ context.Context, _ models.WeeklyFilter) ([]models.WeeklySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.weekly, nil
}

// The fake returns every session on the date, blocking or not, so callers must filter statuses themselves.
func (f *sessionRepoFake) ListBlockingByTeacher(_ context.Context, teacherID string, date time.Time, excludeID string) ([]models.ClassSession, error) {
	return f.byResource(func(s models.ClassSession) bool { return s.TeacherID == teacherID }, date, excludeID), nil
}

func (f *sessionRepoFake) ListBlockingByRoom(_ context.Context, roomID string, date time.Time, excludeID string) ([]models.ClassSession, error) {
	return f.byResource(func(s models.ClassSession) bool { return s.RoomID == roomID }, date, excludeID), nil
}

func (f *sessionRepoFake) byResource(match func(models.ClassSession) bool, date time.Time, excludeID string) []models.ClassSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ClassSession
	for _, s := range f.items {
		if match(s) && s.SessionDate.Equal(date) && s.ID != excludeID {
			out = append(out, s)
		}
	}
	return out
}

type stubRuleSelector struct {
	slots []int
}

// SelectRule proposes the same block every day.
func (s stubRuleSelector) SelectRule(_ models.Class, date time.Time, _ int, _ bool) (*models.ScheduleRule, *dto.ConflictInfo) {
	return &models.ScheduleRule{Day: DayName(date), Slots: append([]int(nil), s.slots...)}, nil
}

type notifyCall struct {
	sessions []models.ClassSession
	kind     models.NotificationType
}

type notifierRecorder struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *notifierRecorder) NotifySessions(_ context.Context, sessions []models.ClassSession, kind models.NotificationType) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{sessions: sessions, kind: kind})
}

type invalidationRecorder struct {
	count int
}

func (i *invalidationRecorder) InvalidateWeekly(context.Context) {
	i.count++
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
