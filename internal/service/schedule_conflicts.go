package service

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
)

var conflictReasons = map[dto.ConflictType]string{
	dto.ConflictTeacherBusy:            "Teacher already has a session in these slots",
	dto.ConflictRoomUnavailable:        "No available room with enough capacity is free in these slots",
	dto.ConflictMaxSlotViolation:       "Fixed schedule rule exceeds the maximum slots per session",
	dto.ConflictRequestClassConflict:   "Class was marked unavailable for these slots by the request",
	dto.ConflictRequestTeacherConflict: "Teacher was marked unavailable for these slots by the request",
	dto.ConflictNoSlots:                "No free placement was found in the search window",
}

func newConflictInfo(class models.Class, kind dto.ConflictType, date time.Time, slots []int) *dto.ConflictInfo {
	return &dto.ConflictInfo{
		ClassID:      class.ID,
		ClassName:    class.Name,
		ConflictType: kind,
		SessionDate:  date.Format(dateLayout),
		Slots:        append([]int(nil), slots...),
		Reason:       conflictReasons[kind],
		Suggestions:  []dto.PlacementSuggestion{},
	}
}

type blockingSessionLister interface {
	ListBlockingByTeacher(ctx context.Context, teacherID string, date time.Time, excludeID string) ([]models.ClassSession, error)
	ListBlockingByRoom(ctx context.Context, roomID string, date time.Time, excludeID string) ([]models.ClassSession, error)
}

// ScheduleConflictChecker detects double-booking of teachers and rooms against persisted
// sessions and the proposals accumulated by the current generation run.
type ScheduleConflictChecker struct {
	sessions blockingSessionLister
}

// NewScheduleConflictChecker constructs a conflict checker.
func NewScheduleConflictChecker(sessions blockingSessionLister) *ScheduleConflictChecker {
	return &ScheduleConflictChecker{sessions: sessions}
}

// TeacherConflict reports whether the teacher is busy on date in any of slots.
func (c *ScheduleConflictChecker) TeacherConflict(ctx context.Context, teacherID string, date time.Time, slots []int, excludeSessionID string, proposed []dto.SessionProposal) (bool, error) {
	persisted, err := c.sessions.ListBlockingByTeacher(ctx, teacherID, date, excludeSessionID)
	if err != nil {
		return false, err
	}
	if overlapsPersisted(persisted, slots, excludeSessionID) {
		return true, nil
	}
	day := date.Format(dateLayout)
	for _, p := range proposed {
		if p.TeacherID == teacherID && p.SessionDate == day && slotsIntersect(p.Slots, slots) {
			return true, nil
		}
	}
	return false, nil
}

// RoomConflict reports whether the room is occupied on date in any of slots.
func (c *ScheduleConflictChecker) RoomConflict(ctx context.Context, roomID string, date time.Time, slots []int, excludeSessionID string, proposed []dto.SessionProposal) (bool, error) {
	persisted, err := c.sessions.ListBlockingByRoom(ctx, roomID, date, excludeSessionID)
	if err != nil {
		return false, err
	}
	if overlapsPersisted(persisted, slots, excludeSessionID) {
		return true, nil
	}
	day := date.Format(dateLayout)
	for _, p := range proposed {
		if p.RoomID == roomID && p.SessionDate == day && slotsIntersect(p.Slots, slots) {
			return true, nil
		}
	}
	return false, nil
}

// RequestConflict checks a caller-supplied blackout map for the entity on date.
func (c *ScheduleConflictChecker) RequestConflict(entityID string, date time.Time, slots []int, conflicts dto.ConflictMap) bool {
	if len(conflicts) == 0 || entityID == "" {
		return false
	}
	byDate, ok := conflicts[entityID]
	if !ok {
		return false
	}
	return slotsIntersect(byDate[date.Format(dateLayout)], slots)
}

func overlapsPersisted(sessions []models.ClassSession, slots []int, excludeSessionID string) bool {
	for _, s := range sessions {
		if s.ID == excludeSessionID && excludeSessionID != "" {
			continue
		}
		if !s.Status.Blocking() {
			continue
		}
		if s.Slots.Overlaps(slots) {
			return true
		}
	}
	return false
}

type availableRoomLister interface {
	ListAvailable(ctx context.Context, minCapacity int) ([]models.Room, error)
}

// RoomAllocator picks the smallest free room that fits a class.
type RoomAllocator struct {
	rooms     availableRoomLister
	conflicts *ScheduleConflictChecker
}

// NewRoomAllocator constructs a room allocator.
func NewRoomAllocator(rooms availableRoomLister, conflicts *ScheduleConflictChecker) *RoomAllocator {
	return &RoomAllocator{rooms: rooms, conflicts: conflicts}
}

// FindAvailableRoom returns the smallest-capacity available room with at least minCapacity seats
// that is free on date in slots. It returns nil without error when every candidate is taken.
func (a *RoomAllocator) FindAvailableRoom(ctx context.Context, date time.Time, slots []int, minCapacity int, proposed []dto.SessionProposal) (*models.Room, error) {
	if minCapacity < 1 {
		minCapacity = 1
	}
	rooms, err := a.rooms.ListAvailable(ctx, minCapacity)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity < rooms[j].Capacity
		}
		return rooms[i].Name < rooms[j].Name
	})
	for i := range rooms {
		room := rooms[i]
		if room.Capacity < minCapacity || room.Status != models.RoomStatusAvailable || room.DeletedAt != nil {
			continue
		}
		busy, err := a.conflicts.RoomConflict(ctx, room.ID, date, slots, "", proposed)
		if err != nil {
			return nil, err
		}
		if !busy {
			return &room, nil
		}
	}
	return nil, nil
}
