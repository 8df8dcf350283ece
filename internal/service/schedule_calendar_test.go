package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	"github.com/noah-isme/lingua-scheduler-api/pkg/config"
)

func TestCandidatesEnumeration(t *testing.T) {
	catalog := newTestCatalog(t)

	candidates := catalog.Candidates()
	require.Len(t, candidates, 105)

	assert.Equal(t, models.ScheduleRule{Day: "monday", Slots: []int{1}}, candidates[0])
	assert.Equal(t, models.ScheduleRule{Day: "monday", Slots: []int{1, 2}}, candidates[6])
	assert.Equal(t, models.ScheduleRule{Day: "monday", Slots: []int{4, 5, 6}}, candidates[14])
	assert.Equal(t, models.ScheduleRule{Day: "tuesday", Slots: []int{1}}, candidates[15])
	assert.Equal(t, "sunday", candidates[104].Day)

	candidates[0].Slots[0] = 99
	assert.Equal(t, []int{1}, catalog.Candidates()[0].Slots)
}

func TestSlotsToRange(t *testing.T) {
	catalog := newTestCatalog(t)

	start, end, err := catalog.SlotsToRange([]int{3, 2})
	require.NoError(t, err)
	assert.Equal(t, "09:45", start)
	assert.Equal(t, "14:30", end)

	start, end, err = catalog.SlotsToRange([]int{1})
	require.NoError(t, err)
	assert.Equal(t, "08:00", start)
	assert.Equal(t, "09:30", end)

	_, _, err = catalog.SlotsToRange([]int{9})
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, _, err = catalog.SlotsToRange(nil)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, _, err = catalog.SlotsToRange([]int{1, 7})
	assert.Error(t, err)
}

func TestValidateBlock(t *testing.T) {
	catalog := newTestCatalog(t)

	assert.NoError(t, catalog.ValidateBlock([]int{2, 3}, 3))
	assert.Error(t, catalog.ValidateBlock(nil, 3))
	assert.Error(t, catalog.ValidateBlock([]int{1, 2, 3, 4}, 3))
	assert.Error(t, catalog.ValidateBlock([]int{1, 3}, 3))
	assert.Error(t, catalog.ValidateBlock([]int{2, 2}, 3))
	assert.Error(t, catalog.ValidateBlock([]int{0}, 3))
	assert.NoError(t, catalog.ValidateBlock([]int{1, 2, 3, 4}, 0))
}

func TestBlocksOfLength(t *testing.T) {
	catalog := newTestCatalog(t)

	assert.Len(t, catalog.BlocksOfLength(1), 6)
	assert.Equal(t, [][]int{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5, 6}}, catalog.BlocksOfLength(3))
	assert.Empty(t, catalog.BlocksOfLength(7))
	assert.Empty(t, catalog.BlocksOfLength(0))
}

func TestCatalogMorning(t *testing.T) {
	catalog := newTestCatalog(t)

	assert.True(t, catalog.IsMorning([]int{1, 2}))
	assert.False(t, catalog.IsMorning([]int{2, 3}))
	assert.False(t, catalog.IsMorning(nil))
	assert.Equal(t, 6, catalog.MaxSlot())
}

func TestNewTimeSlotCatalogRejectsBadInput(t *testing.T) {
	_, err := NewTimeSlotCatalog(nil, nil)
	assert.Error(t, err)

	_, err = NewTimeSlotCatalog([]models.TimeSlot{{Number: 1, Start: "09:00", End: "08:00"}}, nil)
	assert.Error(t, err)

	_, err = NewTimeSlotCatalog([]models.TimeSlot{{Number: 1, Start: "08:00", End: "09:00"}, {Number: 1, Start: "10:00", End: "11:00"}}, nil)
	assert.Error(t, err)

	_, err = NewTimeSlotCatalog([]models.TimeSlot{{Number: 1, Start: "8am", End: "09:00"}}, nil)
	assert.Error(t, err)

	_, err = NewTimeSlotCatalog([]models.TimeSlot{{Number: 1, Start: "08:00", End: "09:00"}}, []int{2})
	assert.Error(t, err)
}

func TestNewTimeSlotCatalogFromConfig(t *testing.T) {
	slots, err := config.ParseTimeSlots("08:00-09:00, 09:00-10:00")
	require.NoError(t, err)

	catalog, err := NewTimeSlotCatalogFromConfig(config.SchedulerConfig{TimeSlots: slots, MorningSlots: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.MaxSlot())
	assert.Len(t, catalog.Candidates(), 7*3)
}

func TestDayName(t *testing.T) {
	assert.Equal(t, "monday", DayName(testMonday))
	assert.Equal(t, "sunday", DayName(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "saturday", DayName(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)))
}
