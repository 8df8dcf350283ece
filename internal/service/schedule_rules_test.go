package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
)

func TestSelectRuleFollowsFixedSchedule(t *testing.T) {
	selector := NewRandomRuleSelector(newTestCatalog(t), 7)
	class := testClass("class-1", "English A1", "teacher-1", 2, `[{"day":"MONDAY","slots":[3,4,5]},{"day":"monday","slots":[2,3]}]`)

	rule, conflict := selector.SelectRule(class, testMonday, 2, false)
	assert.Nil(t, conflict)
	require.NotNil(t, rule)
	assert.Equal(t, []int{2, 3}, rule.Slots)

	rule, conflict = selector.SelectRule(class, testMonday.AddDate(0, 0, 1), 2, false)
	assert.Nil(t, rule)
	assert.Nil(t, conflict)
}

func TestSelectRuleReportsSlotViolationForFixedSchedule(t *testing.T) {
	selector := NewRandomRuleSelector(newTestCatalog(t), 7)
	class := testClass("class-1", "English A1", "teacher-1", 1, `[{"day":"monday","slots":[1,2,3]}]`)

	rule, conflict := selector.SelectRule(class, testMonday, 2, false)
	assert.Nil(t, rule)
	require.NotNil(t, conflict)
	assert.Equal(t, dto.ConflictMaxSlotViolation, conflict.ConflictType)
	assert.Equal(t, []int{1, 2, 3}, conflict.Slots)
	assert.Equal(t, "2024-01-01", conflict.SessionDate)
}

func TestSelectRuleFallsBackToCandidatesForUnknownSlots(t *testing.T) {
	selector := NewRandomRuleSelector(newTestCatalog(t), 7)
	class := testClass("class-1", "English A1", "teacher-1", 1, `[{"day":"monday","slots":[9]}]`)

	rule, conflict := selector.SelectRule(class, testMonday.AddDate(0, 0, 2), 3, false)
	assert.Nil(t, conflict)
	require.NotNil(t, rule)
	assert.Equal(t, "wednesday", rule.Day)
}

func TestSelectRulePrefersMorningCandidates(t *testing.T) {
	catalog := newTestCatalog(t)
	selector := NewRandomRuleSelector(catalog, 11)
	class := testClass("class-1", "English A1", "teacher-1", 1, "")

	for i := 0; i < 50; i++ {
		rule, conflict := selector.SelectRule(class, testMonday, 3, true)
		require.Nil(t, conflict)
		require.NotNil(t, rule)
		assert.True(t, catalog.IsMorning(rule.Slots), "slots %v", rule.Slots)
	}
}

func TestSelectRuleCapsGeneratedCandidates(t *testing.T) {
	selector := NewRandomRuleSelector(newTestCatalog(t), 3)
	class := testClass("class-1", "English A1", "teacher-1", 1, "{}")

	for i := 0; i < 50; i++ {
		rule, _ := selector.SelectRule(class, testMonday, 1, false)
		require.NotNil(t, rule)
		assert.Len(t, rule.Slots, 1)
		assert.Equal(t, "monday", rule.Day)
	}
}
