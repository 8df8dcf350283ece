package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
)

// RuleSelector decides which weekly rule a class uses on a date.
// A nil rule with a nil conflict means the class has nothing to attempt that day.
type RuleSelector interface {
	SelectRule(class models.Class, date time.Time, maxSlots int, preferMorning bool) (*models.ScheduleRule, *dto.ConflictInfo)
}

// RandomRuleSelector follows fixed schedules deterministically and picks generated
// candidates at random, favouring morning blocks when asked.
type RandomRuleSelector struct {
	catalog *TimeSlotCatalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRuleSelector constructs a selector. A zero seed uses the current time.
func NewRandomRuleSelector(catalog *TimeSlotCatalog, seed int64) *RandomRuleSelector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomRuleSelector{catalog: catalog, rng: rand.New(rand.NewSource(seed))}
}

// SelectRule implements RuleSelector.
func (s *RandomRuleSelector) SelectRule(class models.Class, date time.Time, maxSlots int, preferMorning bool) (*models.ScheduleRule, *dto.ConflictInfo) {
	day := DayName(date)
	rules, fixed := s.fixedRules(class)
	if !fixed {
		rules = s.catalog.Candidates()
	}

	var matching []models.ScheduleRule
	for _, rule := range rules {
		if normalizeDayName(rule.Day) == day {
			matching = append(matching, rule)
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}

	var capped []models.ScheduleRule
	for _, rule := range matching {
		if len(rule.Slots) <= maxSlots {
			capped = append(capped, rule)
		}
	}
	if len(capped) == 0 {
		if fixed {
			return nil, newConflictInfo(class, dto.ConflictMaxSlotViolation, date, matching[0].Slots)
		}
		return nil, nil
	}

	if fixed {
		rule := capped[0]
		return &rule, nil
	}

	pool := capped
	if preferMorning {
		var morning []models.ScheduleRule
		for _, rule := range capped {
			if s.catalog.IsMorning(rule.Slots) {
				morning = append(morning, rule)
			}
		}
		if len(morning) > 0 {
			pool = morning
		}
	}

	s.mu.Lock()
	rule := pool[s.rng.Intn(len(pool))]
	s.mu.Unlock()
	return &rule, nil
}

// fixedRules returns the class' fixed schedule when every entry names catalog slots.
func (s *RandomRuleSelector) fixedRules(class models.Class) ([]models.ScheduleRule, bool) {
	rules, ok := class.FixedRules()
	if !ok {
		return nil, false
	}
	for _, rule := range rules {
		for _, n := range rule.Slots {
			if !s.catalog.Has(n) {
				return nil, false
			}
		}
	}
	return rules, true
}
