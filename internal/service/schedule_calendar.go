package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	"github.com/noah-isme/lingua-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/lingua-scheduler-api/pkg/errors"
)

// maxCandidateBlock is the longest contiguous block offered by generated candidates.
const maxCandidateBlock = 3

const dateLayout = "2006-01-02"

var weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// ErrInvalidSlot is returned when a slot set is empty or references unknown slot numbers.
var ErrInvalidSlot = appErrors.Clone(appErrors.ErrValidation, "invalid slot selection")

// TimeSlotCatalog is the immutable table of lesson periods for one deployment.
type TimeSlotCatalog struct {
	slots   map[int]models.TimeSlot
	ordered []models.TimeSlot
	morning map[int]struct{}

	candidatesOnce sync.Once
	candidates     []models.ScheduleRule
}

// NewTimeSlotCatalog validates and indexes the configured slots.
func NewTimeSlotCatalog(slots []models.TimeSlot, morning []int) (*TimeSlotCatalog, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("time slot catalog requires at least one slot")
	}
	catalog := &TimeSlotCatalog{
		slots:   make(map[int]models.TimeSlot, len(slots)),
		morning: make(map[int]struct{}, len(morning)),
	}
	for _, slot := range slots {
		if slot.Number <= 0 {
			return nil, fmt.Errorf("time slot number must be positive, got %d", slot.Number)
		}
		if _, dup := catalog.slots[slot.Number]; dup {
			return nil, fmt.Errorf("duplicate time slot number %d", slot.Number)
		}
		start, err := time.Parse("15:04", slot.Start)
		if err != nil {
			return nil, fmt.Errorf("time slot %d: invalid start %q", slot.Number, slot.Start)
		}
		end, err := time.Parse("15:04", slot.End)
		if err != nil {
			return nil, fmt.Errorf("time slot %d: invalid end %q", slot.Number, slot.End)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("time slot %d ends before it starts", slot.Number)
		}
		catalog.slots[slot.Number] = slot
		catalog.ordered = append(catalog.ordered, slot)
	}
	sort.Slice(catalog.ordered, func(i, j int) bool { return catalog.ordered[i].Number < catalog.ordered[j].Number })
	for _, n := range morning {
		if _, ok := catalog.slots[n]; !ok {
			return nil, fmt.Errorf("morning slot %d is not in the catalog", n)
		}
		catalog.morning[n] = struct{}{}
	}
	return catalog, nil
}

// NewTimeSlotCatalogFromConfig builds the catalog from scheduler configuration.
func NewTimeSlotCatalogFromConfig(cfg config.SchedulerConfig) (*TimeSlotCatalog, error) {
	slots := make([]models.TimeSlot, 0, len(cfg.TimeSlots))
	for _, s := range cfg.TimeSlots {
		slots = append(slots, models.TimeSlot{Number: s.Number, Start: s.Start, End: s.End})
	}
	return NewTimeSlotCatalog(slots, cfg.MorningSlots)
}

// Slots returns the catalog in slot-number order.
func (c *TimeSlotCatalog) Slots() []models.TimeSlot {
	out := make([]models.TimeSlot, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// MaxSlot is the highest slot number in the catalog.
func (c *TimeSlotCatalog) MaxSlot() int {
	return c.ordered[len(c.ordered)-1].Number
}

// Has reports whether n is a catalog slot number.
func (c *TimeSlotCatalog) Has(n int) bool {
	_, ok := c.slots[n]
	return ok
}

// IsMorning reports whether every slot in the set belongs to the morning set.
func (c *TimeSlotCatalog) IsMorning(slots []int) bool {
	if len(slots) == 0 {
		return false
	}
	for _, n := range slots {
		if _, ok := c.morning[n]; !ok {
			return false
		}
	}
	return true
}

// SlotsToRange converts a slot set into the wall-clock range from the first slot's start to the last slot's end.
func (c *TimeSlotCatalog) SlotsToRange(slots []int) (string, string, error) {
	if len(slots) == 0 {
		return "", "", ErrInvalidSlot
	}
	sorted := sortedSlots(slots)
	first, ok := c.slots[sorted[0]]
	if !ok {
		return "", "", appErrors.Clone(ErrInvalidSlot, fmt.Sprintf("slot %d is not in the catalog", sorted[0]))
	}
	last, ok := c.slots[sorted[len(sorted)-1]]
	if !ok {
		return "", "", appErrors.Clone(ErrInvalidSlot, fmt.Sprintf("slot %d is not in the catalog", sorted[len(sorted)-1]))
	}
	for _, n := range sorted {
		if !c.Has(n) {
			return "", "", appErrors.Clone(ErrInvalidSlot, fmt.Sprintf("slot %d is not in the catalog", n))
		}
	}
	return first.Start, last.End, nil
}

// ValidateBlock checks that slots are unique, catalog members, contiguous and within maxSlots.
func (c *TimeSlotCatalog) ValidateBlock(slots []int, maxSlots int) error {
	if len(slots) == 0 {
		return appErrors.Clone(ErrInvalidSlot, "at least one slot is required")
	}
	if maxSlots > 0 && len(slots) > maxSlots {
		return appErrors.Clone(ErrInvalidSlot, fmt.Sprintf("a session may span at most %d slots", maxSlots))
	}
	sorted := sortedSlots(slots)
	for i, n := range sorted {
		if !c.Has(n) {
			return appErrors.Clone(ErrInvalidSlot, fmt.Sprintf("slot %d is not in the catalog", n))
		}
		if i == 0 {
			continue
		}
		if n == sorted[i-1] {
			return appErrors.Clone(ErrInvalidSlot, fmt.Sprintf("slot %d is repeated", n))
		}
		if n != sorted[i-1]+1 {
			return appErrors.Clone(ErrInvalidSlot, "slots must be contiguous")
		}
	}
	return nil
}

// Candidates lists every {day, contiguous block} of length 1..3, day-major then length then start slot.
// The list is computed once; callers receive a copy.
func (c *TimeSlotCatalog) Candidates() []models.ScheduleRule {
	c.candidatesOnce.Do(func() {
		numbers := make([]int, len(c.ordered))
		for i, s := range c.ordered {
			numbers[i] = s.Number
		}
		for _, day := range weekdayNames {
			for length := 1; length <= maxCandidateBlock; length++ {
				for start := 0; start+length <= len(numbers); start++ {
					block := numbers[start : start+length]
					if !contiguous(block) {
						continue
					}
					c.candidates = append(c.candidates, models.ScheduleRule{Day: day, Slots: append([]int(nil), block...)})
				}
			}
		}
	})
	out := make([]models.ScheduleRule, len(c.candidates))
	for i, rule := range c.candidates {
		out[i] = models.ScheduleRule{Day: rule.Day, Slots: append([]int(nil), rule.Slots...)}
	}
	return out
}

// BlocksOfLength lists the contiguous catalog blocks of the given length in start order.
func (c *TimeSlotCatalog) BlocksOfLength(length int) [][]int {
	var blocks [][]int
	if length <= 0 {
		return blocks
	}
	for start := 0; start+length <= len(c.ordered); start++ {
		block := make([]int, length)
		for i := range block {
			block[i] = c.ordered[start+i].Number
		}
		if contiguous(block) {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// DayName returns the lowercase English weekday of date.
func DayName(date time.Time) string {
	// time.Weekday starts at Sunday.
	return weekdayNames[(int(date.Weekday())+6)%7]
}

func normalizeDayName(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}

func sortedSlots(slots []int) []int {
	out := append([]int(nil), slots...)
	sort.Ints(out)
	return out
}

func contiguous(block []int) bool {
	for i := 1; i < len(block); i++ {
		if block[i] != block[i-1]+1 {
			return false
		}
	}
	return true
}

func slotsIntersect(a, b []int) bool {
	return models.SlotSet(a).Overlaps(b)
}
