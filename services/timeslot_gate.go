package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
)

// SlotLeadTime is the minimum wall-clock gap between "now" and a selectable
// pickup slot.
const SlotLeadTime = time.Hour

// slotBusyThreshold: a slot is busy once this many non-terminal orders
// reference it.
const slotBusyThreshold = 2

// SlotAvailability annotates one timeslot with the two gating conditions.
// The filtering is advisory: nothing enforces slot capacity server-side, so
// two concurrent checkouts can still land on the same nominally free slot.
type SlotAvailability struct {
	models.TimeSlot
	Busy       bool `json:"busy"`
	TooSoon    bool `json:"too_soon"`
	Selectable bool `json:"selectable"`
}

// TimeslotGate decides which pickup slots are selectable for a vendor.
type TimeslotGate struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTimeslotGate(db *gorm.DB) *TimeslotGate {
	return &TimeslotGate{db: db, now: time.Now}
}

// SelectableSlots loads every timeslot and the vendor's non-terminal order
// density per slot, then classifies each slot.
func (g *TimeslotGate) SelectableSlots(vendorID uint) ([]SlotAvailability, error) {
	var slots []models.TimeSlot
	if err := g.db.Order("time_of_day asc").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to load timeslots: %w", err)
	}

	var rows []struct {
		TimeSlotID uint
		Count      int
	}
	if err := g.db.Model(&models.Order{}).
		Select("time_slot_id, COUNT(*) as count").
		Where("vendor_id = ? AND status IN ?", vendorID, models.NonTerminalStatuses).
		Group("time_slot_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count slot orders: %w", err)
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.TimeSlotID] = row.Count
	}

	return ClassifySlots(slots, counts, g.now()), nil
}

// ClassifySlots marks each slot busy (>=2 non-terminal orders) and too-soon
// (time-of-day less than SlotLeadTime after now, same-day semantics). A slot
// is selectable only if neither holds.
func ClassifySlots(slots []models.TimeSlot, counts map[uint]int, now time.Time) []SlotAvailability {
	cutoff := now.Add(SlotLeadTime)

	out := make([]SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		sa := SlotAvailability{TimeSlot: slot}
		sa.Busy = counts[slot.ID] >= slotBusyThreshold

		if t, err := slotTimeOn(now, slot.TimeOfDay); err == nil {
			sa.TooSoon = t.Before(cutoff)
		} else {
			// Unparseable reference data is never offered.
			sa.TooSoon = true
		}

		sa.Selectable = !sa.Busy && !sa.TooSoon
		out = append(out, sa)
	}
	return out
}

// slotTimeOn resolves an "HH:MM" time-of-day onto the date of ref.
func slotTimeOn(ref time.Time, timeOfDay string) (time.Time, error) {
	parts := strings.SplitN(timeOfDay, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed time of day: %q", timeOfDay)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("malformed hour: %q", timeOfDay)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("malformed minute: %q", timeOfDay)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location()), nil
}
