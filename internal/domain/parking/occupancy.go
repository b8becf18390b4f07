package parking

import (
	"fmt"

	"gopkg.in/guregu/null.v4"
)

var (
	defaultGridRows    = []string{"A", "B", "C", "D", "E"}
	defaultSlotsPerRow = 5
)

// ReplayOccupancy folds events (ascending by created_at) into the set of
// slots currently held, keyed by slot name.
func ReplayOccupancy(events []Event) (map[string]SlotState, ReplayStats) {
	var stats ReplayStats
	bySlot := make(map[string]SlotState)
	byRFID := make(map[string]string)

	// release frees the card's last slot whoever holds it now.
	release := func(rfid string) {
		slot, ok := byRFID[rfid]
		if !ok || !IsRealSlot(slot) {
			return
		}
		delete(bySlot, slot)
	}

	for _, ev := range events {
		switch ev.EventType.Normalize() {
		case EventIn:
			release(ev.RFIDID)
			slot := ev.Slot()
			if IsRealSlot(slot) {
				bySlot[slot] = SlotState{
					Occupied:     true,
					RFIDID:       null.StringFrom(ev.RFIDID),
					LicensePlate: null.StringFrom(ev.Plate()),
					TimeIn:       null.TimeFrom(ev.CreatedAt),
				}
			}
			byRFID[ev.RFIDID] = slot
		case EventOut:
			if _, ok := byRFID[ev.RFIDID]; !ok {
				stats.OrphanOuts++
				continue
			}
			release(ev.RFIDID)
			delete(byRFID, ev.RFIDID)
		default:
			stats.UnknownTypes++
		}
	}
	return bySlot, stats
}

// BuildSlotStatus reports every name in slotNames exactly once. Held slots
// that are not in slotNames are left out.
func BuildSlotStatus(held map[string]SlotState, slotNames []string, degraded bool) SlotStatus {
	status := SlotStatus{
		Slots:    make(map[string]SlotState, len(slotNames)),
		Degraded: degraded,
	}
	for _, name := range slotNames {
		if st, ok := held[name]; ok {
			status.Slots[name] = st
			continue
		}
		status.Slots[name] = SlotState{}
	}
	for _, st := range status.Slots {
		if st.Occupied {
			status.OccupiedSlots++
		}
	}
	status.TotalSlots = len(status.Slots)
	status.AvailableSlots = status.TotalSlots - status.OccupiedSlots
	return status
}

// DefaultSlotGrid returns A1..E5. Only used when the slot registry cannot be read.
func DefaultSlotGrid() []string {
	names := make([]string, 0, len(defaultGridRows)*defaultSlotsPerRow)
	for _, row := range defaultGridRows {
		for n := 1; n <= defaultSlotsPerRow; n++ {
			names = append(names, fmt.Sprintf("%s%d", row, n))
		}
	}
	return names
}
