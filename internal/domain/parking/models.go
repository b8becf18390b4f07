package parking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

// NotAvailable is stored in place of a missing plate or slot. It never names a real slot.
const NotAvailable = "N/A"

type EventType string

const (
	EventIn          EventType = "IN"
	EventOut         EventType = "OUT"
	EventUnspecified EventType = ""
)

// Normalize maps an unspecified type to IN. Older records carry no type at all.
func (t EventType) Normalize() EventType {
	if t == EventUnspecified {
		return EventIn
	}
	return t
}

func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EventIn, EventOut, EventUnspecified:
		return t, true
	default:
		return t, false
	}
}

type Event struct {
	ID           uuid.UUID              `json:"id"`
	RFIDID       string                 `json:"rfid_id"`
	EventType    EventType              `json:"event_type,omitempty"`
	ImagePath    string                 `json:"image_path"`
	LicensePlate null.String            `json:"license_plate"`
	ParkingSlot  null.String            `json:"parking_slot"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Plate returns the recorded plate or NotAvailable.
func (e Event) Plate() string {
	if p := e.LicensePlate.ValueOrZero(); p != "" {
		return p
	}
	return NotAvailable
}

// Slot returns the recorded slot name or NotAvailable.
func (e Event) Slot() string {
	if s := e.ParkingSlot.ValueOrZero(); s != "" {
		return s
	}
	return NotAvailable
}

// IsRealSlot reports whether name refers to a physical slot.
func IsRealSlot(name string) bool {
	return name != "" && name != NotAvailable
}

type Slot struct {
	ID         uuid.UUID `json:"id"`
	SlotName   string    `json:"slot_name"`
	RowLetter  string    `json:"row_letter"`
	SlotNumber int       `json:"slot_number"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SlotPatch carries the fields of a partial slot update. Nil fields are left untouched.
type SlotPatch struct {
	SlotName   *string `json:"slot_name"`
	RowLetter  *string `json:"row_letter"`
	SlotNumber *int    `json:"slot_number"`
	IsActive   *bool   `json:"is_active"`
}

func (p SlotPatch) Empty() bool {
	return p.SlotName == nil && p.RowLetter == nil && p.SlotNumber == nil && p.IsActive == nil
}

type Session struct {
	ID           uuid.UUID `json:"id"`
	CardID       string    `json:"card_id"`
	LicensePlate string    `json:"license_plate"`
	TimeIn       time.Time `json:"time_in"`
	TimeOut      null.Time `json:"time_out"`
	ParkingSlot  string    `json:"parking_slot"`
	ImagePath    string    `json:"image_path"`
}

func (s Session) Open() bool {
	return !s.TimeOut.Valid
}

type SlotState struct {
	Occupied     bool        `json:"occupied"`
	RFIDID       null.String `json:"rfid_id"`
	LicensePlate null.String `json:"license_plate"`
	TimeIn       null.Time   `json:"time_in"`
}

type SlotStatus struct {
	Slots          map[string]SlotState `json:"slots"`
	TotalSlots     int                  `json:"total_slots"`
	OccupiedSlots  int                  `json:"occupied_slots"`
	AvailableSlots int                  `json:"available_slots"`
	Degraded       bool                 `json:"degraded"`
}

// ReplayStats counts events that did not affect the replayed state.
type ReplayStats struct {
	OrphanOuts   int
	UnknownTypes int
}
