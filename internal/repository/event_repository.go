package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parkinghub/internal/domain/parking"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("record already exists")
	ErrNotCreated = errors.New("record was not created")
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

type ParkingEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq          int64     `gorm:"->"`
	RFIDID       string    `gorm:"column:rfid_id;not null"`
	EventType    *string
	ImagePath    *string
	LicensePlate *string
	ParkingSlot  *string
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

func (ParkingEvent) TableName() string {
	return "parking_events"
}

func (r *EventRepository) Insert(ctx context.Context, event *parking.Event) error {
	row := ParkingEvent{
		ID:        event.ID,
		RFIDID:    event.RFIDID,
		CreatedAt: event.CreatedAt,
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if event.EventType != parking.EventUnspecified {
		t := string(event.EventType)
		row.EventType = &t
	}
	if event.ImagePath != "" {
		row.ImagePath = &event.ImagePath
	}
	if event.LicensePlate.Valid {
		row.LicensePlate = &event.LicensePlate.String
	}
	if event.ParkingSlot.Valid {
		row.ParkingSlot = &event.ParkingSlot.String
	}
	if len(event.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(event.Metadata)
	}

	res := r.db.WithContext(ctx).Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotCreated
	}

	event.ID = row.ID
	event.CreatedAt = row.CreatedAt
	return nil
}

// ListAscending returns the latest limit events, optionally for one card,
// ordered oldest first. Ties on created_at keep insertion order.
func (r *EventRepository) ListAscending(ctx context.Context, rfidID string, limit int) ([]parking.Event, error) {
	query := r.db.WithContext(ctx).Model(&ParkingEvent{})
	if rfidID != "" {
		query = query.Where("rfid_id = ?", rfidID)
	}
	query = query.Order("created_at DESC").Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []ParkingEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	return oldestFirst(rows), nil
}

// oldestFirst converts rows fetched newest first into ascending order.
func oldestFirst(rows []ParkingEvent) []parking.Event {
	events := make([]parking.Event, len(rows))
	for i, row := range rows {
		events[len(rows)-1-i] = row.toDomain()
	}
	return events
}

// ListRecent returns events newest first.
func (r *EventRepository) ListRecent(ctx context.Context, rfidID string, limit, offset int) ([]parking.Event, error) {
	query := r.db.WithContext(ctx).Model(&ParkingEvent{})
	if rfidID != "" {
		query = query.Where("rfid_id = ?", rfidID)
	}
	query = query.Order("created_at DESC").Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []ParkingEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]parking.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toDomain())
	}
	return events, nil
}

func (row ParkingEvent) toDomain() parking.Event {
	e := parking.Event{
		ID:           row.ID,
		RFIDID:       row.RFIDID,
		LicensePlate: null.StringFromPtr(row.LicensePlate),
		ParkingSlot:  null.StringFromPtr(row.ParkingSlot),
		CreatedAt:    row.CreatedAt.UTC(),
	}
	if row.EventType != nil {
		e.EventType = parking.EventType(*row.EventType)
	}
	if row.ImagePath != nil {
		e.ImagePath = *row.ImagePath
	}
	if len(row.Metadata) > 0 {
		e.Metadata = map[string]interface{}(row.Metadata)
	}
	return e
}
