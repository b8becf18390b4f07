package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v4"

	"parkinghub/internal/domain/parking"
	"parkinghub/internal/utils"
)

type ParkingOptions struct {
	ImagePrefix        string
	SessionFetchMin    int
	SessionFetchFactor int
	StatusFetchLimit   int
	DefaultPageSize    int
	MaxPageSize        int
}

type ParkingService struct {
	events EventStore
	slots  SlotRegistry
	images ImageSink
	opts   ParkingOptions
	log    zerolog.Logger
	now    func() time.Time
}

func NewParkingService(events EventStore, slots SlotRegistry, images ImageSink, opts ParkingOptions, log zerolog.Logger) *ParkingService {
	return &ParkingService{
		events: events,
		slots:  slots,
		images: images,
		opts:   opts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upload is an image captured by an edge device together with the card it read.
type Upload struct {
	RFIDID      string
	Filename    string
	ContentType string
	Data        []byte
	Source      string
}

type IngestResult struct {
	RFIDID string `json:"rfid_id"`
}

type ExitResult struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	RFIDID       string    `json:"rfid_id"`
	LicensePlate string    `json:"license_plate"`
	ParkingSlot  string    `json:"parking_slot"`
	TimeIn       time.Time `json:"time_in"`
	TimeOut      time.Time `json:"time_out"`
}

// DeviceReport is an event reported by a device without an image upload.
type DeviceReport struct {
	RFIDID       string `json:"rfid_id"`
	EventType    string `json:"event_type"`
	ParkingSlot  string `json:"parking_slot,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
	ImagePath    string `json:"image_path,omitempty"`
}

type SessionPage struct {
	Sessions []parking.Session `json:"sessions"`
	Count    int               `json:"count"`
	Total    int               `json:"total"`
}

// IngestUpload stores the entry image and records an event with no type or
// slot, which replays as an IN.
func (s *ParkingService) IngestUpload(ctx context.Context, up Upload) (*IngestResult, error) {
	up.RFIDID = utils.NormalizeRFID(up.RFIDID)
	if err := validateUpload(up); err != nil {
		return nil, err
	}

	imagePath, err := s.storeImage(ctx, up)
	if err != nil {
		return nil, err
	}

	event := &parking.Event{
		ID:        uuid.New(),
		RFIDID:    up.RFIDID,
		ImagePath: imagePath,
		Metadata:  uploadMetadata(up),
		CreatedAt: s.now(),
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.log.Error().
			Err(err).
			Str("rfid_id", up.RFIDID).
			Str("image_path", imagePath).
			Msg("failed to insert parking event")
		return nil, fmt.Errorf("%w: failed to insert parking event: %v", ErrPersistence, err)
	}

	s.log.Info().
		Str("event_id", event.ID.String()).
		Str("rfid_id", up.RFIDID).
		Str("image_path", imagePath).
		Int("size_bytes", len(up.Data)).
		Msg("saved parking event")

	return &IngestResult{RFIDID: up.RFIDID}, nil
}

// IngestExit closes the card's open session with an OUT event carrying the
// session's slot and plate.
func (s *ParkingService) IngestExit(ctx context.Context, up Upload) (*ExitResult, error) {
	up.RFIDID = utils.NormalizeRFID(up.RFIDID)
	if err := validateUpload(up); err != nil {
		return nil, err
	}

	events, err := s.events.ListAscending(ctx, up.RFIDID, s.opts.SessionFetchMin)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parking events: %v", ErrPersistence, err)
	}
	sessions, _ := parking.BuildSessions(events)
	open, ok := parking.OpenSessionFor(sessions, up.RFIDID)
	if !ok {
		return nil, fmt.Errorf("%w: no active parking session for card %s", ErrNotFound, up.RFIDID)
	}

	imagePath, err := s.storeImage(ctx, up)
	if err != nil {
		return nil, err
	}

	event := &parking.Event{
		ID:        uuid.New(),
		RFIDID:    up.RFIDID,
		EventType: parking.EventOut,
		ImagePath: imagePath,
		Metadata:  uploadMetadata(up),
		CreatedAt: s.now(),
	}
	if parking.IsRealSlot(open.ParkingSlot) {
		event.ParkingSlot = null.StringFrom(open.ParkingSlot)
	}
	if open.LicensePlate != parking.NotAvailable {
		event.LicensePlate = null.StringFrom(open.LicensePlate)
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.log.Error().Err(err).Str("rfid_id", up.RFIDID).Msg("failed to insert exit event")
		return nil, fmt.Errorf("%w: failed to insert parking event: %v", ErrPersistence, err)
	}

	s.log.Info().
		Str("event_id", event.ID.String()).
		Str("session_id", open.ID.String()).
		Str("rfid_id", up.RFIDID).
		Str("parking_slot", open.ParkingSlot).
		Dur("parked", event.CreatedAt.Sub(open.TimeIn)).
		Msg("vehicle exit recorded")

	return &ExitResult{
		Success:      true,
		Message:      "Vehicle exit successful",
		RFIDID:       up.RFIDID,
		LicensePlate: open.LicensePlate,
		ParkingSlot:  open.ParkingSlot,
		TimeIn:       open.TimeIn,
		TimeOut:      event.CreatedAt,
	}, nil
}

// RecordDeviceEvent appends an event reported directly by a device.
func (s *ParkingService) RecordDeviceEvent(ctx context.Context, report DeviceReport, source string) (*parking.Event, error) {
	rfid := utils.NormalizeRFID(report.RFIDID)
	if rfid == "" {
		return nil, fmt.Errorf("%w: rfid_id is required", ErrInvalidInput)
	}
	eventType, ok := parking.ParseEventType(report.EventType)
	if !ok {
		return nil, fmt.Errorf("%w: event_type must be IN or OUT, got %q", ErrInvalidInput, report.EventType)
	}

	event := &parking.Event{
		ID:        uuid.New(),
		RFIDID:    rfid,
		EventType: eventType,
		ImagePath: report.ImagePath,
		Metadata:  map[string]interface{}{"source": source},
		CreatedAt: s.now(),
	}
	if report.ParkingSlot != "" {
		event.ParkingSlot = null.StringFrom(report.ParkingSlot)
	}
	if report.LicensePlate != "" {
		event.LicensePlate = null.StringFrom(report.LicensePlate)
	}

	if err := s.events.Insert(ctx, event); err != nil {
		s.log.Error().
			Err(err).
			Str("rfid_id", rfid).
			Str("source", source).
			Msg("failed to insert device event")
		return nil, fmt.Errorf("%w: failed to insert parking event: %v", ErrPersistence, err)
	}

	s.log.Info().
		Str("event_id", event.ID.String()).
		Str("rfid_id", rfid).
		Str("event_type", string(eventType.Normalize())).
		Str("parking_slot", event.Slot()).
		Str("source", source).
		Msg("saved device event")

	return event, nil
}

// ListEvents returns events newest first, optionally for one card.
func (s *ParkingService) ListEvents(ctx context.Context, rfidID string, limit, offset int) ([]parking.Event, error) {
	limit, offset = s.page(limit, offset)
	events, err := s.events.ListRecent(ctx, utils.NormalizeRFID(rfidID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parking events: %v", ErrPersistence, err)
	}
	if events == nil {
		events = []parking.Event{}
	}
	return events, nil
}

// ListSessions reconstructs sessions from the latest events. The fetch window
// is larger than the page so pairs across the page boundary stay intact.
func (s *ParkingService) ListSessions(ctx context.Context, limit, offset int) (*SessionPage, error) {
	limit, offset = s.page(limit, offset)
	fetchLimit := limit * s.opts.SessionFetchFactor
	if fetchLimit < s.opts.SessionFetchMin {
		fetchLimit = s.opts.SessionFetchMin
	}

	events, err := s.events.ListAscending(ctx, "", fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parking sessions: %v", ErrPersistence, err)
	}

	sessions, stats := parking.BuildSessions(events)
	s.logReplay("sessions", len(events), stats)

	page := parking.PageSessions(sessions, offset, limit)
	return &SessionPage{
		Sessions: page,
		Count:    len(page),
		Total:    len(sessions),
	}, nil
}

// SlotStatus reports occupancy for every active slot. When the registry
// cannot be read, the default grid is used and the result is marked degraded.
func (s *ParkingService) SlotStatus(ctx context.Context) (*parking.SlotStatus, error) {
	events, err := s.events.ListAscending(ctx, "", s.opts.StatusFetchLimit)
	if err != nil {
		// no fallback here: an empty event log would report every slot as free
		return nil, fmt.Errorf("%w: failed to fetch parking slot status: %v", ErrPersistence, err)
	}
	held, stats := parking.ReplayOccupancy(events)
	s.logReplay("occupancy", len(events), stats)

	degraded := false
	var names []string
	slots, err := s.slots.List(ctx, true)
	if err != nil {
		s.log.Warn().Err(err).Msg("slot registry unavailable, using default slot grid")
		names = parking.DefaultSlotGrid()
		degraded = true
	} else {
		names = make([]string, 0, len(slots))
		for _, slot := range slots {
			names = append(names, slot.SlotName)
		}
	}

	status := parking.BuildSlotStatus(held, names, degraded)
	return &status, nil
}

func (s *ParkingService) storeImage(ctx context.Context, up Upload) (string, error) {
	objectPath := path.Join(s.opts.ImagePrefix, uuid.NewString()+"."+utils.ImageExtension(up.Filename, up.ContentType))

	if err := s.images.Remove(ctx, objectPath); err != nil {
		s.log.Debug().Err(err).Str("path", objectPath).Msg("pre-upload remove skipped")
	}

	if err := s.images.Store(ctx, objectPath, up.Data, up.ContentType); err != nil {
		s.log.Error().Err(err).Str("path", objectPath).Str("rfid_id", up.RFIDID).Msg("failed to upload image")
		return "", fmt.Errorf("%w: failed to upload image to storage: %v", ErrStorage, err)
	}

	publicURL, err := s.images.PublicURL(ctx, objectPath)
	if err != nil {
		s.log.Debug().Err(err).Str("path", objectPath).Msg("public url unavailable, storing internal path")
		return objectPath, nil
	}
	return publicURL, nil
}

func (s *ParkingService) page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *ParkingService) logReplay(kind string, events int, stats parking.ReplayStats) {
	if stats.OrphanOuts > 0 {
		s.log.Warn().
			Str("replay", kind).
			Int("events", events).
			Int("orphan_outs", stats.OrphanOuts).
			Msg("OUT events without an open session were dropped")
	}
	if stats.UnknownTypes > 0 {
		s.log.Debug().
			Str("replay", kind).
			Int("unknown_types", stats.UnknownTypes).
			Msg("events with unknown type ignored")
	}
}

func validateUpload(up Upload) error {
	if up.RFIDID == "" {
		return fmt.Errorf("%w: rfid_id is required", ErrInvalidInput)
	}
	if up.ContentType == "" || !utils.IsImageContentType(up.ContentType) {
		return fmt.Errorf("%w: file must be an image", ErrInvalidInput)
	}
	if len(up.Data) == 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	return nil
}

func uploadMetadata(up Upload) map[string]interface{} {
	meta := map[string]interface{}{
		"content_type": up.ContentType,
		"size_bytes":   len(up.Data),
	}
	if up.Filename != "" {
		meta["original_filename"] = up.Filename
	}
	if up.Source != "" {
		meta["source"] = up.Source
	}
	return meta
}
