package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parkinghub/internal/domain/parking"
	"parkinghub/internal/repository"
)

type fakeEventStore struct {
	mu        sync.Mutex
	events    []parking.Event
	insertErr error
	listErr   error
}

func (f *fakeEventStore) Insert(_ context.Context, event *parking.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEventStore) filter(rfid string) []parking.Event {
	var out []parking.Event
	for _, e := range f.events {
		if rfid == "" || e.RFIDID == rfid {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeEventStore) ListAscending(_ context.Context, rfid string, limit int) ([]parking.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.filter(rfid)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeEventStore) ListRecent(_ context.Context, rfid string, limit, offset int) ([]parking.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	asc := f.filter(rfid)
	out := make([]parking.Event, 0, len(asc))
	for i := len(asc) - 1; i >= 0; i-- {
		out = append(out, asc[i])
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSlotRegistry struct {
	mu        sync.Mutex
	slots     map[uuid.UUID]parking.Slot
	listErr   error
	createErr error
}

func newFakeSlotRegistry(slots ...parking.Slot) *fakeSlotRegistry {
	r := &fakeSlotRegistry{slots: map[uuid.UUID]parking.Slot{}}
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		r.slots[s.ID] = s
	}
	return r
}

func (f *fakeSlotRegistry) List(_ context.Context, activeOnly bool) ([]parking.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []parking.Slot
	for _, s := range f.slots {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowLetter != out[j].RowLetter {
			return out[i].RowLetter < out[j].RowLetter
		}
		return out[i].SlotNumber < out[j].SlotNumber
	})
	return out, nil
}

func (f *fakeSlotRegistry) Create(_ context.Context, slot *parking.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, s := range f.slots {
		if s.IsActive && slot.IsActive && s.SlotName == slot.SlotName {
			return repository.ErrDuplicate
		}
	}
	slot.ID = uuid.New()
	slot.CreatedAt = time.Now().UTC()
	slot.UpdatedAt = slot.CreatedAt
	f.slots[slot.ID] = *slot
	return nil
}

func (f *fakeSlotRegistry) Update(_ context.Context, id uuid.UUID, patch parking.SlotPatch) (*parking.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.SlotName != nil {
		s.SlotName = *patch.SlotName
	}
	if patch.RowLetter != nil {
		s.RowLetter = *patch.RowLetter
	}
	if patch.SlotNumber != nil {
		s.SlotNumber = *patch.SlotNumber
	}
	if patch.IsActive != nil {
		s.IsActive = *patch.IsActive
	}
	s.UpdatedAt = s.UpdatedAt.Add(time.Second)
	f.slots[id] = s
	return &s, nil
}

func (f *fakeSlotRegistry) SoftDelete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || !s.IsActive {
		return repository.ErrNotFound
	}
	s.IsActive = false
	f.slots[id] = s
	return nil
}

type fakeImageSink struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removed   []string
	storeErr  error
	removeErr error
	baseURL   string
}

func newFakeImageSink() *fakeImageSink {
	return &fakeImageSink{objects: map[string][]byte{}}
}

func (f *fakeImageSink) Store(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.objects[path] = data
	return nil
}

func (f *fakeImageSink) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return f.removeErr
}

func (f *fakeImageSink) PublicURL(_ context.Context, path string) (string, error) {
	if f.baseURL == "" {
		return "", errors.New("no public url")
	}
	return f.baseURL + "/" + path, nil
}

func testOptions() ParkingOptions {
	return ParkingOptions{
		ImagePrefix:        "parking",
		SessionFetchMin:    500,
		SessionFetchFactor: 3,
		StatusFetchLimit:   1000,
		DefaultPageSize:    100,
		MaxPageSize:        1000,
	}
}

// newTestParkingService returns a service whose clock advances one minute per call.
func newTestParkingService(events EventStore, slots SlotRegistry, images ImageSink) *ParkingService {
	svc := NewParkingService(events, slots, images, testOptions(), zerolog.Nop())
	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}
