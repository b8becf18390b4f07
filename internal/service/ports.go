package service

import (
	"context"

	"github.com/google/uuid"

	"parkinghub/internal/domain/parking"
)

type EventStore interface {
	Insert(ctx context.Context, event *parking.Event) error
	// ListAscending returns the most recent limit events, oldest first.
	ListAscending(ctx context.Context, rfidID string, limit int) ([]parking.Event, error)
	ListRecent(ctx context.Context, rfidID string, limit, offset int) ([]parking.Event, error)
}

type SlotRegistry interface {
	List(ctx context.Context, activeOnly bool) ([]parking.Slot, error)
	Create(ctx context.Context, slot *parking.Slot) error
	Update(ctx context.Context, id uuid.UUID, patch parking.SlotPatch) (*parking.Slot, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type ImageSink interface {
	Store(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, path string) error
	PublicURL(ctx context.Context, path string) (string, error)
}
