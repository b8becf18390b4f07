package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parkinghub/internal/domain/parking"
	"parkinghub/internal/repository"
)

type SlotService struct {
	registry SlotRegistry
	log      zerolog.Logger
}

func NewSlotService(registry SlotRegistry, log zerolog.Logger) *SlotService {
	return &SlotService{
		registry: registry,
		log:      log,
	}
}

type CreateSlotInput struct {
	SlotName   string `json:"slot_name"`
	RowLetter  string `json:"row_letter"`
	SlotNumber int    `json:"slot_number"`
	IsActive   *bool  `json:"is_active"`
}

func (s *SlotService) ListSlots(ctx context.Context, activeOnly bool) ([]parking.Slot, error) {
	slots, err := s.registry.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch parking slots: %v", ErrPersistence, err)
	}
	if slots == nil {
		slots = []parking.Slot{}
	}
	return slots, nil
}

func (s *SlotService) CreateSlot(ctx context.Context, in CreateSlotInput) (*parking.Slot, error) {
	slot := &parking.Slot{
		SlotName:   strings.TrimSpace(in.SlotName),
		RowLetter:  strings.TrimSpace(in.RowLetter),
		SlotNumber: in.SlotNumber,
		IsActive:   true,
	}
	if in.IsActive != nil {
		slot.IsActive = *in.IsActive
	}

	if slot.SlotName == "" {
		return nil, fmt.Errorf("%w: slot_name is required", ErrInvalidInput)
	}
	if slot.RowLetter == "" {
		return nil, fmt.Errorf("%w: row_letter is required", ErrInvalidInput)
	}
	if slot.SlotNumber <= 0 {
		return nil, fmt.Errorf("%w: slot_number must be positive", ErrInvalidInput)
	}

	if err := s.registry.Create(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrNotCreated) {
			return nil, fmt.Errorf("%w: failed to create parking slot", ErrPersistence)
		}
		s.log.Error().Err(err).Str("slot_name", slot.SlotName).Msg("failed to create parking slot")
		return nil, repoError("create parking slot", err)
	}

	s.log.Info().
		Str("slot_id", slot.ID.String()).
		Str("slot_name", slot.SlotName).
		Bool("is_active", slot.IsActive).
		Msg("parking slot created")
	return slot, nil
}

// UpdateSlot applies only the supplied fields; updated_at is always refreshed.
func (s *SlotService) UpdateSlot(ctx context.Context, rawID string, patch parking.SlotPatch) (*parking.Slot, error) {
	id, err := parseSlotID(rawID)
	if err != nil {
		return nil, err
	}

	if patch.SlotName != nil {
		name := strings.TrimSpace(*patch.SlotName)
		if name == "" {
			return nil, fmt.Errorf("%w: slot_name cannot be empty", ErrInvalidInput)
		}
		patch.SlotName = &name
	}
	if patch.RowLetter != nil {
		row := strings.TrimSpace(*patch.RowLetter)
		if row == "" {
			return nil, fmt.Errorf("%w: row_letter cannot be empty", ErrInvalidInput)
		}
		patch.RowLetter = &row
	}
	if patch.SlotNumber != nil && *patch.SlotNumber <= 0 {
		return nil, fmt.Errorf("%w: slot_number must be positive", ErrInvalidInput)
	}

	slot, err := s.registry.Update(ctx, id, patch)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Str("slot_id", rawID).Msg("failed to update parking slot")
		}
		return nil, repoError("parking slot "+rawID, err)
	}

	s.log.Info().Str("slot_id", rawID).Bool("fields_changed", !patch.Empty()).Msg("parking slot updated")
	return slot, nil
}

// DeleteSlot deactivates a slot. Slots are never removed.
func (s *SlotService) DeleteSlot(ctx context.Context, rawID string) error {
	id, err := parseSlotID(rawID)
	if err != nil {
		return err
	}
	if err := s.registry.SoftDelete(ctx, id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Str("slot_id", rawID).Msg("failed to delete parking slot")
		}
		return repoError("parking slot "+rawID, err)
	}
	s.log.Info().Str("slot_id", rawID).Msg("parking slot deactivated")
	return nil
}

func parseSlotID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid slot id %q", ErrInvalidInput, raw)
	}
	return id, nil
}
