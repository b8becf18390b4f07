package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parkinghub/internal/domain/parking"
)

const pgUniqueViolation = "23505"

type SlotRepository struct {
	db *gorm.DB
}

func NewSlotRepository(db *gorm.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

type ParkingSlot struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SlotName   string    `gorm:"not null"`
	RowLetter  string    `gorm:"not null"`
	SlotNumber int       `gorm:"not null"`
	IsActive   bool      `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ParkingSlot) TableName() string {
	return "parking_slots"
}

func (r *SlotRepository) List(ctx context.Context, activeOnly bool) ([]parking.Slot, error) {
	query := r.db.WithContext(ctx).Model(&ParkingSlot{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var rows []ParkingSlot
	err := query.
		Order("row_letter ASC").
		Order("slot_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	slots := make([]parking.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, row.toDomain())
	}
	return slots, nil
}

func (r *SlotRepository) Create(ctx context.Context, slot *parking.Slot) error {
	now := time.Now().UTC()
	row := ParkingSlot{
		ID:         uuid.New(),
		SlotName:   slot.SlotName,
		RowLetter:  slot.RowLetter,
		SlotNumber: slot.SlotNumber,
		IsActive:   slot.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res := r.db.WithContext(ctx).Create(&row)
	if res.Error != nil {
		return translateError(res.Error, slot.SlotName)
	}
	if res.RowsAffected == 0 {
		return ErrNotCreated
	}

	*slot = row.toDomain()
	return nil
}

// Update applies the non-nil fields of patch and refreshes updated_at.
func (r *SlotRepository) Update(ctx context.Context, id uuid.UUID, patch parking.SlotPatch) (*parking.Slot, error) {
	fields := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if patch.SlotName != nil {
		fields["slot_name"] = *patch.SlotName
	}
	if patch.RowLetter != nil {
		fields["row_letter"] = *patch.RowLetter
	}
	if patch.SlotNumber != nil {
		fields["slot_number"] = *patch.SlotNumber
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}

	var row ParkingSlot
	res := r.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		name := ""
		if patch.SlotName != nil {
			name = *patch.SlotName
		}
		return nil, translateError(res.Error, name)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	slot := row.toDomain()
	return &slot, nil
}

// SoftDelete marks an active slot inactive.
func (r *SlotRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&ParkingSlot{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translateError(err error, slotName string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: active slot %q", ErrDuplicate, slotName)
	}
	return err
}

func (row ParkingSlot) toDomain() parking.Slot {
	return parking.Slot{
		ID:         row.ID,
		SlotName:   row.SlotName,
		RowLetter:  row.RowLetter,
		SlotNumber: row.SlotNumber,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}
