package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS parking_events (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		seq             BIGSERIAL NOT NULL,
		rfid_id         TEXT NOT NULL,
		event_type      TEXT,
		image_path      TEXT,
		license_plate   TEXT,
		parking_slot    TEXT,
		metadata        JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_events_created_at ON parking_events(created_at, seq);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_events_rfid_id ON parking_events(rfid_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS parking_slots (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		slot_name       TEXT NOT NULL,
		row_letter      TEXT NOT NULL,
		slot_number     INT NOT NULL,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_slots_active_name ON parking_slots(slot_name) WHERE is_active;`,
	`CREATE INDEX IF NOT EXISTS idx_parking_slots_row_number ON parking_slots(row_letter, slot_number);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
