package models

import "time"

// Medicine is a catalogue entry prescribable during examinations.
type Medicine struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	SideEffects string    `db:"side_effects" json:"side_effects"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
