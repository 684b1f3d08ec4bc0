package models

import "time"

// LotStatus is the lifecycle state of a lot
type LotStatus string

const (
	LotStatusCollected  LotStatus = "collected"
	LotStatusProcessing LotStatus = "processing"
	LotStatusTested     LotStatus = "tested"
	LotStatusApproved   LotStatus = "approved"
	LotStatusRejected   LotStatus = "rejected"
	LotStatusPacked     LotStatus = "packed"
)

// Valid reports whether s is a known lot status
func (s LotStatus) Valid() bool {
	switch s {
	case LotStatusCollected, LotStatusProcessing, LotStatusTested,
		LotStatusApproved, LotStatusRejected, LotStatusPacked:
		return true
	}
	return false
}

// Lot is a traceable batch of raw material from a single collection origin
type Lot struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Species           string    `json:"species" db:"species"`
	OriginRegion      string    `json:"origin_region" db:"origin_region"`
	Status            LotStatus `json:"status" db:"status"`
	CurrentQuantityKg float64   `json:"current_quantity_kg" db:"current_quantity_kg"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// LotUpdate carries the partial fields applied by UpdateLot. Nil fields are left untouched.
type LotUpdate struct {
	Status          *LotStatus `json:"status,omitempty"`
	QuantityDeltaKg *float64   `json:"quantity_delta_kg,omitempty"`
}
