package models

import "time"

// EventType classifies the supply-chain record a ledger entry commits to
type EventType string

const (
	EventTypeCollection EventType = "collection"
	EventTypeProcessing EventType = "processing"
	EventTypeQuality    EventType = "quality-test"
	EventTypePack       EventType = "pack-mint"
)

// Valid reports whether t is one of the four ledger event types
func (t EventType) Valid() bool {
	switch t {
	case EventTypeCollection, EventTypeProcessing, EventTypeQuality, EventTypePack:
		return true
	}
	return false
}

// LedgerEntry is one immutable link in a lot's hash chain.
// Sequence is 1-based per lot and only breaks timestamp ties; it is not hashed.
type LedgerEntry struct {
	TransactionID         string                 `json:"transaction_id" db:"tx_id"`
	LotID                 string                 `json:"lot_id" db:"lot_id"`
	Sequence              int64                  `json:"sequence" db:"sequence"`
	Timestamp             time.Time              `json:"timestamp" db:"timestamp"`
	EventType             EventType              `json:"event_type" db:"event_type"`
	EventID               string                 `json:"event_id" db:"event_id"`
	PreviousTransactionID *string                `json:"previous_transaction_id" db:"previous_tx_id"`
	ContentHash           string                 `json:"content_hash" db:"content_hash"`
	Participants          []string               `json:"participants" db:"participants"`
	Payload               map[string]interface{} `json:"payload" db:"payload"`
}

// VerificationResult is the outcome of checking a lot's chain.
// BrokenAt is set to the transaction id of the first failing entry.
type VerificationResult struct {
	LotID          string `json:"lot_id"`
	Valid          bool   `json:"valid"`
	Message        string `json:"message"`
	EntriesChecked int    `json:"entries_checked"`
	BrokenAt       string `json:"broken_at,omitempty"`
}
