package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
)

// TimestampLayout is the fixed-width UTC form hashed into every entry
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// hashInput fixes the field order of the hashed document.
// encoding/json writes struct fields in declaration order and map keys sorted.
type hashInput struct {
	EventType             models.EventType       `json:"eventType"`
	EventID               string                 `json:"eventId"`
	LotID                 string                 `json:"lotId"`
	PreviousTransactionID *string                `json:"previousTransactionId"`
	Payload               map[string]interface{} `json:"payload"`
	Timestamp             string                 `json:"timestamp"`
}

// NormalizeTimestamp returns t in UTC at the precision entries are stored with
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatTimestamp renders t the way it is hashed
func FormatTimestamp(t time.Time) string {
	return NormalizeTimestamp(t).Format(TimestampLayout)
}

// CanonicalPayload returns payload in the shape it has after a JSON round
// trip, so a hash computed at append time matches one computed after reading
// the entry back from any store. A nil payload becomes an empty object.
func CanonicalPayload(payload map[string]interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return map[string]interface{}{}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not serializable: %w", err)
	}

	canonical := make(map[string]interface{})
	if err := json.Unmarshal(data, &canonical); err != nil {
		return nil, fmt.Errorf("payload is not serializable: %w", err)
	}
	return canonical, nil
}

// ComputeHash returns the hex SHA-256 of the canonical serialization of the
// hashed tuple. The sequence number and participants are not covered.
func ComputeHash(eventType models.EventType, eventID, lotID string, previousTxID *string,
	payload map[string]interface{}, timestamp time.Time) (string, error) {

	doc, err := json.Marshal(hashInput{
		EventType:             eventType,
		EventID:               eventID,
		LotID:                 lotID,
		PreviousTransactionID: previousTxID,
		Payload:               payload,
		Timestamp:             FormatTimestamp(timestamp),
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize hash input: %w", err)
	}

	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:]), nil
}

// HashEntry recomputes the content hash of a stored entry
func HashEntry(entry *models.LedgerEntry) (string, error) {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return ComputeHash(entry.EventType, entry.EventID, entry.LotID,
		entry.PreviousTransactionID, payload, entry.Timestamp)
}
