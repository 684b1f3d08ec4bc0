package ledger

import (
	"testing"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashDeterministic(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 30, 0, 123456789, time.UTC)
	payload := map[string]interface{}{"b": 2.0, "a": "x", "nested": map[string]interface{}{"z": true, "y": []interface{}{1.0, 2.0}}}

	first, err := ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", nil, payload, ts)
	require.NoError(t, err)
	second, err := ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", nil, payload, ts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "Hex encoded SHA-256")
}

func TestComputeHashCoversEveryField(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	prev := "tx-0"
	payload := map[string]interface{}{"quantity_kg": 10.0}

	base, err := ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", &prev, payload, ts)
	require.NoError(t, err)

	other := "tx-other"
	variants := map[string]func() (string, error){
		"EventType": func() (string, error) {
			return ComputeHash(models.EventTypeProcessing, "evt-1", "lot-1", &prev, payload, ts)
		},
		"EventID": func() (string, error) {
			return ComputeHash(models.EventTypeCollection, "evt-2", "lot-1", &prev, payload, ts)
		},
		"LotID": func() (string, error) {
			return ComputeHash(models.EventTypeCollection, "evt-1", "lot-2", &prev, payload, ts)
		},
		"Previous": func() (string, error) {
			return ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", &other, payload, ts)
		},
		"NilPrevious": func() (string, error) {
			return ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", nil, payload, ts)
		},
		"Payload": func() (string, error) {
			return ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", &prev, map[string]interface{}{"quantity_kg": 11.0}, ts)
		},
		"Timestamp": func() (string, error) {
			return ComputeHash(models.EventTypeCollection, "evt-1", "lot-1", &prev, payload, ts.Add(time.Microsecond))
		},
	}

	for name, variant := range variants {
		t.Run(name, func(t *testing.T) {
			hash, err := variant()
			require.NoError(t, err)
			assert.NotEqual(t, base, hash)
		})
	}
}

func TestCanonicalPayload(t *testing.T) {
	type reading struct {
		Value int `json:"value"`
	}

	canonical, err := CanonicalPayload(map[string]interface{}{
		"count":   int64(7),
		"reading": reading{Value: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 7.0, canonical["count"], "Numbers take their decoded form")
	assert.Equal(t, map[string]interface{}{"value": 3.0}, canonical["reading"])

	empty, err := CanonicalPayload(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = CanonicalPayload(map[string]interface{}{"fn": func() {}})
	assert.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2024, 1, 2, 9, 4, 5, 7_000, ist)

	assert.Equal(t, "2024-01-02T03:34:05.000007Z", FormatTimestamp(ts))
	assert.Equal(t, "2024-01-02T03:34:05.000000Z", FormatTimestamp(ts.Truncate(time.Second)), "Fixed width")
}
