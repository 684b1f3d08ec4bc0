package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// DefaultStorageTimeout bounds each storage call made by the engine
const DefaultStorageTimeout = 5 * time.Second

// Engine appends entries to per-lot hash chains. Appends for one lot are
// serialized; appends for different lots run in parallel.
type Engine struct {
	store          storage.Storage
	anchor         Anchor
	metrics        *metrics.Manager
	logger         *logrus.Entry
	clock          func() time.Time
	storageTimeout time.Duration
	locks          *lotLocks
}

// EngineOption customizes an Engine
type EngineOption func(*Engine)

// WithAnchor mirrors appended entries to an external ledger
func WithAnchor(anchor Anchor) EngineOption {
	return func(e *Engine) {
		if anchor != nil {
			e.anchor = anchor
		}
	}
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithStorageTimeout bounds each storage call on top of the caller's context
func WithStorageTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		if timeout > 0 {
			e.storageTimeout = timeout
		}
	}
}

// WithMetrics records append counts and latency
func WithMetrics(manager *metrics.Manager) EngineOption {
	return func(e *Engine) {
		e.metrics = manager
	}
}

// NewEngine creates an append engine over store
func NewEngine(store storage.Storage, opts ...EngineOption) *Engine {
	e := &Engine{
		store:          store,
		anchor:         NoopAnchor{},
		logger:         utils.ComponentLogger("ledger"),
		clock:          time.Now,
		storageTimeout: DefaultStorageTimeout,
		locks:          newLotLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Append links a new entry for the event to the head of the lot's chain and
// returns its transaction id. Exactly one entry is written on success; on
// error nothing is written.
func (e *Engine) Append(ctx context.Context, eventType models.EventType, eventID, lotID string,
	payload map[string]interface{}, participants []string) (string, error) {

	start := time.Now()

	entry, err := e.append(ctx, eventType, eventID, lotID, payload, participants)
	e.recordAppend(eventType, start, err)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"lot_id":     lotID,
			"event_type": eventType,
			"event_id":   eventID,
		}).WithError(err).Error("Ledger append failed")
		return "", err
	}

	e.logger.WithFields(logrus.Fields{
		"tx_id":      entry.TransactionID,
		"lot_id":     entry.LotID,
		"event_type": entry.EventType,
		"sequence":   entry.Sequence,
	}).Info("Ledger entry appended")

	// Outside the lot lock: a slow anchor must not stall the lot's appends
	if err := e.anchor.Anchor(ctx, entry); err != nil {
		e.logger.WithFields(logrus.Fields{
			"tx_id":  entry.TransactionID,
			"anchor": e.anchor.Name(),
		}).WithError(err).Warn("Failed to anchor ledger entry")
		if e.metrics != nil {
			e.metrics.GetPrometheusMetrics().RecordAnchorFailure(e.anchor.Name())
		}
	}

	return entry.TransactionID, nil
}

func (e *Engine) append(ctx context.Context, eventType models.EventType, eventID, lotID string,
	payload map[string]interface{}, participants []string) (*models.LedgerEntry, error) {

	if !eventType.Valid() {
		return nil, utils.NewValidationError("Unknown ledger event type", string(eventType))
	}
	if eventID == "" {
		return nil, utils.NewValidationError("Event id is required")
	}
	if lotID == "" {
		return nil, utils.NewValidationError("Lot id is required")
	}

	canonical, err := CanonicalPayload(payload)
	if err != nil {
		return nil, utils.NewValidationError("Ledger payload is not serializable", err.Error())
	}

	unlock := e.locks.lock(lotID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, e.storageTimeout)
	defer cancel()

	head, err := e.store.LatestLedgerEntry(ctx, lotID)
	if err != nil {
		return nil, asStorageError("Failed to read chain head", err)
	}

	timestamp := NormalizeTimestamp(e.clock())
	entry := &models.LedgerEntry{
		TransactionID: utils.GenerateID(),
		LotID:         lotID,
		Sequence:      1,
		EventType:     eventType,
		EventID:       eventID,
		Participants:  normalizeParticipants(participants),
		Payload:       canonical,
	}
	if head != nil {
		previous := head.TransactionID
		entry.PreviousTransactionID = &previous
		entry.Sequence = head.Sequence + 1
		// A clock that stepped backwards must not reorder the chain
		if timestamp.Before(head.Timestamp) {
			timestamp = head.Timestamp
		}
	}
	entry.Timestamp = timestamp

	hash, err := HashEntry(entry)
	if err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeLedger, "Failed to hash ledger entry", err)
	}
	entry.ContentHash = hash

	if err := e.store.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, asStorageError("Failed to persist ledger entry", err)
	}
	return entry, nil
}

// ChainFor returns the lot's entries ordered by (timestamp, sequence)
func (e *Engine) ChainFor(ctx context.Context, lotID string) ([]*models.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storageTimeout)
	defer cancel()

	entries, err := e.store.ListLedgerEntries(ctx, lotID)
	if err != nil {
		return nil, asStorageError("Failed to load ledger chain", err)
	}
	SortEntries(entries)
	return entries, nil
}

func (e *Engine) recordAppend(eventType models.EventType, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.GetPrometheusMetrics().RecordLedgerAppend(string(eventType), status, time.Since(start))
}

// SortEntries orders entries by timestamp, then sequence, then transaction id
func SortEntries(entries []*models.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.TransactionID < b.TransactionID
	})
}

// normalizeParticipants gives participants set semantics: unique, sorted, no blanks
func normalizeParticipants(participants []string) []string {
	seen := make(map[string]bool, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// asStorageError keeps typed errors from the store and turns anything else,
// including deadline expiry, into a retryable storage error
func asStorageError(message string, err error) error {
	if utils.IsTimeout(err) && !utils.IsStorage(err) {
		return utils.NewStorageError(message+": storage call timed out", err)
	}
	if utils.ErrorCode(err) != "" {
		return err
	}
	return utils.NewStorageError(message, err)
}
