package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// MemoryStorage keeps everything in process. Records are stored as JSON and
// decoded on every read so callers never share memory with the store, and so
// values take the same shape they would after a SQL round trip.
type MemoryStorage struct {
	mu sync.RWMutex

	lots        map[string][]byte
	ledger      map[string][][]byte // lot id -> entries in insertion order
	sequences   map[string]map[int64]bool
	txIDs       map[string]bool
	eventTxIDs  map[string]string // event id -> ledger tx id
	collections [][]byte
	processing  [][]byte
	quality     [][]byte
	packs       map[string][]byte
	packOrder   []string
	thresholds  map[string][]byte

	logger *logrus.Entry
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{logger: utils.ComponentLogger("memory-storage")}
	s.reset()
	return s
}

func (s *MemoryStorage) reset() {
	s.lots = make(map[string][]byte)
	s.ledger = make(map[string][][]byte)
	s.sequences = make(map[string]map[int64]bool)
	s.txIDs = make(map[string]bool)
	s.eventTxIDs = make(map[string]string)
	s.collections = nil
	s.processing = nil
	s.quality = nil
	s.packs = make(map[string][]byte)
	s.packOrder = nil
	s.thresholds = make(map[string][]byte)
}

// Connect is a no-op for the memory store
func (s *MemoryStorage) Connect() error {
	s.logger.Info("In-memory storage ready")
	return nil
}

// Close discards all data
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Ping always succeeds
func (s *MemoryStorage) Ping() error { return nil }

// Migrate is a no-op for the memory store
func (s *MemoryStorage) Migrate() error { return nil }

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeInternal, "Failed to encode record", err)
	}
	return data, nil
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return utils.WrapAppError(utils.ErrCodeInternal, "Failed to decode record", err)
	}
	return nil
}

// InsertLedgerEntry stores an entry unless its id or (lot, sequence) is taken
func (s *MemoryStorage) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return utils.NewStorageError("Failed to insert ledger entry", err)
	}

	data, err := encode(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txIDs[entry.TransactionID] || s.sequences[entry.LotID][entry.Sequence] {
		return utils.NewStorageError("Ledger entry conflicts with an existing entry for this lot",
			fmt.Errorf("lot %s sequence %d", entry.LotID, entry.Sequence))
	}

	if s.sequences[entry.LotID] == nil {
		s.sequences[entry.LotID] = make(map[int64]bool)
	}
	s.sequences[entry.LotID][entry.Sequence] = true
	s.txIDs[entry.TransactionID] = true
	s.eventTxIDs[entry.EventID] = entry.TransactionID
	s.ledger[entry.LotID] = append(s.ledger[entry.LotID], data)
	return nil
}

func (s *MemoryStorage) decodeLedger(lotID string) ([]*models.LedgerEntry, error) {
	raw := s.ledger[lotID]
	entries := make([]*models.LedgerEntry, 0, len(raw))
	for _, data := range raw {
		var entry models.LedgerEntry
		if err := decode(data, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
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
	return entries, nil
}

// ListLedgerEntries returns a lot's entries ordered by (timestamp, sequence)
func (s *MemoryStorage) ListLedgerEntries(ctx context.Context, lotID string) ([]*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.NewStorageError("Failed to query ledger entries", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decodeLedger(lotID)
}

// LatestLedgerEntry returns the last entry in (timestamp, sequence) order
func (s *MemoryStorage) LatestLedgerEntry(ctx context.Context, lotID string) (*models.LedgerEntry, error) {
	entries, err := s.ListLedgerEntries(ctx, lotID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[len(entries)-1], nil
}

// CreateLot stores a new lot
func (s *MemoryStorage) CreateLot(ctx context.Context, lot *models.Lot) error {
	data, err := encode(lot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lots[lot.ID]; exists {
		return utils.NewConflictError("Lot", lot.ID)
	}
	s.lots[lot.ID] = data
	return nil
}

// GetLot retrieves a lot by id
func (s *MemoryStorage) GetLot(ctx context.Context, id string) (*models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.lots[id]
	if !ok {
		return nil, utils.NewNotFoundError("Lot", id)
	}
	var lot models.Lot
	if err := decode(data, &lot); err != nil {
		return nil, err
	}
	return &lot, nil
}

// ListLots returns every lot, newest first
func (s *MemoryStorage) ListLots(ctx context.Context) ([]*models.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]*models.Lot, 0, len(s.lots))
	for _, data := range s.lots {
		var lot models.Lot
		if err := decode(data, &lot); err != nil {
			return nil, err
		}
		lots = append(lots, &lot)
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].CreatedAt.After(lots[j].CreatedAt)
	})
	return lots, nil
}

// UpdateLot applies status and quantity changes atomically
func (s *MemoryStorage) UpdateLot(ctx context.Context, id string, update models.LotUpdate) (*models.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.lots[id]
	if !ok {
		return nil, utils.NewNotFoundError("Lot", id)
	}
	var lot models.Lot
	if err := decode(data, &lot); err != nil {
		return nil, err
	}

	if update.Status != nil {
		lot.Status = *update.Status
	}
	if update.QuantityDeltaKg != nil {
		lot.CurrentQuantityKg += *update.QuantityDeltaKg
	}
	lot.UpdatedAt = time.Now().UTC()

	updated, err := encode(&lot)
	if err != nil {
		return nil, err
	}
	s.lots[id] = updated
	return &lot, nil
}

// SaveCollectionEvent stores a collection event record
func (s *MemoryStorage) SaveCollectionEvent(ctx context.Context, event *models.CollectionEvent) error {
	return s.appendRecord(&s.collections, event)
}

// ListCollectionEvents returns collection events ordered by collection date
func (s *MemoryStorage) ListCollectionEvents(ctx context.Context, lotID string) ([]*models.CollectionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.CollectionEvent, 0)
	for _, data := range s.collections {
		var event models.CollectionEvent
		if err := decode(data, &event); err != nil {
			return nil, err
		}
		if lotID != "" && event.LotID != lotID {
			continue
		}
		event.BlockchainTxID = s.eventTxIDs[event.ID]
		events = append(events, &event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CollectionDate.Before(events[j].CollectionDate)
	})
	return events, nil
}

// SaveProcessingEvent stores a processing event record
func (s *MemoryStorage) SaveProcessingEvent(ctx context.Context, event *models.ProcessingEvent) error {
	return s.appendRecord(&s.processing, event)
}

// ListProcessingEvents returns processing events ordered by process date
func (s *MemoryStorage) ListProcessingEvents(ctx context.Context, lotID string) ([]*models.ProcessingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.ProcessingEvent, 0)
	for _, data := range s.processing {
		var event models.ProcessingEvent
		if err := decode(data, &event); err != nil {
			return nil, err
		}
		if lotID != "" && event.LotID != lotID {
			continue
		}
		event.BlockchainTxID = s.eventTxIDs[event.ID]
		events = append(events, &event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ProcessDate.Before(events[j].ProcessDate)
	})
	return events, nil
}

// SaveQualityTest stores a quality test record
func (s *MemoryStorage) SaveQualityTest(ctx context.Context, test *models.QualityTestEvent) error {
	return s.appendRecord(&s.quality, test)
}

// ListQualityTests returns quality tests ordered by test date
func (s *MemoryStorage) ListQualityTests(ctx context.Context, lotID string) ([]*models.QualityTestEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tests := make([]*models.QualityTestEvent, 0)
	for _, data := range s.quality {
		var test models.QualityTestEvent
		if err := decode(data, &test); err != nil {
			return nil, err
		}
		if lotID != "" && test.LotID != lotID {
			continue
		}
		test.BlockchainTxID = s.eventTxIDs[test.ID]
		tests = append(tests, &test)
	}
	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].TestDate.Before(tests[j].TestDate)
	})
	return tests, nil
}

// SavePack stores a pack record
func (s *MemoryStorage) SavePack(ctx context.Context, pack *models.Pack) error {
	data, err := encode(pack)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packs[pack.ID]; exists {
		return utils.NewConflictError("Pack", pack.ID)
	}
	s.packs[pack.ID] = data
	s.packOrder = append(s.packOrder, pack.ID)
	return nil
}

// GetPack retrieves a pack by id
func (s *MemoryStorage) GetPack(ctx context.Context, id string) (*models.Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.packs[id]
	if !ok {
		return nil, utils.NewNotFoundError("Pack", id)
	}
	var pack models.Pack
	if err := decode(data, &pack); err != nil {
		return nil, err
	}
	pack.BlockchainTxID = s.eventTxIDs[pack.ID]
	return &pack, nil
}

// ListPacks returns packs in creation order
func (s *MemoryStorage) ListPacks(ctx context.Context, lotID string) ([]*models.Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	packs := make([]*models.Pack, 0)
	for _, id := range s.packOrder {
		var pack models.Pack
		if err := decode(s.packs[id], &pack); err != nil {
			return nil, err
		}
		if lotID != "" && pack.LotID != lotID {
			continue
		}
		pack.BlockchainTxID = s.eventTxIDs[pack.ID]
		packs = append(packs, &pack)
	}
	return packs, nil
}

// UpsertThreshold inserts or replaces the threshold for (test type, parameter).
// The first id and creation time survive a replace.
func (s *MemoryStorage) UpsertThreshold(ctx context.Context, threshold *models.ComplianceThreshold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *threshold
	if existing, ok := s.thresholds[threshold.Key()]; ok {
		var previous models.ComplianceThreshold
		if err := decode(existing, &previous); err != nil {
			return err
		}
		stored.ID = previous.ID
		stored.CreatedAt = previous.CreatedAt
	}

	data, err := encode(&stored)
	if err != nil {
		return err
	}
	s.thresholds[threshold.Key()] = data
	return nil
}

// ListThresholds returns thresholds ordered by (test type, parameter)
func (s *MemoryStorage) ListThresholds(ctx context.Context, testType string) ([]*models.ComplianceThreshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thresholds := make([]*models.ComplianceThreshold, 0)
	for _, data := range s.thresholds {
		var threshold models.ComplianceThreshold
		if err := decode(data, &threshold); err != nil {
			return nil, err
		}
		if testType != "" && threshold.TestType != testType {
			continue
		}
		thresholds = append(thresholds, &threshold)
	}
	sort.Slice(thresholds, func(i, j int) bool {
		return thresholds[i].Key() < thresholds[j].Key()
	})
	return thresholds, nil
}

// GetStorageStats returns record counts
func (s *MemoryStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &StorageStats{
		TotalLots:          int64(len(s.lots)),
		TotalLedgerEntries: int64(len(s.txIDs)),
		TotalQualityTests:  int64(len(s.quality)),
		TotalPacks:         int64(len(s.packs)),
	}

	for lotID := range s.ledger {
		entries, err := s.decodeLedger(lotID)
		if err != nil {
			return nil, err
		}
		if n := len(entries); n > 0 {
			ts := entries[n-1].Timestamp
			if stats.LatestEntry == nil || ts.After(*stats.LatestEntry) {
				stats.LatestEntry = &ts
			}
		}
	}
	return stats, nil
}

func (s *MemoryStorage) appendRecord(list *[][]byte, record interface{}) error {
	data, err := encode(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	*list = append(*list, data)
	return nil
}
