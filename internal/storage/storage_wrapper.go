package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(
		operation,
		table,
		status,
		time.Since(start),
	)
}

// InsertLedgerEntry inserts a ledger entry and records metrics
func (s *StorageWithMetrics) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	start := time.Now()
	err := s.Storage.InsertLedgerEntry(ctx, entry)
	s.record("insert", "ledger_entries", start, err)
	return err
}

// ListLedgerEntries lists ledger entries and records metrics
func (s *StorageWithMetrics) ListLedgerEntries(ctx context.Context, lotID string) ([]*models.LedgerEntry, error) {
	start := time.Now()
	entries, err := s.Storage.ListLedgerEntries(ctx, lotID)
	s.record("select", "ledger_entries", start, err)
	return entries, err
}

// LatestLedgerEntry fetches the chain head and records metrics
func (s *StorageWithMetrics) LatestLedgerEntry(ctx context.Context, lotID string) (*models.LedgerEntry, error) {
	start := time.Now()
	entry, err := s.Storage.LatestLedgerEntry(ctx, lotID)
	s.record("select_latest", "ledger_entries", start, err)
	return entry, err
}

// UpdateLot updates a lot and records metrics
func (s *StorageWithMetrics) UpdateLot(ctx context.Context, id string, update models.LotUpdate) (*models.Lot, error) {
	start := time.Now()
	lot, err := s.Storage.UpdateLot(ctx, id, update)
	s.record("update", "lots", start, err)
	return lot, err
}

// SaveCollectionEvent saves a collection event and records metrics
func (s *StorageWithMetrics) SaveCollectionEvent(ctx context.Context, event *models.CollectionEvent) error {
	start := time.Now()
	err := s.Storage.SaveCollectionEvent(ctx, event)
	s.record("insert", "collection_events", start, err)
	return err
}

// SaveProcessingEvent saves a processing event and records metrics
func (s *StorageWithMetrics) SaveProcessingEvent(ctx context.Context, event *models.ProcessingEvent) error {
	start := time.Now()
	err := s.Storage.SaveProcessingEvent(ctx, event)
	s.record("insert", "processing_events", start, err)
	return err
}

// SaveQualityTest saves a quality test and records metrics
func (s *StorageWithMetrics) SaveQualityTest(ctx context.Context, test *models.QualityTestEvent) error {
	start := time.Now()
	err := s.Storage.SaveQualityTest(ctx, test)
	s.record("insert", "quality_tests", start, err)
	return err
}

// SavePack saves a pack and records metrics
func (s *StorageWithMetrics) SavePack(ctx context.Context, pack *models.Pack) error {
	start := time.Now()
	err := s.Storage.SavePack(ctx, pack)
	s.record("insert", "packs", start, err)
	return err
}

// UpsertThreshold upserts a threshold and records metrics
func (s *StorageWithMetrics) UpsertThreshold(ctx context.Context, threshold *models.ComplianceThreshold) error {
	start := time.Now()
	err := s.Storage.UpsertThreshold(ctx, threshold)
	s.record("upsert", "compliance_thresholds", start, err)
	return err
}
