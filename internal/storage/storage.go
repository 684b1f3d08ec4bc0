// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
)

// Storage defines the persistence contract shared by the memory, sqlite and
// postgres backends. Every backend gives read-after-write consistency and
// rejects a second ledger entry with the same (lot, sequence).
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Ledger operations
	InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, lotID string) ([]*models.LedgerEntry, error)
	// LatestLedgerEntry returns nil and no error when the lot has no entries
	LatestLedgerEntry(ctx context.Context, lotID string) (*models.LedgerEntry, error)

	// Lot operations
	CreateLot(ctx context.Context, lot *models.Lot) error
	GetLot(ctx context.Context, id string) (*models.Lot, error)
	ListLots(ctx context.Context) ([]*models.Lot, error)
	UpdateLot(ctx context.Context, id string, update models.LotUpdate) (*models.Lot, error)

	// Event record operations. An empty lotID lists every lot.
	SaveCollectionEvent(ctx context.Context, event *models.CollectionEvent) error
	ListCollectionEvents(ctx context.Context, lotID string) ([]*models.CollectionEvent, error)
	SaveProcessingEvent(ctx context.Context, event *models.ProcessingEvent) error
	ListProcessingEvents(ctx context.Context, lotID string) ([]*models.ProcessingEvent, error)
	SaveQualityTest(ctx context.Context, test *models.QualityTestEvent) error
	ListQualityTests(ctx context.Context, lotID string) ([]*models.QualityTestEvent, error)
	SavePack(ctx context.Context, pack *models.Pack) error
	GetPack(ctx context.Context, id string) (*models.Pack, error)
	ListPacks(ctx context.Context, lotID string) ([]*models.Pack, error)

	// Threshold operations
	UpsertThreshold(ctx context.Context, threshold *models.ComplianceThreshold) error
	// ListThresholds lists every threshold when testType is empty
	ListThresholds(ctx context.Context, testType string) ([]*models.ComplianceThreshold, error)

	// Statistics and monitoring
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalLots          int64      `json:"total_lots"`
	TotalLedgerEntries int64      `json:"total_ledger_entries"`
	TotalQualityTests  int64      `json:"total_quality_tests"`
	TotalPacks         int64      `json:"total_packs"`
	LatestEntry        *time.Time `json:"latest_entry,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}
