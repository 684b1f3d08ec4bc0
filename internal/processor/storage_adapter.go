// File: internal/processor/storage_adapter.go
package processor

import (
	"context"

	"github.com/smartdevs17/ayutrace/internal/models"
)

// requireLot fails with a NOT_FOUND error when the lot does not exist
func (ep *EventProcessor) requireLot(ctx context.Context, lotID string) (*models.Lot, error) {
	return ep.storage.GetLot(ctx, lotID)
}

// GetLot returns a lot by id
func (ep *EventProcessor) GetLot(ctx context.Context, id string) (*models.Lot, error) {
	return ep.storage.GetLot(ctx, id)
}

// ListLots returns every lot
func (ep *EventProcessor) ListLots(ctx context.Context) ([]*models.Lot, error) {
	return ep.storage.ListLots(ctx)
}

// ListCollectionEvents returns the collection events of a lot, or of every lot when lotID is empty
func (ep *EventProcessor) ListCollectionEvents(ctx context.Context, lotID string) ([]*models.CollectionEvent, error) {
	return ep.storage.ListCollectionEvents(ctx, lotID)
}

// ListProcessingEvents returns the processing events of a lot
func (ep *EventProcessor) ListProcessingEvents(ctx context.Context, lotID string) ([]*models.ProcessingEvent, error) {
	return ep.storage.ListProcessingEvents(ctx, lotID)
}

// ListQualityTests returns the quality tests of a lot
func (ep *EventProcessor) ListQualityTests(ctx context.Context, lotID string) ([]*models.QualityTestEvent, error) {
	return ep.storage.ListQualityTests(ctx, lotID)
}

// GetPack returns a pack by id
func (ep *EventProcessor) GetPack(ctx context.Context, id string) (*models.Pack, error) {
	return ep.storage.GetPack(ctx, id)
}

// ListPacks returns the packs minted from a lot
func (ep *EventProcessor) ListPacks(ctx context.Context, lotID string) ([]*models.Pack, error) {
	return ep.storage.ListPacks(ctx, lotID)
}
