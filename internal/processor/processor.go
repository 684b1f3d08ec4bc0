// File: internal/processor/processor.go
package processor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/compliance"
	"github.com/smartdevs17/ayutrace/internal/ledger"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/notification"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// Processor defines the supply-chain event processor interface
type Processor interface {
	// Lifecycle management
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool

	// Lots
	CreateLot(ctx context.Context, req *CreateLotRequest) (*models.Lot, error)
	GetLot(ctx context.Context, id string) (*models.Lot, error)
	ListLots(ctx context.Context) ([]*models.Lot, error)
	UpdateLotStatus(ctx context.Context, id string, status models.LotStatus) (*models.Lot, error)

	// Supply-chain events
	RecordCollection(ctx context.Context, req *CollectionRequest) (*models.CollectionEvent, error)
	ListCollectionEvents(ctx context.Context, lotID string) ([]*models.CollectionEvent, error)
	RecordProcessing(ctx context.Context, req *ProcessingRequest) (*models.ProcessingEvent, error)
	ListProcessingEvents(ctx context.Context, lotID string) ([]*models.ProcessingEvent, error)
	RecordQualityTest(ctx context.Context, req *QualityTestRequest) (*models.QualityTestEvent, error)
	ListQualityTests(ctx context.Context, lotID string) ([]*models.QualityTestEvent, error)
	MintPack(ctx context.Context, req *PackRequest) (*models.Pack, error)
	GetPack(ctx context.Context, id string) (*models.Pack, error)
	ListPacks(ctx context.Context, lotID string) ([]*models.Pack, error)

	// Statistics and monitoring
	GetStats() *ProcessorStats
	GetHealth(ctx context.Context) *ProcessorHealth
}

// EventProcessor validates inbound supply-chain events, persists their
// records, commits them to the lot's ledger chain and moves the lot along
// its lifecycle.
type EventProcessor struct {
	// Dependencies
	storage   storage.Storage
	engine    *ledger.Engine
	evaluator *compliance.Evaluator
	notifier  notification.Notifier
	metrics   *metrics.Manager
	logger    *logrus.Entry

	// Configuration
	config *ProcessorConfig
	now    func() time.Time

	// State management
	mu      sync.RWMutex
	running bool

	// Processing components
	validator   *EventValidator
	transformer *EventTransformer

	// Statistics
	stats *ProcessorStats
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	// FutureTolerance is how far ahead of now an event date may lie
	FutureTolerance time.Duration `json:"future_tolerance"`
}

// DefaultProcessorConfig returns the processor defaults
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{FutureTolerance: time.Hour}
}

// ProcessorStats provides processor statistics
type ProcessorStats struct {
	StartTime              time.Time         `json:"start_time"`
	Uptime                 time.Duration     `json:"uptime"`
	IsRunning              bool              `json:"is_running"`
	TotalEventsProcessed   uint64            `json:"total_events_processed"`
	EventsByType           map[string]uint64 `json:"events_by_type"`
	TotalNotificationsSent uint64            `json:"total_notifications_sent"`
	ProcessingRate         float64           `json:"processing_rate"`
	AverageProcessingTime  time.Duration     `json:"average_processing_time"`
	ErrorCount             uint64            `json:"error_count"`
	LastError              *string           `json:"last_error,omitempty"`
	LastErrorTime          *time.Time        `json:"last_error_time,omitempty"`
}

// ProcessorHealth provides processor health information
type ProcessorHealth struct {
	Healthy        bool     `json:"healthy"`
	StorageHealthy bool     `json:"storage_healthy"`
	Issues         []string `json:"issues,omitempty"`
}

// CreateLotRequest is the input for CreateLot
type CreateLotRequest struct {
	Name              string  `json:"name"`
	Species           string  `json:"species"`
	OriginRegion      string  `json:"origin_region"`
	CurrentQuantityKg float64 `json:"current_quantity_kg"`
}

// CollectionRequest is the input for RecordCollection
type CollectionRequest struct {
	LotID             string             `json:"lot_id"`
	CollectorID       string             `json:"collector_id"`
	Species           string             `json:"species"`
	CommonName        string             `json:"common_name"`
	PartUsed          string             `json:"part_used"`
	QuantityKg        float64            `json:"quantity_kg"`
	CollectionDate    time.Time          `json:"collection_date"`
	Location          models.GeoLocation `json:"location"`
	WeatherConditions string             `json:"weather_conditions"`
	SoilType          string             `json:"soil_type"`
	WildHarvested     bool               `json:"wild_harvested"`
	OrganicCertified  bool               `json:"organic_certified"`
}

// ProcessingRequest is the input for RecordProcessing
type ProcessingRequest struct {
	LotID            string                 `json:"lot_id"`
	ProcessorID      string                 `json:"processor_id"`
	ProcessType      string                 `json:"process_type"`
	ProcessDate      time.Time              `json:"process_date"`
	Parameters       map[string]interface{} `json:"parameters"`
	InputQuantityKg  float64                `json:"input_quantity_kg"`
	OutputQuantityKg float64                `json:"output_quantity_kg"`
	YieldPercentage  float64                `json:"yield_percentage"`
	EquipmentID      string                 `json:"equipment_id"`
	OperatorID       string                 `json:"operator_id"`
}

// QualityTestRequest is the input for RecordQualityTest
type QualityTestRequest struct {
	LotID               string                              `json:"lot_id"`
	LabID               string                              `json:"lab_id"`
	TestDate            time.Time                           `json:"test_date"`
	TestType            string                              `json:"test_type"`
	Parameters          map[string]models.MeasuredParameter `json:"parameters"`
	CertificationNumber string                              `json:"certification_number"`
	CertificationBody   string                              `json:"certification_body"`
	LabAccreditation    string                              `json:"lab_accreditation"`
}

// PackRequest is the input for MintPack
type PackRequest struct {
	LotID           string              `json:"lot_id"`
	ManufacturerID  string              `json:"manufacturer_id"`
	SKU             string              `json:"sku"`
	ProductName     string              `json:"product_name"`
	BatchNumber     string              `json:"batch_number"`
	ManufactureDate time.Time           `json:"manufacture_date"`
	ExpiryDate      time.Time           `json:"expiry_date"`
	NetWeight       string              `json:"net_weight"`
	Ingredients     []models.Ingredient `json:"ingredients"`
	Dosage          string              `json:"dosage"`
	Storage         string              `json:"storage"`
	AyushLicense    string              `json:"ayush_license"`
	GMPCertified    bool                `json:"gmp_certified"`
}

// NewEventProcessor creates a new event processor. notifier and
// metricsManager may be nil.
func NewEventProcessor(
	store storage.Storage,
	engine *ledger.Engine,
	evaluator *compliance.Evaluator,
	notifier notification.Notifier,
	metricsManager *metrics.Manager,
	config *ProcessorConfig,
) *EventProcessor {
	if config == nil {
		config = DefaultProcessorConfig()
	}

	processor := &EventProcessor{
		storage:   store,
		engine:    engine,
		evaluator: evaluator,
		notifier:  notifier,
		metrics:   metricsManager,
		logger:    utils.ComponentLogger("processor"),
		config:    config,
		now:       time.Now,
		stats: &ProcessorStats{
			StartTime:    time.Now(),
			EventsByType: make(map[string]uint64),
		},
	}

	// Initialize components
	processor.validator = NewEventValidator(config, processor.clock)
	processor.transformer = NewEventTransformer(processor.clock)

	return processor
}

func (ep *EventProcessor) clock() time.Time {
	return ep.now()
}

// Start starts the event processor
func (ep *EventProcessor) Start(ctx context.Context) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Processor already running")
	}

	ep.running = true
	ep.stats.StartTime = time.Now()
	ep.stats.IsRunning = true

	ep.logger.Info("Event processor started")
	return nil
}

// Stop stops the event processor
func (ep *EventProcessor) Stop() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if !ep.running {
		return nil
	}

	ep.running = false
	ep.stats.IsRunning = false

	ep.logger.Info("Event processor stopped")
	return nil
}

// IsRunning returns whether the processor is running
func (ep *EventProcessor) IsRunning() bool {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	return ep.running
}

// CreateLot registers a new lot in the collected state
func (ep *EventProcessor) CreateLot(ctx context.Context, req *CreateLotRequest) (*models.Lot, error) {
	if err := validationError("Lot validation failed", ep.validator.ValidateLot(req)); err != nil {
		return nil, err
	}

	now := ep.now().UTC()
	lot := &models.Lot{
		ID:                utils.GeneratePrefixedID("lot"),
		Name:              req.Name,
		Species:           req.Species,
		OriginRegion:      req.OriginRegion,
		Status:            models.LotStatusCollected,
		CurrentQuantityKg: req.CurrentQuantityKg,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := ep.storage.CreateLot(ctx, lot); err != nil {
		return nil, err
	}

	ep.logger.WithFields(logrus.Fields{
		"lot_id":  lot.ID,
		"species": lot.Species,
	}).Info("Lot created")
	return lot, nil
}

// UpdateLotStatus moves a lot to status
func (ep *EventProcessor) UpdateLotStatus(ctx context.Context, id string, status models.LotStatus) (*models.Lot, error) {
	if !status.Valid() {
		return nil, utils.NewValidationError("Unknown lot status", string(status))
	}
	lot, err := ep.storage.UpdateLot(ctx, id, models.LotUpdate{Status: &status})
	if err != nil {
		return nil, err
	}

	ep.logger.WithFields(logrus.Fields{
		"lot_id": id,
		"status": status,
	}).Info("Lot status updated")
	return lot, nil
}

// RecordCollection records harvested material into a lot and adds its
// quantity to the lot.
func (ep *EventProcessor) RecordCollection(ctx context.Context, req *CollectionRequest) (*models.CollectionEvent, error) {
	start := time.Now()
	if err := validationError("Collection event validation failed", ep.validator.ValidateCollection(req)); err != nil {
		return nil, ep.fail(models.EventTypeCollection, err)
	}
	if _, err := ep.requireLot(ctx, req.LotID); err != nil {
		return nil, ep.fail(models.EventTypeCollection, err)
	}

	now := ep.now().UTC()
	event := &models.CollectionEvent{
		ID:                utils.GeneratePrefixedID("col"),
		LotID:             req.LotID,
		CollectorID:       req.CollectorID,
		Species:           req.Species,
		CommonName:        req.CommonName,
		PartUsed:          req.PartUsed,
		QuantityKg:        req.QuantityKg,
		CollectionDate:    req.CollectionDate.UTC(),
		Location:          req.Location,
		WeatherConditions: req.WeatherConditions,
		SoilType:          req.SoilType,
		WildHarvested:     req.WildHarvested,
		OrganicCertified:  req.OrganicCertified,
		FHIRMetadata:      ep.transformer.CollectionFHIR(req),
		CreatedAt:         now,
	}

	status := models.LotStatusCollected
	quantity := req.QuantityKg
	txID, err := ep.runWorkflow(ctx, &eventWorkflow{
		eventType: models.EventTypeCollection,
		eventID:   event.ID,
		lotID:     event.LotID,
		actorID:   event.CollectorID,
		record:    event,
		save:      func(ctx context.Context) error { return ep.storage.SaveCollectionEvent(ctx, event) },
		lotUpdate: models.LotUpdate{Status: &status, QuantityDeltaKg: &quantity},
	})
	if err != nil {
		return nil, ep.fail(models.EventTypeCollection, err)
	}

	event.BlockchainTxID = txID
	ep.succeed(models.EventTypeCollection, start)
	return event, nil
}

// RecordProcessing records a processing step applied to a lot
func (ep *EventProcessor) RecordProcessing(ctx context.Context, req *ProcessingRequest) (*models.ProcessingEvent, error) {
	start := time.Now()
	if err := validationError("Processing event validation failed", ep.validator.ValidateProcessing(req)); err != nil {
		return nil, ep.fail(models.EventTypeProcessing, err)
	}
	if _, err := ep.requireLot(ctx, req.LotID); err != nil {
		return nil, ep.fail(models.EventTypeProcessing, err)
	}

	now := ep.now().UTC()
	event := &models.ProcessingEvent{
		ID:               utils.GeneratePrefixedID("proc"),
		LotID:            req.LotID,
		ProcessorID:      req.ProcessorID,
		ProcessType:      req.ProcessType,
		ProcessDate:      req.ProcessDate.UTC(),
		Parameters:       req.Parameters,
		InputQuantityKg:  req.InputQuantityKg,
		OutputQuantityKg: req.OutputQuantityKg,
		YieldPercentage:  req.YieldPercentage,
		EquipmentID:      req.EquipmentID,
		OperatorID:       req.OperatorID,
		FHIRMetadata:     ep.transformer.ProcessingFHIR(req),
		CreatedAt:        now,
	}

	status := models.LotStatusProcessing
	txID, err := ep.runWorkflow(ctx, &eventWorkflow{
		eventType: models.EventTypeProcessing,
		eventID:   event.ID,
		lotID:     event.LotID,
		actorID:   event.ProcessorID,
		record:    event,
		save:      func(ctx context.Context) error { return ep.storage.SaveProcessingEvent(ctx, event) },
		lotUpdate: models.LotUpdate{Status: &status},
	})
	if err != nil {
		return nil, ep.fail(models.EventTypeProcessing, err)
	}

	event.BlockchainTxID = txID
	ep.succeed(models.EventTypeProcessing, start)
	return event, nil
}

// RecordQualityTest evaluates the measured parameters against the test
// type's thresholds, records the outcome and approves or rejects the lot.
// An evaluation error aborts before anything is written.
func (ep *EventProcessor) RecordQualityTest(ctx context.Context, req *QualityTestRequest) (*models.QualityTestEvent, error) {
	start := time.Now()
	if err := validationError("Quality test validation failed", ep.validator.ValidateQualityTest(req)); err != nil {
		return nil, ep.fail(models.EventTypeQuality, err)
	}
	if _, err := ep.requireLot(ctx, req.LotID); err != nil {
		return nil, ep.fail(models.EventTypeQuality, err)
	}

	parameters, overall, err := ep.evaluator.Evaluate(ctx, req.TestType, req.Parameters)
	if err != nil {
		return nil, ep.fail(models.EventTypeQuality, err)
	}

	now := ep.now().UTC()
	test := &models.QualityTestEvent{
		ID:                  utils.GeneratePrefixedID("qt"),
		LotID:               req.LotID,
		LabID:               req.LabID,
		TestDate:            req.TestDate.UTC(),
		TestType:            req.TestType,
		Parameters:          parameters,
		OverallStatus:       overall,
		CertificationNumber: req.CertificationNumber,
		CertificationBody:   req.CertificationBody,
		LabAccreditation:    req.LabAccreditation,
		FHIRMetadata:        ep.transformer.QualityTestFHIR(req, overall),
		CreatedAt:           now,
	}

	status := models.LotStatusApproved
	if overall == models.TestStatusFail {
		status = models.LotStatusRejected
	}
	txID, err := ep.runWorkflow(ctx, &eventWorkflow{
		eventType: models.EventTypeQuality,
		eventID:   test.ID,
		lotID:     test.LotID,
		actorID:   test.LabID,
		record:    test,
		save:      func(ctx context.Context) error { return ep.storage.SaveQualityTest(ctx, test) },
		lotUpdate: models.LotUpdate{Status: &status},
	})
	if err != nil {
		return nil, ep.fail(models.EventTypeQuality, err)
	}

	test.BlockchainTxID = txID
	if ep.metrics != nil {
		ep.metrics.GetPrometheusMetrics().RecordQualityTest(test.TestType, string(overall))
	}
	if overall == models.TestStatusFail {
		ep.alertFailedTest(ctx, test)
	}

	ep.succeed(models.EventTypeQuality, start)
	return test, nil
}

// MintPack creates a consumer pack from a lot and marks the lot packed
func (ep *EventProcessor) MintPack(ctx context.Context, req *PackRequest) (*models.Pack, error) {
	start := time.Now()
	if err := validationError("Pack validation failed", ep.validator.ValidatePack(req)); err != nil {
		return nil, ep.fail(models.EventTypePack, err)
	}
	if _, err := ep.requireLot(ctx, req.LotID); err != nil {
		return nil, ep.fail(models.EventTypePack, err)
	}

	now := ep.now().UTC()
	packID, err := utils.GeneratePackID(now)
	if err != nil {
		return nil, ep.fail(models.EventTypePack, utils.WrapAppError(utils.ErrCodeInternal, "Failed to generate pack id", err))
	}

	ingredients := req.Ingredients
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	pack := &models.Pack{
		ID:              packID,
		LotID:           req.LotID,
		ManufacturerID:  req.ManufacturerID,
		SKU:             req.SKU,
		ProductName:     req.ProductName,
		BatchNumber:     req.BatchNumber,
		ManufactureDate: req.ManufactureDate.UTC(),
		ExpiryDate:      req.ExpiryDate.UTC(),
		NetWeight:       req.NetWeight,
		Ingredients:     ingredients,
		Dosage:          req.Dosage,
		Storage:         req.Storage,
		AyushLicense:    req.AyushLicense,
		GMPCertified:    req.GMPCertified,
		FHIRMetadata:    ep.transformer.PackFHIR(packID, req),
		CreatedAt:       now,
	}

	status := models.LotStatusPacked
	txID, err := ep.runWorkflow(ctx, &eventWorkflow{
		eventType: models.EventTypePack,
		eventID:   pack.ID,
		lotID:     pack.LotID,
		actorID:   pack.ManufacturerID,
		record:    pack,
		save:      func(ctx context.Context) error { return ep.storage.SavePack(ctx, pack) },
		lotUpdate: models.LotUpdate{Status: &status},
	})
	if err != nil {
		return nil, ep.fail(models.EventTypePack, err)
	}

	pack.BlockchainTxID = txID
	ep.succeed(models.EventTypePack, start)
	return pack, nil
}

// alertFailedTest notifies about a failed quality test. Delivery problems
// are logged; the recorded test stands.
func (ep *EventProcessor) alertFailedTest(ctx context.Context, test *models.QualityTestEvent) {
	if ep.notifier == nil {
		return
	}

	failed := make([]string, 0)
	for name, p := range test.Parameters {
		if p.Status == models.ParameterStatusFail {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	err := ep.notifier.Notify(ctx, &notification.Alert{
		Type:     notification.AlertQualityTestFailed,
		Severity: notification.SeverityWarning,
		LotID:    test.LotID,
		Subject:  "Quality test failed",
		Message:  test.TestType + " test " + test.ID + " failed for lot " + test.LotID,
		Data: map[string]interface{}{
			"test_id":           test.ID,
			"test_type":         test.TestType,
			"failed_parameters": failed,
			"blockchain_tx_id":  test.BlockchainTxID,
		},
	})
	if err != nil {
		ep.logger.WithError(err).WithField("test_id", test.ID).Warn("Failed to send quality alert")
		return
	}

	ep.mu.Lock()
	ep.stats.TotalNotificationsSent++
	ep.mu.Unlock()
}
