package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartdevs17/ayutrace/internal/compliance"
	"github.com/smartdevs17/ayutrace/internal/ledger"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/notification"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingNotifier struct {
	alerts []*notification.Alert
}

func (c *capturingNotifier) Notify(_ context.Context, alert *notification.Alert) error {
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *capturingNotifier) Name() string { return "capture" }

type fixture struct {
	ctx       context.Context
	store     *storage.MemoryStorage
	engine    *ledger.Engine
	manager   *metrics.Manager
	notifier  *capturingNotifier
	processor *EventProcessor
	day       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    storage.NewMemoryStorage(),
		manager:  metrics.NewManager(),
		notifier: &capturingNotifier{},
		day:      time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
	}
	f.engine = ledger.NewEngine(f.store, ledger.WithMetrics(f.manager))

	thresholds, err := compliance.NewThresholdStore(f.store, compliance.DefaultCacheSize, f.manager)
	require.NoError(t, err)
	_, err = compliance.Seed(f.ctx, thresholds, compliance.DefaultThresholds())
	require.NoError(t, err)

	f.processor = NewEventProcessor(f.store, f.engine, compliance.NewEvaluator(thresholds), f.notifier, f.manager, nil)
	return f
}

func (f *fixture) lot(t *testing.T) *models.Lot {
	t.Helper()
	lot, err := f.processor.CreateLot(f.ctx, &CreateLotRequest{
		Name:         "Ashwagandha root",
		Species:      "Withania somnifera",
		OriginRegion: "Madhya Pradesh",
	})
	require.NoError(t, err)
	return lot
}

func (f *fixture) collection(lotID string, quantity float64) *CollectionRequest {
	return &CollectionRequest{
		LotID:          lotID,
		CollectorID:    "collector-7",
		Species:        "Withania somnifera",
		CommonName:     "Ashwagandha",
		PartUsed:       "root",
		QuantityKg:     quantity,
		CollectionDate: f.day,
		Location:       models.GeoLocation{Lat: 23.25, Lng: 77.41},
		WildHarvested:  true,
	}
}

func (f *fixture) leadTest(lotID string, value interface{}) *QualityTestRequest {
	return &QualityTestRequest{
		LotID:    lotID,
		LabID:    "lab-3",
		TestDate: f.day,
		TestType: "heavy-metals",
		Parameters: map[string]models.MeasuredParameter{
			"lead": {Value: value, Unit: "ppm"},
		},
	}
}

func (f *fixture) chain(t *testing.T, lotID string) []*models.LedgerEntry {
	t.Helper()
	chain, err := f.engine.ChainFor(f.ctx, lotID)
	require.NoError(t, err)
	return chain
}

func TestCreateLot(t *testing.T) {
	f := newFixture(t)

	lot := f.lot(t)
	assert.True(t, strings.HasPrefix(lot.ID, "lot_"))
	assert.Equal(t, models.LotStatusCollected, lot.Status)
	assert.Zero(t, lot.CurrentQuantityKg)

	stored, err := f.processor.GetLot(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, lot.Name, stored.Name)

	_, err = f.processor.CreateLot(f.ctx, &CreateLotRequest{Name: "", Species: "x", CurrentQuantityKg: -1})
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	lots, err := f.processor.ListLots(f.ctx)
	require.NoError(t, err)
	assert.Len(t, lots, 1)
}

func TestRecordCollectionAccumulatesQuantity(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t)

	first, err := f.processor.RecordCollection(f.ctx, f.collection(lot.ID, 10))
	require.NoError(t, err)
	req := f.collection(lot.ID, 5.5)
	req.WildHarvested = false
	req.OrganicCertified = true
	second, err := f.processor.RecordCollection(f.ctx, req)
	require.NoError(t, err)

	updated, err := f.processor.GetLot(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.InDelta(t, 15.5, updated.CurrentQuantityKg, 1e-9)
	assert.Equal(t, models.LotStatusCollected, updated.Status)

	chain := f.chain(t, lot.ID)
	require.Len(t, chain, 2)
	assert.Equal(t, first.BlockchainTxID, chain[0].TransactionID)
	assert.Equal(t, second.BlockchainTxID, chain[1].TransactionID)
	assert.Nil(t, chain[0].PreviousTransactionID)
	require.NotNil(t, chain[1].PreviousTransactionID)
	assert.Equal(t, chain[0].TransactionID, *chain[1].PreviousTransactionID)
	assert.Equal(t, []string{"collector-7"}, chain[0].Participants)
	assert.Equal(t, first.ID, chain[0].EventID)
	assert.Equal(t, lot.ID, chain[0].Payload["lot_id"])
	assert.True(t, ledger.VerifyEntries(chain).Valid)

	meta := first.FHIRMetadata
	assert.Equal(t, "Substance", meta.ResourceType)
	assert.True(t, strings.HasPrefix(meta.ID, "substance-"))
	assert.Equal(t, []models.FHIRIdentifier{{System: "urn:ayurveda:lot", Value: lot.ID}}, meta.Identifier)
	require.Len(t, meta.Extension, 2)
	assert.Equal(t, "wild-harvested", meta.Extension[0].ValueString)
	assert.Equal(t, "no", meta.Extension[1].ValueString)
	assert.Equal(t, "cultivated", second.FHIRMetadata.Extension[0].ValueString)
	assert.Equal(t, "yes", second.FHIRMetadata.Extension[1].ValueString)

	events, err := f.processor.ListCollectionEvents(f.ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.BlockchainTxID, events[0].BlockchainTxID)

	stats := f.processor.GetStats()
	assert.Equal(t, uint64(2), stats.TotalEventsProcessed)
	assert.Equal(t, uint64(2), stats.EventsByType[string(models.EventTypeCollection)])
}

func TestRecordProcessing(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t)

	event, err := f.processor.RecordProcessing(f.ctx, &ProcessingRequest{
		LotID:            lot.ID,
		ProcessorID:      "mill-2",
		ProcessType:      "drying",
		ProcessDate:      f.day,
		Parameters:       map[string]interface{}{"temperature_c": 45},
		InputQuantityKg:  15,
		OutputQuantityKg: 6,
		YieldPercentage:  40,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.BlockchainTxID)

	meta := event.FHIRMetadata
	assert.Equal(t, "Procedure", meta.ResourceType)
	assert.Equal(t, "completed", meta.Status)
	assert.Equal(t, lot.ID+"-drying", meta.Identifier[0].Value)
	require.NotNil(t, meta.Code)
	assert.Equal(t, models.FHIRCoding{System: fhirProcessingSystem, Code: "drying", Display: "DRYING"}, meta.Code.Coding[0])

	updated, err := f.processor.GetLot(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusProcessing, updated.Status)
}

func TestRecordQualityTestApprovesLot(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t)

	test, err := f.processor.RecordQualityTest(f.ctx, f.leadTest(lot.ID, 4.2))
	require.NoError(t, err)

	assert.Equal(t, models.TestStatusPass, test.OverallStatus)
	require.Contains(t, test.Parameters, "lead")
	assert.Equal(t, models.ParameterStatusPass, test.Parameters["lead"].Status)
	require.NotNil(t, test.Parameters["lead"].Threshold)
	assert.Equal(t, 10.0, *test.Parameters["lead"].Threshold.MaxValue)
	assert.Equal(t, "final", test.FHIRMetadata.Status)
	assert.Equal(t, "All parameters within acceptable limits", test.FHIRMetadata.Conclusion)

	updated, err := f.processor.GetLot(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusApproved, updated.Status)
	assert.Empty(t, f.notifier.alerts)

	qt := f.manager.GetPrometheusMetrics().QualityTestsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(qt.WithLabelValues("heavy-metals", "pass")))
}

func TestRecordQualityTestRejectsLotAndAlerts(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t)

	test, err := f.processor.RecordQualityTest(f.ctx, f.leadTest(lot.ID, "12.5"))
	require.NoError(t, err)

	assert.Equal(t, models.TestStatusFail, test.OverallStatus)
	assert.Equal(t, "amended", test.FHIRMetadata.Status)
	assert.Equal(t, "Some parameters out of range", test.FHIRMetadata.Conclusion)

	updated, err := f.processor.GetLot(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusRejected, updated.Status)

	require.Len(t, f.notifier.alerts, 1)
	alert := f.notifier.alerts[0]
	assert.Equal(t, notification.AlertQualityTestFailed, alert.Type)
	assert.Equal(t, lot.ID, alert.LotID)
	assert.Equal(t, []string{"lead"}, alert.Data["failed_parameters"])
	assert.Equal(t, test.BlockchainTxID, alert.Data["blockchain_tx_id"])
	assert.Equal(t, uint64(1), f.processor.GetStats().TotalNotificationsSent)

	qt := f.manager.GetPrometheusMetrics().QualityTestsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(qt.WithLabelValues("heavy-metals", "fail")))
}

func TestFailedQualityTestDoesNotWaitForWebhook(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer webhook.Close()
	defer close(release)

	f := newFixture(t)
	manager := notification.NewNotificationManager(&notification.NotificationManagerConfig{
		Enabled:       true,
		WebhookURL:    webhook.URL,
		Timeout:       300 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    100 * time.Millisecond,
	}, f.manager)
	require.NoError(t, manager.Start(f.ctx))
	defer manager.Stop()

	processor := NewEventProcessor(f.store, f.engine, f.processor.evaluator, manager, f.manager, nil)
	lot := f.lot(t)

	start := time.Now()
	test, err := processor.RecordQualityTest(f.ctx, f.leadTest(lot.ID, 12.5))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFail, test.OverallStatus)
	assert.NotEmpty(t, test.BlockchainTxID)
	assert.Less(t, elapsed, 250*time.Millisecond, "Recording must not wait on alert delivery")
	assert.Equal(t, uint64(1), processor.GetStats().TotalNotificationsSent)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, 2*time.Second, 10*time.Millisecond,
		"The alert is still delivered in the background")
}

func TestRejectedEventsWriteNothing(t *testing.T) {
	tests := []struct {
		name   string
		record func(f *fixture, lotID string) error
		check  func(err error) bool
	}{
		{
			name: "InvalidCollection",
			record: func(f *fixture, lotID string) error {
				_, err := f.processor.RecordCollection(f.ctx, f.collection(lotID, 0))
				return err
			},
			check: utils.IsValidation,
		},
		{
			name: "UnknownLot",
			record: func(f *fixture, _ string) error {
				_, err := f.processor.RecordCollection(f.ctx, f.collection("lot_missing", 3))
				return err
			},
			check: utils.IsNotFound,
		},
		{
			name: "NonNumericMeasurement",
			record: func(f *fixture, lotID string) error {
				_, err := f.processor.RecordQualityTest(f.ctx, f.leadTest(lotID, "trace"))
				return err
			},
			check: utils.IsValidation,
		},
		{
			name: "PackExpiresBeforeManufacture",
			record: func(f *fixture, lotID string) error {
				_, err := f.processor.MintPack(f.ctx, &PackRequest{
					LotID: lotID, ManufacturerID: "m-1", SKU: "ASH-60", ProductName: "Ashwagandha tablets",
					BatchNumber: "B-1", ManufactureDate: f.day, ExpiryDate: f.day.AddDate(0, 0, -1),
				})
				return err
			},
			check: utils.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			lot := f.lot(t)

			err := tt.record(f, lot.ID)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)

			assert.Empty(t, f.chain(t, lot.ID))
			collections, err := f.store.ListCollectionEvents(f.ctx, "")
			require.NoError(t, err)
			assert.Empty(t, collections)
			qualityTests, err := f.store.ListQualityTests(f.ctx, "")
			require.NoError(t, err)
			assert.Empty(t, qualityTests)

			unchanged, err := f.processor.GetLot(f.ctx, lot.ID)
			require.NoError(t, err)
			assert.Equal(t, models.LotStatusCollected, unchanged.Status)
			assert.Zero(t, unchanged.CurrentQuantityKg)

			assert.Equal(t, uint64(1), f.processor.GetStats().ErrorCount)
		})
	}
}

func TestMintPack(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t)

	pack, err := f.processor.MintPack(f.ctx, &PackRequest{
		LotID:           lot.ID,
		ManufacturerID:  "m-1",
		SKU:             "ASH-60",
		ProductName:     "Ashwagandha tablets",
		BatchNumber:     "B-2024-03",
		ManufactureDate: f.day,
		ExpiryDate:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		NetWeight:       "60 tablets",
		Ingredients:     []models.Ingredient{{Name: "Ashwagandha root extract", Percentage: 100, LotID: lot.ID}},
		GMPCertified:    true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(pack.ID, "PACK-"))
	assert.NotEmpty(t, pack.BlockchainTxID)

	meta := pack.FHIRMetadata
	assert.Equal(t, "Medication", meta.ResourceType)
	assert.Equal(t, []models.FHIRIdentifier{
		{System: "urn:ayurveda:pack", Value: pack.ID},
		{System: "urn:ayush:license", Value: "N/A"},
	}, meta.Identifier)
	require.NotNil(t, meta.Batch)
	assert.Equal(t, models.FHIRBatch{LotNumber: "B-2024-03", ExpirationDate: "2026-03-31"}, *meta.Batch)
	assert.Equal(t, "Ashwagandha tablets", meta.Code.Coding[0].Display)

	stored, err := f.processor.GetPack(f.ctx, pack.ID)
	require.NoError(t, err)
	assert.Equal(t, pack.BlockchainTxID, stored.BlockchainTxID)

	packs, err := f.processor.ListPacks(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.Len(t, packs, 1)

	updated, err := f.processor.GetLot(f.ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusPacked, updated.Status)

	chain := f.chain(t, lot.ID)
	require.Len(t, chain, 1)
	assert.Equal(t, models.EventTypePack, chain[0].EventType)
	assert.Equal(t, pack.ID, chain[0].EventID)
}

func TestUpdateLotStatus(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t)

	updated, err := f.processor.UpdateLotStatus(f.ctx, lot.ID, models.LotStatusTested)
	require.NoError(t, err)
	assert.Equal(t, models.LotStatusTested, updated.Status)

	_, err = f.processor.UpdateLotStatus(f.ctx, lot.ID, models.LotStatus("shipped"))
	assert.True(t, utils.IsValidation(err))

	_, err = f.processor.UpdateLotStatus(f.ctx, "lot_missing", models.LotStatusPacked)
	assert.True(t, utils.IsNotFound(err))
}

func TestLifecycleAndHealth(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.processor.IsRunning())
	assert.False(t, f.processor.GetHealth(f.ctx).Healthy)

	require.NoError(t, f.processor.Start(f.ctx))
	assert.Error(t, f.processor.Start(f.ctx))
	assert.True(t, f.processor.IsRunning())

	health := f.processor.GetHealth(f.ctx)
	assert.True(t, health.Healthy)
	assert.True(t, health.StorageHealthy)
	assert.Empty(t, health.Issues)

	require.NoError(t, f.processor.Stop())
	require.NoError(t, f.processor.Stop())
	assert.False(t, f.processor.GetStats().IsRunning)
}
