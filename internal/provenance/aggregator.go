package provenance

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/ledger"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/notification"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// Aggregator composes a pack's full history into a provenance trace
type Aggregator struct {
	store    storage.Storage
	engine   *ledger.Engine
	notifier notification.Notifier
	metrics  *metrics.Manager
	logger   *logrus.Entry
	now      func() time.Time
}

// Option customizes an Aggregator
type Option func(*Aggregator)

// WithNotifier raises an alert when a traced chain fails verification
func WithNotifier(notifier notification.Notifier) Option {
	return func(a *Aggregator) { a.notifier = notifier }
}

// WithMetrics counts traces by overall status
func WithMetrics(manager *metrics.Manager) Option {
	return func(a *Aggregator) { a.metrics = manager }
}

// NewAggregator creates an aggregator reading records from store and chains
// through engine
func NewAggregator(store storage.Storage, engine *ledger.Engine, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		engine: engine,
		logger: utils.ComponentLogger("provenance"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Trace resolves the pack and its lot, gathers every event and the lot's
// ledger chain, verifies that chain and derives the compliance status.
// A missing pack or lot is NotFound; a broken chain is reported in the trace.
func (a *Aggregator) Trace(ctx context.Context, packID string) (*models.ProvenanceTrace, error) {
	pack, err := a.store.GetPack(ctx, packID)
	if err != nil {
		return nil, err
	}
	lot, err := a.store.GetLot(ctx, pack.LotID)
	if err != nil {
		return nil, err
	}

	collections, err := a.store.ListCollectionEvents(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	processing, err := a.store.ListProcessingEvents(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	tests, err := a.store.ListQualityTests(ctx, lot.ID)
	if err != nil {
		return nil, err
	}

	chain, err := a.engine.ChainFor(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	// Verify the same snapshot the trace returns
	verification := ledger.VerifyEntries(chain)
	verification.LotID = lot.ID

	trace := &models.ProvenanceTrace{
		Pack:               *pack,
		Lot:                *lot,
		CollectionEvents:   derefAll(collections),
		ProcessingEvents:   derefAll(processing),
		QualityTests:       derefAll(tests),
		LedgerEntries:      derefAll(chain),
		LedgerVerification: *verification,
		ComplianceStatus:   Assess(len(collections), tests, verification, pack.GMPCertified),
		GeneratedAt:        a.now().UTC(),
	}

	a.logger.WithFields(logrus.Fields{
		"pack_id":        pack.ID,
		"lot_id":         lot.ID,
		"overall_status": trace.ComplianceStatus.Overall,
		"ledger_entries": len(chain),
	}).Info("Provenance trace generated")

	if a.metrics != nil {
		a.metrics.GetPrometheusMetrics().RecordProvenanceTrace(string(trace.ComplianceStatus.Overall))
	}
	if !verification.Valid {
		a.alertIntegrity(ctx, pack.ID, verification)
	}

	return trace, nil
}

func (a *Aggregator) alertIntegrity(ctx context.Context, packID string, verification *models.VerificationResult) {
	if a.notifier == nil {
		return
	}
	err := a.notifier.Notify(ctx, &notification.Alert{
		Type:     notification.AlertIntegrityViolation,
		Severity: notification.SeverityCritical,
		LotID:    verification.LotID,
		Subject:  "Ledger integrity violation",
		Message:  verification.Message,
		Data: map[string]interface{}{
			"pack_id":   packID,
			"broken_at": verification.BrokenAt,
		},
	})
	if err != nil {
		a.logger.WithError(err).WithField("lot_id", verification.LotID).Warn("Failed to send integrity alert")
	}
}

// Assess derives the checkpoints of a trace and folds them into an overall
// status with precedence fail > pending > compliant. The GMP checkpoint is
// informational and does not take part in the fold.
func Assess(collectionCount int, tests []*models.QualityTestEvent, verification *models.VerificationResult, gmpCertified bool) models.ComplianceStatus {
	status := models.ComplianceStatus{Overall: models.OverallCompliant}

	add := func(cp models.Checkpoint, folded bool) {
		status.Checkpoints = append(status.Checkpoints, cp)
		if folded {
			status.Overall = fold(status.Overall, cp.Status)
		}
	}

	if collectionCount == 0 {
		add(models.Checkpoint{Name: models.CheckpointCollection, Status: models.CheckpointFail,
			Details: "No collection events found"}, true)
	} else {
		add(models.Checkpoint{Name: models.CheckpointCollection, Status: models.CheckpointPass,
			Details: fmt.Sprintf("%d collection event(s) recorded", collectionCount)}, true)
	}

	failed := 0
	for _, t := range tests {
		if t.OverallStatus == models.TestStatusFail {
			failed++
		}
	}
	switch {
	case len(tests) == 0:
		add(models.Checkpoint{Name: models.CheckpointQualityTesting, Status: models.CheckpointPending,
			Details: "No quality tests performed"}, true)
	case failed > 0:
		add(models.Checkpoint{Name: models.CheckpointQualityTesting, Status: models.CheckpointFail,
			Details: fmt.Sprintf("%d test(s) failed", failed)}, true)
	default:
		add(models.Checkpoint{Name: models.CheckpointQualityTesting, Status: models.CheckpointPass,
			Details: fmt.Sprintf("All %d test(s) passed", len(tests))}, true)
	}

	if !verification.Valid {
		add(models.Checkpoint{Name: models.CheckpointLedgerIntegrity, Status: models.CheckpointFail,
			Details: verification.Message}, true)
	} else {
		add(models.Checkpoint{Name: models.CheckpointLedgerIntegrity, Status: models.CheckpointPass,
			Details: "Ledger chain verified"}, true)
	}

	if gmpCertified {
		add(models.Checkpoint{Name: models.CheckpointGMP, Status: models.CheckpointPass,
			Details: "GMP certified manufacturing"}, false)
	} else {
		add(models.Checkpoint{Name: models.CheckpointGMP, Status: models.CheckpointPending,
			Details: "GMP certification not found"}, false)
	}

	return status
}

// fold applies one checkpoint to the running overall status. Non-compliant is
// sticky and outranks pending.
func fold(overall models.OverallStatus, checkpoint models.CheckpointStatus) models.OverallStatus {
	switch checkpoint {
	case models.CheckpointFail:
		return models.OverallNonCompliant
	case models.CheckpointPending:
		if overall != models.OverallNonCompliant {
			return models.OverallPending
		}
	}
	return overall
}

func derefAll[T any](items []*T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = *item
	}
	return out
}
