package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// Verification messages
const (
	MessageNoEntries = "No ledger entries found"
	MessageVerified  = "Ledger chain verified successfully"
)

// Verifier replays a lot's chain and checks every hash and link. A broken
// chain is reported in the result, never as an error.
type Verifier struct {
	engine  *Engine
	metrics *metrics.Manager
	logger  *logrus.Entry
}

// NewVerifier creates a verifier reading chains through engine
func NewVerifier(engine *Engine, manager *metrics.Manager) *Verifier {
	return &Verifier{
		engine:  engine,
		metrics: manager,
		logger:  utils.ComponentLogger("verifier"),
	}
}

// Verify loads and checks the lot's chain. Only storage failures are errors.
func (v *Verifier) Verify(ctx context.Context, lotID string) (*models.VerificationResult, error) {
	entries, err := v.engine.ChainFor(ctx, lotID)
	if err != nil {
		return nil, err
	}

	result := VerifyEntries(entries)
	result.LotID = lotID
	v.observe(result)
	return result, nil
}

func (v *Verifier) observe(result *models.VerificationResult) {
	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
		v.logger.WithFields(logrus.Fields{
			"lot_id":    result.LotID,
			"broken_at": result.BrokenAt,
		}).Warn(result.Message)
	}
	if v.metrics != nil {
		v.metrics.GetPrometheusMetrics().RecordChainVerification(outcome)
	}
}

// VerifyEntries checks an already fetched chain. The slice is sorted in
// place by (timestamp, sequence, transaction id); checking stops at the first
// broken entry.
func VerifyEntries(entries []*models.LedgerEntry) *models.VerificationResult {
	result := &models.VerificationResult{}
	if len(entries) == 0 {
		result.Valid = true
		result.Message = MessageNoEntries
		return result
	}

	result.LotID = entries[0].LotID
	SortEntries(entries)

	for i, entry := range entries {
		result.EntriesChecked = i + 1

		hash, err := HashEntry(entry)
		if err != nil || hash != entry.ContentHash {
			return broken(result, fmt.Sprintf("Hash mismatch at entry %s", entry.TransactionID), entry)
		}

		if i == 0 {
			if entry.PreviousTransactionID != nil {
				return broken(result, fmt.Sprintf("Chain break at entry %s", entry.TransactionID), entry)
			}
			continue
		}

		previous := entries[i-1].TransactionID
		if entry.PreviousTransactionID == nil || *entry.PreviousTransactionID != previous {
			return broken(result, fmt.Sprintf("Chain break at entry %s", entry.TransactionID), entry)
		}
	}

	result.Valid = true
	result.Message = MessageVerified
	return result
}

func broken(result *models.VerificationResult, message string, entry *models.LedgerEntry) *models.VerificationResult {
	result.Valid = false
	result.Message = message
	result.BrokenAt = entry.TransactionID
	return result
}
