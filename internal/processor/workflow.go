// File: internal/processor/workflow.go
package processor

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// eventWorkflow is the write sequence every supply-chain event goes through:
// persist the record, append it to the lot's chain, then update the lot.
type eventWorkflow struct {
	eventType models.EventType
	eventID   string
	lotID     string
	actorID   string
	record    interface{}
	save      func(ctx context.Context) error
	lotUpdate models.LotUpdate
}

// runWorkflow executes wf and returns the ledger transaction id.
// The steps are not atomic: a failure after save leaves the record without
// a ledger entry, and a failure after the append leaves the lot untouched.
func (ep *EventProcessor) runWorkflow(ctx context.Context, wf *eventWorkflow) (string, error) {
	logger := ep.logger.WithFields(logrus.Fields{
		"event_type": wf.eventType,
		"event_id":   wf.eventID,
		"lot_id":     wf.lotID,
	})

	// Serialize first so a bad record writes nothing
	payload, err := models.ToPayload(wf.record)
	if err != nil {
		return "", utils.WrapAppError(utils.ErrCodeProcessing, "Failed to build ledger payload", err)
	}

	if err := wf.save(ctx); err != nil {
		return "", err
	}

	txID, err := ep.engine.Append(ctx, wf.eventType, wf.eventID, wf.lotID, payload, []string{wf.actorID})
	if err != nil {
		logger.WithError(err).Error("Record saved but ledger append failed")
		return "", err
	}

	if _, err := ep.storage.UpdateLot(ctx, wf.lotID, wf.lotUpdate); err != nil {
		logger.WithError(err).WithField("tx_id", txID).Error("Ledger entry written but lot update failed")
		return "", err
	}

	logger.WithField("tx_id", txID).Info("Supply-chain event recorded")
	return txID, nil
}
