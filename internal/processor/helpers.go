// File: internal/processor/helpers.go
package processor

import (
	"context"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
)

// succeed counts a processed event of type eventType
func (ep *EventProcessor) succeed(eventType models.EventType, start time.Time) {
	ep.updateStats(eventType, time.Since(start), nil)
}

// fail counts a failed event and hands err back to the caller
func (ep *EventProcessor) fail(eventType models.EventType, err error) error {
	ep.updateStats(eventType, 0, err)
	return err
}

// updateStats updates processor statistics
func (ep *EventProcessor) updateStats(eventType models.EventType, processingTime time.Duration, err error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err != nil {
		ep.stats.ErrorCount++
		errorStr := err.Error()
		ep.stats.LastError = &errorStr
		now := time.Now()
		ep.stats.LastErrorTime = &now
		return
	}

	ep.stats.TotalEventsProcessed++
	ep.stats.EventsByType[string(eventType)]++

	// Calculate processing rate
	if elapsed := time.Since(ep.stats.StartTime).Seconds(); elapsed > 0 {
		ep.stats.ProcessingRate = float64(ep.stats.TotalEventsProcessed) / elapsed
	}

	// Update average processing time
	if ep.stats.TotalEventsProcessed == 1 {
		ep.stats.AverageProcessingTime = processingTime
	} else {
		ep.stats.AverageProcessingTime = (ep.stats.AverageProcessingTime + processingTime) / 2
	}
}

// GetStats returns a snapshot of processor statistics
func (ep *EventProcessor) GetStats() *ProcessorStats {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	stats := *ep.stats
	stats.Uptime = time.Since(ep.stats.StartTime)
	stats.IsRunning = ep.running
	stats.EventsByType = make(map[string]uint64, len(ep.stats.EventsByType))
	for k, v := range ep.stats.EventsByType {
		stats.EventsByType[k] = v
	}
	return &stats
}

// GetHealth returns processor health information
func (ep *EventProcessor) GetHealth(ctx context.Context) *ProcessorHealth {
	health := &ProcessorHealth{Healthy: true, StorageHealthy: true}

	if err := ep.storage.Ping(); err != nil {
		health.Healthy = false
		health.StorageHealthy = false
		health.Issues = append(health.Issues, "storage unreachable: "+err.Error())
	}

	if !ep.IsRunning() {
		health.Healthy = false
		health.Issues = append(health.Issues, "processor not running")
	}

	if ep.metrics != nil {
		ep.metrics.UpdateComponentHealth("processor", health.Healthy)
	}
	return health
}
