// File: internal/notification/notification_wrapper.go
package notification

import (
	"context"

	"github.com/smartdevs17/ayutrace/internal/metrics"
)

// NotifierWithMetrics wraps a Notifier and records sent and failed alerts
type NotifierWithMetrics struct {
	Notifier
	metricsManager *metrics.Manager
}

// NewNotifierWithMetrics creates a notifier wrapper with metrics
func NewNotifierWithMetrics(notifier Notifier, metricsManager *metrics.Manager) *NotifierWithMetrics {
	return &NotifierWithMetrics{
		Notifier:       notifier,
		metricsManager: metricsManager,
	}
}

// Notify sends the alert and records the outcome
func (n *NotifierWithMetrics) Notify(ctx context.Context, alert *Alert) error {
	err := n.Notifier.Notify(ctx, alert)

	prometheus := n.metricsManager.GetPrometheusMetrics()
	if err != nil {
		prometheus.RecordNotificationFailure(n.Notifier.Name(), alert.Type)
	} else {
		prometheus.RecordNotificationSent(n.Notifier.Name(), alert.Type)
	}
	return err
}
