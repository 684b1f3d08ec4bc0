// File: internal/notification/logger.go
package notification

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes alerts to the application log. It never fails.
type LogNotifier struct {
	logger *logrus.Entry
}

// NewLogNotifier creates a log channel writing through logger
func NewLogNotifier(logger *logrus.Entry) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert at warn, or error for critical alerts
func (n *LogNotifier) Notify(_ context.Context, alert *Alert) error {
	entry := n.logger.WithFields(logrus.Fields{
		"alert_id":   alert.ID,
		"alert_type": alert.Type,
		"lot_id":     alert.LotID,
		"severity":   alert.Severity,
	})
	for k, v := range alert.Data {
		entry = entry.WithField(k, v)
	}

	if alert.Severity == SeverityCritical {
		entry.Error(alert.Subject + ": " + alert.Message)
	} else {
		entry.Warn(alert.Subject + ": " + alert.Message)
	}
	return nil
}

// Name returns "log"
func (n *LogNotifier) Name() string { return "log" }
