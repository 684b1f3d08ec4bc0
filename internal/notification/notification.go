// File: internal/notification/notification.go
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// Alert types
const (
	AlertQualityTestFailed  = "quality_test_failed"
	AlertIntegrityViolation = "ledger_integrity_violation"
)

// Alert severities
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a compliance event worth telling a human about
type Alert struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	LotID     string                 `json:"lot_id"`
	Subject   string                 `json:"subject"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Notifier delivers alerts over one channel
type Notifier interface {
	Notify(ctx context.Context, alert *Alert) error
	Name() string
}

// NotificationManagerConfig holds notification manager configuration
type NotificationManagerConfig struct {
	Enabled       bool          `json:"enabled"`
	WebhookURL    string        `json:"webhook_url"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
	QueueSize     int           `json:"queue_size"`
}

// NotificationStats provides notification statistics
type NotificationStats struct {
	TotalAlerts   uint64     `json:"total_alerts"`
	TotalFailed   uint64     `json:"total_failed"`
	TotalDropped  uint64     `json:"total_dropped"`
	QueueLength   int        `json:"queue_length"`
	Channels      []string   `json:"channels"`
	LastError     *string    `json:"last_error,omitempty"`
	LastErrorTime *time.Time `json:"last_error_time,omitempty"`
}

// NotificationManager fans alerts out to every configured channel. It
// implements Notifier itself so callers depend on one interface. While
// running, alerts are queued and delivered by a background worker so a slow
// channel never holds up the caller.
type NotificationManager struct {
	config  *NotificationManagerConfig
	metrics *metrics.Manager
	logger  *logrus.Entry

	mu       sync.RWMutex
	running  bool
	channels []Notifier
	stats    NotificationStats

	queue    chan *Alert
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

const defaultQueueSize = 100

// NewNotificationManager creates a manager with the log channel and, when a
// webhook URL is configured, the webhook channel. With a metrics manager every
// channel records its sent and failed alerts.
func NewNotificationManager(config *NotificationManagerConfig, metricsManager *metrics.Manager) *NotificationManager {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	nm := &NotificationManager{
		config:  config,
		metrics: metricsManager,
		logger:  utils.ComponentLogger("notifications"),
		queue:   make(chan *Alert, queueSize),
	}

	nm.AddChannel(NewLogNotifier(nm.logger))
	if config.WebhookURL != "" {
		nm.AddChannel(NewWebhookSender(config))
	}
	return nm
}

// AddChannel registers another delivery channel
func (nm *NotificationManager) AddChannel(channel Notifier) {
	if nm.metrics != nil {
		channel = NewNotifierWithMetrics(channel, nm.metrics)
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.channels = append(nm.channels, channel)
}

// Start starts the notification manager
func (nm *NotificationManager) Start(ctx context.Context) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Notification manager already running")
	}
	nm.running = true
	nm.stopChan = make(chan struct{})

	// Deliveries outlive the request that raised them; Stop cancels them
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	nm.cancel = cancel

	nm.wg.Add(1)
	go nm.dispatchLoop(workerCtx, nm.stopChan)

	nm.logger.WithFields(logrus.Fields{
		"enabled":    nm.config.Enabled,
		"channels":   len(nm.channels),
		"queue_size": cap(nm.queue),
	}).Info("Notification manager started")
	return nil
}

// Stop stops the worker after it has drained the queue. Deliveries still
// running once the drain timeout passes are cancelled.
func (nm *NotificationManager) Stop() error {
	nm.mu.Lock()
	if !nm.running {
		nm.mu.Unlock()
		return nil
	}
	nm.running = false
	close(nm.stopChan)
	nm.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		nm.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(nm.drainTimeout()):
		nm.logger.WithField("pending", len(nm.queue)).Warn("Notification drain timed out, cancelling deliveries")
		nm.cancel()
		<-drained
	}
	nm.cancel()

	nm.logger.Info("Notification manager stopped")
	return nil
}

func (nm *NotificationManager) drainTimeout() time.Duration {
	if nm.config.Timeout > 0 {
		return nm.config.Timeout
	}
	return 5 * time.Second
}

// dispatchLoop delivers queued alerts until stop is closed, then flushes
// whatever is left in the queue.
func (nm *NotificationManager) dispatchLoop(ctx context.Context, stop <-chan struct{}) {
	defer nm.wg.Done()

	for {
		select {
		case alert := <-nm.queue:
			nm.deliver(ctx, alert)
		case <-stop:
			for {
				select {
				case alert := <-nm.queue:
					nm.deliver(ctx, alert)
				default:
					return
				}
			}
		}
	}
}

// IsHealthy reports whether the manager is running
func (nm *NotificationManager) IsHealthy() bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.running
}

// Name returns "manager"
func (nm *NotificationManager) Name() string { return "manager" }

// Notify queues the alert for the background worker and returns at once. A
// full queue drops the alert and reports it. When the manager is not running
// the alert is delivered inline.
func (nm *NotificationManager) Notify(ctx context.Context, alert *Alert) error {
	if !nm.config.Enabled {
		return nil
	}
	if alert.ID == "" {
		alert.ID = utils.GenerateID()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	nm.mu.RLock()
	running := nm.running
	if running {
		select {
		case nm.queue <- alert:
			nm.mu.RUnlock()
			return nil
		default:
		}
	}
	nm.mu.RUnlock()

	if running {
		err := utils.NewAppError(utils.ErrCodeInternal, "Notification queue full", alert.ID)
		nm.recordDrop(err)
		nm.logger.WithFields(logrus.Fields{
			"alert_id":   alert.ID,
			"alert_type": alert.Type,
			"lot_id":     alert.LotID,
		}).Warn("Dropping alert, notification queue is full")
		return err
	}
	return nm.deliver(ctx, alert)
}

// deliver sends the alert on every channel. A failing channel does not stop
// the others; all failures are returned joined.
func (nm *NotificationManager) deliver(ctx context.Context, alert *Alert) error {
	nm.mu.RLock()
	channels := make([]Notifier, len(nm.channels))
	copy(channels, nm.channels)
	nm.mu.RUnlock()

	var errs []error
	for _, channel := range channels {
		if err := channel.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		nm.logger.WithError(err).WithFields(logrus.Fields{
			"alert_id":   alert.ID,
			"alert_type": alert.Type,
		}).Warn("Alert delivery failed")
	}

	nm.updateStats(err)
	return err
}

func (nm *NotificationManager) recordDrop(err error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.stats.TotalDropped++
	msg := err.Error()
	now := time.Now()
	nm.stats.LastError = &msg
	nm.stats.LastErrorTime = &now
}

func (nm *NotificationManager) updateStats(err error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.stats.TotalAlerts++
	if err != nil {
		nm.stats.TotalFailed++
		msg := err.Error()
		now := time.Now()
		nm.stats.LastError = &msg
		nm.stats.LastErrorTime = &now
	}
}

// GetStats returns a copy of the notification statistics
func (nm *NotificationManager) GetStats() NotificationStats {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	stats := nm.stats
	stats.QueueLength = len(nm.queue)
	stats.Channels = make([]string, 0, len(nm.channels))
	for _, channel := range nm.channels {
		stats.Channels = append(stats.Channels, channel.Name())
	}
	return stats
}

var _ Notifier = (*NotificationManager)(nil)
