package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name   string
	err    error
	mu     sync.Mutex
	alerts []*Alert
}

func (r *recordingNotifier) Notify(_ context.Context, alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// blockingNotifier holds every delivery until release is closed or the
// delivery context ends
type blockingNotifier struct {
	release   chan struct{}
	delivered chan string
}

func (b *blockingNotifier) Notify(ctx context.Context, alert *Alert) error {
	select {
	case <-b.release:
	default:
		select {
		case <-b.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.delivered <- alert.ID
	return nil
}

func (b *blockingNotifier) Name() string { return "blocking" }

func (r *recordingNotifier) Name() string { return r.name }

func failedTestAlert() *Alert {
	return &Alert{
		Type:     AlertQualityTestFailed,
		Severity: SeverityWarning,
		LotID:    "lot-1",
		Subject:  "Quality test failed",
		Message:  "heavy-metals test failed for lot lot-1",
		Data:     map[string]interface{}{"test_type": "heavy-metals"},
	}
}

func TestNotificationManagerFansOut(t *testing.T) {
	ctx := context.Background()
	manager := metrics.NewManager()
	nm := NewNotificationManager(&NotificationManagerConfig{Enabled: true}, manager)

	ok := &recordingNotifier{name: "ok"}
	broken := &recordingNotifier{name: "broken", err: errors.New("unreachable")}
	nm.AddChannel(broken)
	nm.AddChannel(ok)

	// Not started: delivery happens inline and errors come back
	alert := failedTestAlert()
	err := nm.Notify(ctx, alert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")

	assert.Equal(t, 1, ok.count(), "A failing channel does not block the others")
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.Timestamp.IsZero())

	stats := nm.GetStats()
	assert.Equal(t, uint64(1), stats.TotalAlerts)
	assert.Equal(t, uint64(1), stats.TotalFailed)
	assert.Equal(t, []string{"log", "broken", "ok"}, stats.Channels)

	pm := manager.GetPrometheusMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.NotificationsSentTotal.WithLabelValues("ok", AlertQualityTestFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.NotificationFailuresTotal.WithLabelValues("broken", AlertQualityTestFailed)))
}

func TestNotificationManagerQueuesWhileRunning(t *testing.T) {
	ctx := context.Background()
	nm := NewNotificationManager(&NotificationManagerConfig{Enabled: true}, nil)
	slow := &blockingNotifier{release: make(chan struct{}), delivered: make(chan string, 2)}
	nm.AddChannel(slow)

	require.NoError(t, nm.Start(ctx))
	assert.True(t, nm.IsHealthy())
	assert.Error(t, nm.Start(ctx), "Starting twice is an error")

	first, second := failedTestAlert(), failedTestAlert()
	start := time.Now()
	require.NoError(t, nm.Notify(ctx, first))
	require.NoError(t, nm.Notify(ctx, second))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "Notify must not wait for a stalled channel")

	close(slow.release)
	assert.Equal(t, first.ID, <-slow.delivered)
	assert.Equal(t, second.ID, <-slow.delivered)

	require.NoError(t, nm.Stop())
	assert.False(t, nm.IsHealthy())
	stats := nm.GetStats()
	assert.Equal(t, uint64(2), stats.TotalAlerts)
	assert.Zero(t, stats.TotalFailed)
	assert.Zero(t, stats.QueueLength)
}

func TestNotificationManagerDropsWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	nm := NewNotificationManager(&NotificationManagerConfig{Enabled: true, QueueSize: 1}, nil)
	slow := &blockingNotifier{release: make(chan struct{}), delivered: make(chan string, 3)}
	nm.AddChannel(slow)
	require.NoError(t, nm.Start(ctx))

	// The worker takes the first alert and stalls on it, the second fills the queue
	require.NoError(t, nm.Notify(ctx, failedTestAlert()))
	require.Eventually(t, func() bool { return nm.GetStats().QueueLength == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, nm.Notify(ctx, failedTestAlert()))

	err := nm.Notify(ctx, failedTestAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Notification queue full")
	assert.Equal(t, uint64(1), nm.GetStats().TotalDropped)

	close(slow.release)
	require.NoError(t, nm.Stop())
	assert.Len(t, slow.delivered, 2, "Queued alerts are flushed on stop")
}

func TestNotificationManagerStopCancelsStalledDelivery(t *testing.T) {
	nm := NewNotificationManager(&NotificationManagerConfig{Enabled: true, Timeout: 50 * time.Millisecond}, nil)
	slow := &blockingNotifier{release: make(chan struct{}), delivered: make(chan string, 1)}
	nm.AddChannel(slow)
	require.NoError(t, nm.Start(context.Background()))

	require.NoError(t, nm.Notify(context.Background(), failedTestAlert()))

	done := make(chan struct{})
	go func() {
		assert.NoError(t, nm.Stop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a delivery was stalled")
	}
	assert.Empty(t, slow.delivered)
	assert.Equal(t, uint64(1), nm.GetStats().TotalFailed)
}

func TestNotificationManagerDisabled(t *testing.T) {
	nm := NewNotificationManager(&NotificationManagerConfig{Enabled: false}, nil)
	channel := &recordingNotifier{name: "ok"}
	nm.AddChannel(channel)

	require.NoError(t, nm.Notify(context.Background(), failedTestAlert()))
	assert.Zero(t, channel.count())
}

func TestWebhookSender(t *testing.T) {
	var calls int32
	payloads := make(chan WebhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload WebhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payloads <- payload
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(&NotificationManagerConfig{
		WebhookURL:    server.URL,
		Timeout:       time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	require.NoError(t, sender.Notify(context.Background(), failedTestAlert()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "First failure is retried")

	received := <-payloads
	assert.Equal(t, AlertQualityTestFailed, received.Event)
	assert.Equal(t, "ayutrace", received.Source)
	require.NotNil(t, received.Alert)
	assert.Equal(t, "lot-1", received.Alert.LotID)
}

func TestWebhookSenderGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sender := NewWebhookSender(&NotificationManagerConfig{
		WebhookURL:    server.URL,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})

	err := sender.Notify(context.Background(), failedTestAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebhookRetryDelay(t *testing.T) {
	sender := NewWebhookSender(&NotificationManagerConfig{WebhookURL: "http://example.invalid", RetryDelay: time.Second})

	assert.Equal(t, time.Second, sender.retryDelay(2))
	assert.Equal(t, 2*time.Second, sender.retryDelay(3))
	assert.Equal(t, 4*time.Second, sender.retryDelay(4))
	assert.Equal(t, 30*time.Second, sender.retryDelay(10), "Delay is capped")
}
