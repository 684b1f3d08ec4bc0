// File: cmd/ayutrace/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/ayutrace/internal/compliance"
	"github.com/smartdevs17/ayutrace/internal/config"
	"github.com/smartdevs17/ayutrace/internal/ledger"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/notification"
	"github.com/smartdevs17/ayutrace/internal/processor"
	"github.com/smartdevs17/ayutrace/internal/provenance"
	"github.com/smartdevs17/ayutrace/internal/server"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config       *config.Config
	logger       *logrus.Logger
	metrics      *metrics.Manager
	storage      storage.Storage
	anchor       ledger.Anchor
	engine       *ledger.Engine
	verifier     *ledger.Verifier
	thresholds   *compliance.ThresholdStore
	reporter     *compliance.Reporter
	notification *notification.NotificationManager
	processor    *processor.EventProcessor
	aggregator   *provenance.Aggregator
	server       *server.HTTPServer
	seeded       int
	startTime    time.Time
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:    cfg,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	// Initialize logger
	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize components
	if err := app.initializeComponents(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Debug("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Debug("Initializing application components")

	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initializeLedger(); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	if err := app.initializeCompliance(); err != nil {
		return fmt.Errorf("failed to initialize compliance: %w", err)
	}

	if err := app.initializeNotification(); err != nil {
		return fmt.Errorf("failed to initialize notification: %w", err)
	}

	if err := app.initializeProcessor(); err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	app.aggregator = provenance.NewAggregator(app.storage, app.engine,
		provenance.WithNotifier(app.notification),
		provenance.WithMetrics(app.metrics))

	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	app.logger.Debug("All components initialized successfully")
	return nil
}

// initializeStorage initializes the storage layer
func (app *Application) initializeStorage() error {
	store, err := storage.NewStorage(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	app.storage = storage.NewStorageWithMetrics(store, app.metrics)

	app.logger.WithField("type", app.config.Storage.Type).Info("Storage layer initialized")
	return nil
}

// initializeLedger builds the append engine and its optional anchor
func (app *Application) initializeLedger() error {
	anchorCfg := app.config.Anchor

	switch anchorCfg.Type {
	case "kafka":
		anchor, err := ledger.NewKafkaAnchor(ledger.KafkaAnchorConfig{
			Brokers:      anchorCfg.Brokers,
			Topic:        anchorCfg.Topic,
			WriteTimeout: anchorCfg.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create kafka anchor: %w", err)
		}
		app.anchor = anchor
	default:
		app.anchor = ledger.NoopAnchor{}
	}

	app.engine = ledger.NewEngine(app.storage,
		ledger.WithAnchor(app.anchor),
		ledger.WithStorageTimeout(app.config.Ledger.StorageTimeout),
		ledger.WithMetrics(app.metrics))
	app.verifier = ledger.NewVerifier(app.engine, app.metrics)

	app.logger.WithField("anchor", app.anchor.Name()).Info("Ledger engine initialized")
	return nil
}

// initializeCompliance builds the threshold store and seeds missing thresholds
func (app *Application) initializeCompliance() error {
	compCfg := app.config.Compliance

	var err error
	app.thresholds, err = compliance.NewThresholdStore(app.storage, compCfg.ThresholdCacheSize, app.metrics)
	if err != nil {
		return err
	}
	app.reporter = compliance.NewReporter(app.storage, compCfg.RecommendedTests)

	app.seeded, err = app.seedThresholds()
	if err != nil {
		return err
	}
	app.logger.WithField("seeded", app.seeded).Info("Compliance thresholds ready")
	return nil
}

// seedThresholds inserts the configured or built-in thresholds that are not stored yet
func (app *Application) seedThresholds() (int, error) {
	thresholds := compliance.DefaultThresholds()
	if path := app.config.Compliance.ThresholdsFile; path != "" {
		loaded, err := compliance.LoadThresholdsFile(path)
		if err != nil {
			return 0, err
		}
		thresholds = loaded
	}
	return compliance.Seed(app.ctx, app.thresholds, thresholds)
}

// initializeNotification initializes the notification manager
func (app *Application) initializeNotification() error {
	notifCfg := app.config.Notifications

	app.notification = notification.NewNotificationManager(&notification.NotificationManagerConfig{
		Enabled:       notifCfg.Enabled,
		WebhookURL:    notifCfg.WebhookURL,
		Timeout:       notifCfg.Timeout,
		RetryAttempts: notifCfg.RetryAttempts,
		RetryDelay:    notifCfg.RetryDelay,
		QueueSize:     notifCfg.QueueSize,
	}, app.metrics)

	if err := app.notification.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start notification manager: %w", err)
	}
	return nil
}

// initializeProcessor initializes the event processor
func (app *Application) initializeProcessor() error {
	app.processor = processor.NewEventProcessor(
		app.storage,
		app.engine,
		compliance.NewEvaluator(app.thresholds),
		app.notification,
		app.metrics,
		processor.DefaultProcessorConfig(),
	)

	if err := app.processor.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start event processor: %w", err)
	}
	return nil
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() error {
	serverCfg := &server.ServerConfig{
		Port:          app.config.Server.Port,
		Host:          app.config.Server.Host,
		ReadTimeout:   app.config.Server.ReadTimeout,
		WriteTimeout:  app.config.Server.WriteTimeout,
		EnableMetrics: app.config.Server.EnableMetrics,
		EnableHealth:  app.config.Server.EnableHealth,
		Version:       AppVersion,
	}

	var err error
	app.server, err = server.NewHTTPServer(serverCfg, server.Dependencies{
		Storage:      app.storage,
		Processor:    app.processor,
		Engine:       app.engine,
		Verifier:     app.verifier,
		Aggregator:   app.aggregator,
		Thresholds:   app.thresholds,
		Reporter:     app.reporter,
		Notification: app.notification,
		Metrics:      app.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"version":        AppVersion,
		"environment":    app.config.App.Environment,
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"storage":        app.config.Storage.Type,
		"anchor":         app.anchor.Name(),
	}).Info("AyuTrace started")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.cancel()

	// Stop components in reverse order
	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.processor != nil {
		if err := app.processor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop event processor")
		}
	}

	if app.notification != nil {
		if err := app.notification.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop notification manager")
		}
	}

	if app.anchor != nil {
		if err := app.anchor.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close ledger anchor")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Debug("AyuTrace stopped")
	return nil
}

// GetStats returns application statistics
func (app *Application) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"version":   AppVersion,
		"uptime":    time.Since(app.startTime).String(),
		"timestamp": time.Now(),
	}

	if app.storage != nil {
		if storageStats, err := app.storage.GetStorageStats(app.ctx); err == nil {
			stats["storage"] = storageStats
		}
	}
	if app.processor != nil {
		stats["processor"] = app.processor.GetStats()
	}
	if app.notification != nil {
		stats["notification"] = app.notification.GetStats()
	}

	return stats
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
