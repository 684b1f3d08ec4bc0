// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/ayutrace/internal/compliance"
	"github.com/smartdevs17/ayutrace/internal/ledger"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/notification"
	"github.com/smartdevs17/ayutrace/internal/processor"
	"github.com/smartdevs17/ayutrace/internal/provenance"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int           `json:"port"`
	Host          string        `json:"host"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	EnableMetrics bool          `json:"enable_metrics"`
	EnableHealth  bool          `json:"enable_health"`
	Version       string        `json:"version"`
}

// Dependencies are the services the HTTP API exposes. Notification and
// Metrics may be nil.
type Dependencies struct {
	Storage      storage.Storage
	Processor    processor.Processor
	Engine       *ledger.Engine
	Verifier     *ledger.Verifier
	Aggregator   *provenance.Aggregator
	Thresholds   *compliance.ThresholdStore
	Reporter     *compliance.Reporter
	Notification *notification.NotificationManager
	Metrics      *metrics.Manager
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	storage        storage.Storage
	processor      processor.Processor
	engine         *ledger.Engine
	verifier       *ledger.Verifier
	aggregator     *provenance.Aggregator
	thresholds     *compliance.ThresholdStore
	reporter       *compliance.Reporter
	notification   *notification.NotificationManager
	metricsManager *metrics.Manager
	logger         *logrus.Entry

	stopOnce sync.Once
	done     chan struct{}
}

// envelope is the body of every API response
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(config *ServerConfig, deps Dependencies) (*HTTPServer, error) {
	if config == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Server config is required")
	}
	if deps.Storage == nil || deps.Processor == nil || deps.Engine == nil || deps.Verifier == nil ||
		deps.Aggregator == nil || deps.Thresholds == nil || deps.Reporter == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Server dependencies are incomplete")
	}

	server := &HTTPServer{
		config:         config,
		storage:        deps.Storage,
		processor:      deps.Processor,
		engine:         deps.Engine,
		verifier:       deps.Verifier,
		aggregator:     deps.Aggregator,
		thresholds:     deps.Thresholds,
		reporter:       deps.Reporter,
		notification:   deps.Notification,
		metricsManager: deps.Metrics,
		logger:         utils.ComponentLogger("server"),
		done:           make(chan struct{}),
	}

	// Setup router
	server.setupRouter()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server, nil
}

// Handler returns the routed handler, used by tests and embedders. CORS wraps
// the router so preflight requests are answered before route matching.
func (s *HTTPServer) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.loggingMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint
	if s.config.EnableHealth {
		s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	// Metrics endpoint
	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Lot endpoints
	api.HandleFunc("/lots", s.listLotsHandler).Methods("GET")
	api.HandleFunc("/lots", s.createLotHandler).Methods("POST")
	api.HandleFunc("/lots/{id}", s.getLotHandler).Methods("GET")
	api.HandleFunc("/lots/{id}/status", s.updateLotStatusHandler).Methods("PATCH")

	// Supply-chain event endpoints
	api.HandleFunc("/collection", s.listCollectionHandler).Methods("GET")
	api.HandleFunc("/collection", s.recordCollectionHandler).Methods("POST")
	api.HandleFunc("/processing", s.listProcessingHandler).Methods("GET")
	api.HandleFunc("/processing", s.recordProcessingHandler).Methods("POST")
	api.HandleFunc("/quality", s.listQualityHandler).Methods("GET")
	api.HandleFunc("/quality", s.recordQualityHandler).Methods("POST")
	api.HandleFunc("/packs", s.listPacksHandler).Methods("GET")
	api.HandleFunc("/packs", s.mintPackHandler).Methods("POST")
	api.HandleFunc("/packs/{id}", s.getPackHandler).Methods("GET")

	// Provenance and ledger endpoints
	api.HandleFunc("/provenance/{packId}", s.provenanceHandler).Methods("GET")
	api.HandleFunc("/ledger/verify/{lotId}", s.verifyChainHandler).Methods("GET")
	api.HandleFunc("/ledger/chain/{lotId}", s.chainHandler).Methods("GET")

	// Compliance endpoints
	api.HandleFunc("/compliance/thresholds", s.listThresholdsHandler).Methods("GET")
	api.HandleFunc("/compliance/thresholds", s.putThresholdHandler).Methods("POST")
	api.HandleFunc("/compliance/report/{lotId}", s.complianceReportHandler).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "Route not found", Code: utils.ErrCodeNotFound})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Error: "Method not allowed", Code: utils.ErrCodeMethod})
	})
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	// Publish system and component metrics before the first scrape
	if s.metricsManager != nil {
		s.updateComponentMetrics()
		go s.systemMetricsUpdater()
	}

	// Create a channel to receive startup errors
	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Give the server a moment to start and check for immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateComponentMetrics()
		case <-s.done:
			return
		}
	}
}

func (s *HTTPServer) updateComponentMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	s.metricsManager.UpdateComponentHealth("storage", s.storage.Ping() == nil)
	// GetHealth publishes the processor gauge itself
	s.processor.GetHealth(context.Background())
	if s.notification != nil {
		s.metricsManager.UpdateComponentHealth("notification", s.notification.IsHealthy())
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")
	s.stopOnce.Do(func() { close(s.done) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Health Handlers

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.storage.Ping(); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, envelope{Success: code == http.StatusOK, Data: map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"metrics_enabled": s.config.EnableMetrics,
	}})
}

// detailedHealthHandler returns detailed health status
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	processorHealth := s.processor.GetHealth(r.Context())
	components := map[string]interface{}{
		"storage":   s.storage.Ping() == nil,
		"processor": processorHealth,
	}
	if s.notification != nil {
		components["notification"] = s.notification.IsHealthy()
	}

	status := "healthy"
	if !processorHealth.Healthy {
		status = "degraded"
	}

	s.writeSuccess(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    s.config.Version,
		"components": components,
	})
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStorageStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	stats := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"storage":   storageStats,
		"processor": s.processor.GetStats(),
	}
	if s.notification != nil {
		stats["notification"] = s.notification.GetStats()
	}

	s.writeSuccess(w, http.StatusOK, stats)
}

// Utility Methods

// decodeJSON reads a bounded JSON body into dst
func (s *HTTPServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return utils.NewValidationError("Invalid JSON body", err.Error())
	}
	return nil
}

// writeSuccess writes a success envelope
func (s *HTTPServer) writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError maps err onto an HTTP status and writes an error envelope
func (s *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := envelope{Success: false, Error: errorMessage(err), Code: utils.ErrorCode(err)}

	entry := s.logger.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("HTTP error")
	} else {
		entry.Debug("HTTP client error")
	}

	s.writeJSON(w, status, resp)
}

// statusFor maps the application error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case utils.IsNotFound(err):
		return http.StatusNotFound
	case utils.IsValidation(err):
		return http.StatusBadRequest
	case utils.IsConflict(err):
		return http.StatusConflict
	case utils.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		return "Internal server error"
	}
	if appErr.Code == utils.ErrCodeValidation && appErr.Details != "" {
		return appErr.Message + ": " + appErr.Details
	}
	return appErr.Message
}
