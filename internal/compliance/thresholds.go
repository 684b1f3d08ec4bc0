package compliance

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// DefaultCacheSize is the number of test types kept in the threshold cache
const DefaultCacheSize = 64

// ThresholdStore serves compliance thresholds from storage through an LRU
// cache keyed by test type. Put invalidates the cached test type.
type ThresholdStore struct {
	store   storage.Storage
	cache   *lru.Cache[string, []models.ComplianceThreshold]
	metrics *metrics.Manager
	logger  *logrus.Entry
	now     func() time.Time
}

// NewThresholdStore creates a threshold store. A non-positive cacheSize
// selects DefaultCacheSize.
func NewThresholdStore(store storage.Storage, cacheSize int, manager *metrics.Manager) (*ThresholdStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []models.ComplianceThreshold](cacheSize)
	if err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeConfiguration, "Failed to create threshold cache", err)
	}

	return &ThresholdStore{
		store:   store,
		cache:   cache,
		metrics: manager,
		logger:  utils.ComponentLogger("thresholds"),
		now:     time.Now,
	}, nil
}

// List returns the thresholds for testType, or every threshold when testType
// is empty. Only per-type lookups are cached.
func (s *ThresholdStore) List(ctx context.Context, testType string) ([]*models.ComplianceThreshold, error) {
	if testType == "" {
		return s.store.ListThresholds(ctx, "")
	}

	if cached, ok := s.cache.Get(testType); ok {
		s.recordLookup("hit")
		return cloneThresholds(cached), nil
	}
	s.recordLookup("miss")

	thresholds, err := s.store.ListThresholds(ctx, testType)
	if err != nil {
		return nil, err
	}

	values := make([]models.ComplianceThreshold, len(thresholds))
	for i, t := range thresholds {
		values[i] = *t
	}
	s.cache.Add(testType, values)

	return cloneThresholds(values), nil
}

// Get returns the threshold for (testType, parameter)
func (s *ThresholdStore) Get(ctx context.Context, testType, parameter string) (*models.ComplianceThreshold, error) {
	thresholds, err := s.List(ctx, testType)
	if err != nil {
		return nil, err
	}
	for _, t := range thresholds {
		if t.Parameter == parameter {
			return t, nil
		}
	}
	return nil, utils.NewNotFoundError("Compliance threshold", models.ThresholdKey(testType, parameter))
}

// Put creates or replaces the threshold for its (test type, parameter) and
// returns the stored version.
func (s *ThresholdStore) Put(ctx context.Context, threshold *models.ComplianceThreshold) (*models.ComplianceThreshold, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	record := *threshold
	record.ID = record.TestType + "-" + record.Parameter
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}

	if err := s.store.UpsertThreshold(ctx, &record); err != nil {
		return nil, err
	}
	s.cache.Remove(record.TestType)

	s.logger.WithFields(logrus.Fields{
		"test_type": record.TestType,
		"parameter": record.Parameter,
	}).Info("Compliance threshold saved")

	return s.Get(ctx, record.TestType, record.Parameter)
}

// ValidateThreshold checks the key fields and bound ordering
func ValidateThreshold(threshold *models.ComplianceThreshold) error {
	if threshold == nil {
		return utils.NewValidationError("Threshold is required")
	}
	if threshold.TestType == "" {
		return utils.NewValidationError("Threshold test type is required")
	}
	if threshold.Parameter == "" {
		return utils.NewValidationError("Threshold parameter is required", threshold.TestType)
	}
	if threshold.MinValue != nil && threshold.MaxValue != nil && *threshold.MinValue > *threshold.MaxValue {
		return utils.NewValidationError("Threshold minimum exceeds maximum", threshold.Key())
	}
	return nil
}

func (s *ThresholdStore) recordLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.GetPrometheusMetrics().RecordThresholdCacheLookup(outcome)
	}
}

// cloneThresholds hands out copies so callers cannot mutate cached entries
func cloneThresholds(values []models.ComplianceThreshold) []*models.ComplianceThreshold {
	out := make([]*models.ComplianceThreshold, len(values))
	for i := range values {
		t := values[i]
		out[i] = &t
	}
	return out
}
