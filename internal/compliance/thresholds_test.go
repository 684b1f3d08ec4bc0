package compliance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartdevs17/ayutrace/internal/metrics"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdStore(t *testing.T) {
	ctx := context.Background()
	manager := metrics.NewManager()
	store, err := NewThresholdStore(storage.NewMemoryStorage(), 8, manager)
	require.NoError(t, err)
	lookups := manager.GetPrometheusMetrics().ThresholdCacheLookups

	t.Run("PutAssignsKeyedID", func(t *testing.T) {
		saved, err := store.Put(ctx, &models.ComplianceThreshold{
			TestType: "heavy-metals", Parameter: "lead", MaxValue: float64Ptr(10), Unit: "ppm",
		})
		require.NoError(t, err)
		assert.Equal(t, "heavy-metals-lead", saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())
	})

	t.Run("ListIsCached", func(t *testing.T) {
		before := testutil.ToFloat64(lookups.WithLabelValues("hit"))

		first, err := store.List(ctx, "heavy-metals")
		require.NoError(t, err)
		require.Len(t, first, 1)
		first[0].Unit = "mutated"

		second, err := store.List(ctx, "heavy-metals")
		require.NoError(t, err)
		assert.Equal(t, "ppm", second[0].Unit, "Cached entries are copied on read")
		assert.Equal(t, before+2, testutil.ToFloat64(lookups.WithLabelValues("hit")))
	})

	t.Run("PutInvalidatesCache", func(t *testing.T) {
		_, err := store.List(ctx, "heavy-metals")
		require.NoError(t, err)

		updated, err := store.Put(ctx, &models.ComplianceThreshold{
			TestType: "heavy-metals", Parameter: "lead", MaxValue: float64Ptr(5), Unit: "ppm",
		})
		require.NoError(t, err)
		assert.Equal(t, 5.0, *updated.MaxValue, "Upsert replaces the bounds")

		all, err := store.List(ctx, "heavy-metals")
		require.NoError(t, err)
		assert.Len(t, all, 1, "At most one threshold per key")
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "heavy-metals", "mercury")
		assert.True(t, utils.IsNotFound(err))
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := store.Put(ctx, &models.ComplianceThreshold{Parameter: "lead"})
		assert.True(t, utils.IsValidation(err))

		_, err = store.Put(ctx, &models.ComplianceThreshold{TestType: "microbial"})
		assert.True(t, utils.IsValidation(err))

		_, err = store.Put(ctx, &models.ComplianceThreshold{
			TestType: "microbial", Parameter: "yeast", MinValue: float64Ptr(5), MaxValue: float64Ptr(1),
		})
		assert.True(t, utils.IsValidation(err))
	})
}

func TestSeedKeepsExistingThresholds(t *testing.T) {
	ctx := context.Background()
	store, err := NewThresholdStore(storage.NewMemoryStorage(), 0, nil)
	require.NoError(t, err)

	_, err = store.Put(ctx, &models.ComplianceThreshold{
		TestType: "heavy-metals", Parameter: "lead", MaxValue: float64Ptr(3), Unit: "ppm",
	})
	require.NoError(t, err)

	added, err := Seed(ctx, store, DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	lead, err := store.Get(ctx, "heavy-metals", "lead")
	require.NoError(t, err)
	assert.Equal(t, 3.0, *lead.MaxValue, "Seeding does not overwrite a configured limit")

	again, err := Seed(ctx, store, DefaultThresholds())
	require.NoError(t, err)
	assert.Zero(t, again)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadThresholdsFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("Valid", func(t *testing.T) {
		path := filepath.Join(dir, "thresholds.yaml")
		content := `thresholds:
  - test_type: microbial
    parameter: yeast_mold
    max_value: 1000
    unit: CFU/g
    regulatory_body: AYUSH
    standard: AS 3.6.2
  - test_type: potency
    parameter: withanolides
    min_value: 0.3
    unit: "%"
    regulatory_body: API
    standard: API Vol I
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		thresholds, err := LoadThresholdsFile(path)
		require.NoError(t, err)
		require.Len(t, thresholds, 2)

		assert.Equal(t, "yeast_mold", thresholds[0].Parameter)
		require.NotNil(t, thresholds[0].MaxValue)
		assert.Equal(t, 1000.0, *thresholds[0].MaxValue)
		assert.Nil(t, thresholds[0].MinValue)

		require.NotNil(t, thresholds[1].MinValue)
		assert.Equal(t, 0.3, *thresholds[1].MinValue)
		assert.Equal(t, "%", thresholds[1].Unit)
	})

	t.Run("UnknownField", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  - test_type: microbial\n    paramter: x\n"), 0644))

		_, err := LoadThresholdsFile(path)
		require.Error(t, err)
		assert.Equal(t, utils.ErrCodeConfiguration, utils.ErrorCode(err))
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  - test_type: microbial\n"), 0644))

		_, err := LoadThresholdsFile(path)
		assert.True(t, utils.IsValidation(err))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadThresholdsFile(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}
