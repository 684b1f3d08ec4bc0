package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagersDoNotShareRegistries(t *testing.T) {
	first := NewManager()
	second := NewManager()

	first.GetPrometheusMetrics().RecordLedgerAppend("collection", "success", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(first.GetPrometheusMetrics().LedgerAppendsTotal.WithLabelValues("collection", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.GetPrometheusMetrics().LedgerAppendsTotal.WithLabelValues("collection", "success")))
}

func TestRecordHelpers(t *testing.T) {
	m := NewManager()
	pm := m.GetPrometheusMetrics()

	pm.RecordChainVerification("invalid")
	pm.RecordQualityTest("microbial", "fail")
	pm.RecordProvenanceTrace("pending")
	pm.RecordDatabaseOperation("insert", "ledger_entries", "success", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.ChainVerificationsTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.QualityTestsTotal.WithLabelValues("microbial", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.ProvenanceTracesTotal.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.DatabaseOperationsTotal.WithLabelValues("insert", "ledger_entries", "success")))

	m.UpdateSystemMetrics()
	assert.Greater(t, testutil.ToFloat64(pm.GoroutineCount), 0.0)

	families, err := m.Registry().Gather()
	require.NoError(t, err, "Gather should succeed")
	assert.NotEmpty(t, families)
}
