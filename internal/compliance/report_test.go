package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/storage"
	"github.com/smartdevs17/ayutrace/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateLot(ctx, &models.Lot{
		ID: "lot-1", Name: "Ashwagandha root", Species: "Withania somnifera",
		Status: models.LotStatusTested, CreatedAt: now, UpdatedAt: now,
	}))

	reporter := NewReporter(store, nil)
	reporter.now = func() time.Time { return now }

	t.Run("NoTests", func(t *testing.T) {
		report, err := reporter.Report(ctx, "lot-1")
		require.NoError(t, err)
		assert.False(t, report.ComplianceStatus.IsCompliant, "A lot without tests is not compliant")
		assert.Equal(t, DefaultRecommendedTests, report.ComplianceStatus.MissingTests)
		assert.Equal(t, now, report.GeneratedAt)
	})

	for i, c := range []struct{ organic, wild bool }{{true, false}, {true, true}, {false, true}} {
		require.NoError(t, store.SaveCollectionEvent(ctx, &models.CollectionEvent{
			ID: "col-" + string(rune('a'+i)), LotID: "lot-1", CollectorID: "c-1", QuantityKg: 5,
			CollectionDate: now.Add(time.Duration(i) * time.Hour), OrganicCertified: c.organic, WildHarvested: c.wild,
			CreatedAt: now,
		}))
	}
	for i, processType := range []string{"drying", "grinding", "drying"} {
		require.NoError(t, store.SaveProcessingEvent(ctx, &models.ProcessingEvent{
			ID: "proc-" + string(rune('a'+i)), LotID: "lot-1", ProcessorID: "p-1", ProcessType: processType,
			ProcessDate: now.Add(time.Duration(i) * time.Hour), CreatedAt: now,
		}))
	}
	tests := []struct {
		testType string
		status   models.TestStatus
	}{
		{"microbial", models.TestStatusPass},
		{"heavy-metals", models.TestStatusPass},
		{"microbial", models.TestStatusPass},
	}
	for i, qt := range tests {
		require.NoError(t, store.SaveQualityTest(ctx, &models.QualityTestEvent{
			ID: "qt-" + string(rune('a'+i)), LotID: "lot-1", LabID: "lab-1", TestType: qt.testType,
			TestDate: now.Add(time.Duration(i) * time.Hour), OverallStatus: qt.status, CreatedAt: now,
		}))
	}

	t.Run("Summaries", func(t *testing.T) {
		report, err := reporter.Report(ctx, "lot-1")
		require.NoError(t, err)

		assert.Equal(t, "Withania somnifera", report.Lot.Species)
		assert.Equal(t, models.CollectionSummary{TotalEvents: 3, OrganicCertified: 2, WildHarvested: 2}, report.Collection)
		assert.Equal(t, 3, report.Processing.TotalEvents)
		assert.Equal(t, []string{"drying", "grinding"}, report.Processing.ProcessTypes)
		assert.Equal(t, 3, report.QualityTests.Passed)
		assert.ElementsMatch(t, []string{"microbial", "heavy-metals"}, report.QualityTests.TestTypes)
		assert.True(t, report.ComplianceStatus.IsCompliant)
		assert.Equal(t, []string{"pesticide", "potency", "authenticity"}, report.ComplianceStatus.MissingTests)
	})

	t.Run("FailedTestBreaksCompliance", func(t *testing.T) {
		require.NoError(t, store.SaveQualityTest(ctx, &models.QualityTestEvent{
			ID: "qt-fail", LotID: "lot-1", LabID: "lab-1", TestType: "pesticide",
			TestDate: now.Add(5 * time.Hour), OverallStatus: models.TestStatusFail, CreatedAt: now,
		}))

		report, err := reporter.Report(ctx, "lot-1")
		require.NoError(t, err)
		assert.Equal(t, 1, report.QualityTests.Failed)
		assert.False(t, report.ComplianceStatus.IsCompliant)
		assert.NotContains(t, report.ComplianceStatus.MissingTests, "pesticide")
	})

	t.Run("CustomRecommendedTests", func(t *testing.T) {
		report, err := NewReporter(store, []string{"microbial", "dna-barcoding"}).Report(ctx, "lot-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"dna-barcoding"}, report.ComplianceStatus.MissingTests)
	})

	t.Run("UnknownLot", func(t *testing.T) {
		_, err := reporter.Report(ctx, "lot-missing")
		assert.True(t, utils.IsNotFound(err))
	})
}
