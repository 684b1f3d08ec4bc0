package compliance

import (
	"context"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/internal/storage"
)

// DefaultRecommendedTests are the test types a lot is expected to carry
var DefaultRecommendedTests = []string{"microbial", "heavy-metals", "pesticide", "potency", "authenticity"}

// Reporter builds per-lot compliance reports
type Reporter struct {
	store       storage.Storage
	recommended []string
	now         func() time.Time
}

// NewReporter creates a reporter. An empty recommended list selects
// DefaultRecommendedTests.
func NewReporter(store storage.Storage, recommended []string) *Reporter {
	if len(recommended) == 0 {
		recommended = DefaultRecommendedTests
	}
	return &Reporter{store: store, recommended: recommended, now: time.Now}
}

// Report summarises the lot's events and which recommended tests are missing
func (r *Reporter) Report(ctx context.Context, lotID string) (*models.ComplianceReport, error) {
	lot, err := r.store.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	collections, err := r.store.ListCollectionEvents(ctx, lotID)
	if err != nil {
		return nil, err
	}
	processing, err := r.store.ListProcessingEvents(ctx, lotID)
	if err != nil {
		return nil, err
	}
	tests, err := r.store.ListQualityTests(ctx, lotID)
	if err != nil {
		return nil, err
	}

	report := &models.ComplianceReport{
		Lot: models.LotSummary{
			ID:      lot.ID,
			Name:    lot.Name,
			Species: lot.Species,
			Status:  lot.Status,
		},
		Collection: models.CollectionSummary{TotalEvents: len(collections)},
		Processing: models.ProcessingSummary{
			TotalEvents:  len(processing),
			ProcessTypes: []string{},
		},
		QualityTests: models.QualitySummary{
			TotalTests: len(tests),
			TestTypes:  []string{},
		},
		ComplianceStatus: models.ReportCompliance{MissingTests: []string{}},
		GeneratedAt:      r.now().UTC(),
	}

	for _, c := range collections {
		if c.OrganicCertified {
			report.Collection.OrganicCertified++
		}
		if c.WildHarvested {
			report.Collection.WildHarvested++
		}
	}

	for _, p := range processing {
		report.Processing.ProcessTypes = appendUnique(report.Processing.ProcessTypes, p.ProcessType)
	}

	tested := make(map[string]bool)
	for _, t := range tests {
		switch t.OverallStatus {
		case models.TestStatusPass:
			report.QualityTests.Passed++
		case models.TestStatusFail:
			report.QualityTests.Failed++
		case models.TestStatusConditional:
			report.QualityTests.Conditional++
		}
		report.QualityTests.TestTypes = appendUnique(report.QualityTests.TestTypes, t.TestType)
		tested[t.TestType] = true
	}

	for _, testType := range r.recommended {
		if !tested[testType] {
			report.ComplianceStatus.MissingTests = append(report.ComplianceStatus.MissingTests, testType)
		}
	}
	report.ComplianceStatus.IsCompliant = len(tests) > 0 && report.QualityTests.Failed == 0

	return report, nil
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
