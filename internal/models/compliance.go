package models

import "time"

// TestStatus is the overall outcome of a quality test.
// TestStatusConditional is reserved and never produced by the evaluator.
type TestStatus string

const (
	TestStatusPass        TestStatus = "pass"
	TestStatusFail        TestStatus = "fail"
	TestStatusConditional TestStatus = "conditional"
)

// ParameterStatus is the outcome for a single measured parameter.
// ParameterStatusWarning is reserved and never produced by the evaluator.
type ParameterStatus string

const (
	ParameterStatusPass    ParameterStatus = "pass"
	ParameterStatusFail    ParameterStatus = "fail"
	ParameterStatusWarning ParameterStatus = "warning"
)

// ComplianceThreshold bounds one parameter of one test type
type ComplianceThreshold struct {
	ID             string    `json:"id" db:"id" yaml:"-"`
	TestType       string    `json:"test_type" db:"test_type" yaml:"test_type"`
	Parameter      string    `json:"parameter" db:"parameter" yaml:"parameter"`
	MinValue       *float64  `json:"min_value,omitempty" db:"min_value" yaml:"min_value,omitempty"`
	MaxValue       *float64  `json:"max_value,omitempty" db:"max_value" yaml:"max_value,omitempty"`
	Unit           string    `json:"unit" db:"unit" yaml:"unit"`
	RegulatoryBody string    `json:"regulatory_body" db:"regulatory_body" yaml:"regulatory_body"`
	Standard       string    `json:"standard" db:"standard" yaml:"standard"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// Key identifies the threshold within a test type
func (t ComplianceThreshold) Key() string {
	return ThresholdKey(t.TestType, t.Parameter)
}

// ThresholdKey builds the lookup key for a (test type, parameter) pair
func ThresholdKey(testType, parameter string) string {
	return testType + "/" + parameter
}

// MeasuredParameter is a raw parameter as submitted by a lab. Value may be a
// JSON number or a numeric string.
type MeasuredParameter struct {
	Value interface{} `json:"value"`
	Unit  string      `json:"unit"`
}

// ThresholdSnapshot copies the bounds that applied when a parameter was evaluated
type ThresholdSnapshot struct {
	MinValue       *float64 `json:"min_value,omitempty"`
	MaxValue       *float64 `json:"max_value,omitempty"`
	Unit           string   `json:"unit"`
	RegulatoryBody string   `json:"regulatory_body,omitempty"`
	Standard       string   `json:"standard,omitempty"`
}

// ParameterResult is an evaluated parameter stored on a quality test
type ParameterResult struct {
	Value     interface{}        `json:"value"`
	Unit      string             `json:"unit"`
	Threshold *ThresholdSnapshot `json:"threshold,omitempty"`
	Status    ParameterStatus    `json:"status"`
}

// LotSummary identifies the lot a report covers
type LotSummary struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Species string    `json:"species"`
	Status  LotStatus `json:"status"`
}

// CollectionSummary counts collection events by certification
type CollectionSummary struct {
	TotalEvents      int `json:"total_events"`
	OrganicCertified int `json:"organic_certified"`
	WildHarvested    int `json:"wild_harvested"`
}

// ProcessingSummary lists the distinct process types applied to a lot
type ProcessingSummary struct {
	TotalEvents  int      `json:"total_events"`
	ProcessTypes []string `json:"process_types"`
}

// QualitySummary counts quality test outcomes
type QualitySummary struct {
	TotalTests  int      `json:"total_tests"`
	Passed      int      `json:"passed"`
	Failed      int      `json:"failed"`
	Conditional int      `json:"conditional"`
	TestTypes   []string `json:"test_types"`
}

// ReportCompliance is the verdict section of a compliance report
type ReportCompliance struct {
	IsCompliant  bool     `json:"is_compliant"`
	MissingTests []string `json:"missing_tests"`
}

// ComplianceReport summarises a lot's events and test coverage
type ComplianceReport struct {
	Lot              LotSummary        `json:"lot"`
	Collection       CollectionSummary `json:"collection"`
	Processing       ProcessingSummary `json:"processing"`
	QualityTests     QualitySummary    `json:"quality_tests"`
	ComplianceStatus ReportCompliance  `json:"compliance_status"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
