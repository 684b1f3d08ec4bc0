package models

import "time"

// CheckpointStatus is the outcome of one provenance checkpoint
type CheckpointStatus string

const (
	CheckpointPass    CheckpointStatus = "pass"
	CheckpointFail    CheckpointStatus = "fail"
	CheckpointPending CheckpointStatus = "pending"
)

// OverallStatus is the folded compliance verdict of a trace
type OverallStatus string

const (
	OverallCompliant    OverallStatus = "compliant"
	OverallNonCompliant OverallStatus = "non-compliant"
	OverallPending      OverallStatus = "pending"
)

// Checkpoint names used in provenance traces
const (
	CheckpointCollection      = "Collection Event"
	CheckpointQualityTesting  = "Quality Testing"
	CheckpointLedgerIntegrity = "Ledger Integrity"
	CheckpointGMP             = "GMP Certification"
)

// Checkpoint is one verdict line in a compliance status
type Checkpoint struct {
	Name    string           `json:"name"`
	Status  CheckpointStatus `json:"status"`
	Details string           `json:"details"`
}

// ComplianceStatus folds the checkpoints of a trace
type ComplianceStatus struct {
	Overall     OverallStatus `json:"overall"`
	Checkpoints []Checkpoint  `json:"checkpoints"`
}

// ProvenanceTrace is the full history of a pack back to its origin lot
type ProvenanceTrace struct {
	Pack               Pack               `json:"pack"`
	Lot                Lot                `json:"lot"`
	CollectionEvents   []CollectionEvent  `json:"collection_events"`
	ProcessingEvents   []ProcessingEvent  `json:"processing_events"`
	QualityTests       []QualityTestEvent `json:"quality_tests"`
	LedgerEntries      []LedgerEntry      `json:"ledger_entries"`
	LedgerVerification VerificationResult `json:"ledger_verification"`
	ComplianceStatus   ComplianceStatus   `json:"compliance_status"`
	GeneratedAt        time.Time          `json:"generated_at"`
}
