// File: internal/processor/transformer.go
package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/smartdevs17/ayutrace/internal/models"
)

const (
	fhirCollectionMethodURL = "http://ayush.gov.in/fhir/collection-method"
	fhirOrganicCertifiedURL = "http://ayush.gov.in/fhir/organic-certified"
	fhirProcessingSystem    = "http://ayush.gov.in/fhir/processing"
	fhirMedicationSystem    = "http://ayush.gov.in/fhir/medication"
)

// EventTransformer builds the FHIR metadata attached to supply-chain records
type EventTransformer struct {
	now func() time.Time
}

// NewEventTransformer creates a new event transformer
func NewEventTransformer(now func() time.Time) *EventTransformer {
	return &EventTransformer{now: now}
}

func (et *EventTransformer) resourceID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, et.now().UnixMilli())
}

// CollectionFHIR describes a collection as a FHIR Substance
func (et *EventTransformer) CollectionFHIR(req *CollectionRequest) models.FHIRMetadata {
	method := "cultivated"
	if req.WildHarvested {
		method = "wild-harvested"
	}
	organic := "no"
	if req.OrganicCertified {
		organic = "yes"
	}

	return models.FHIRMetadata{
		ResourceType: "Substance",
		ID:           et.resourceID("substance"),
		Identifier:   []models.FHIRIdentifier{{System: "urn:ayurveda:lot", Value: req.LotID}},
		Extension: []models.FHIRExtension{
			{URL: fhirCollectionMethodURL, ValueString: method},
			{URL: fhirOrganicCertifiedURL, ValueString: organic},
		},
	}
}

// ProcessingFHIR describes a processing step as a FHIR Procedure
func (et *EventTransformer) ProcessingFHIR(req *ProcessingRequest) models.FHIRMetadata {
	return models.FHIRMetadata{
		ResourceType: "Procedure",
		ID:           et.resourceID("procedure"),
		Identifier: []models.FHIRIdentifier{{
			System: "urn:ayurveda:processing",
			Value:  req.LotID + "-" + req.ProcessType,
		}},
		Status: "completed",
		Code: &models.FHIRCodeableConcept{Coding: []models.FHIRCoding{{
			System:  fhirProcessingSystem,
			Code:    req.ProcessType,
			Display: strings.ToUpper(req.ProcessType),
		}}},
	}
}

// QualityTestFHIR describes a quality test as a FHIR DiagnosticReport
func (et *EventTransformer) QualityTestFHIR(req *QualityTestRequest, overall models.TestStatus) models.FHIRMetadata {
	status, conclusion := "final", "All parameters within acceptable limits"
	if overall != models.TestStatusPass {
		status, conclusion = "amended", "Some parameters out of range"
	}

	return models.FHIRMetadata{
		ResourceType: "DiagnosticReport",
		ID:           et.resourceID("diagnostic"),
		Identifier: []models.FHIRIdentifier{{
			System: "urn:ayurveda:quality-test",
			Value:  req.LotID + "-" + req.TestType,
		}},
		Status:     status,
		Conclusion: conclusion,
	}
}

// PackFHIR describes a pack as a FHIR Medication
func (et *EventTransformer) PackFHIR(packID string, req *PackRequest) models.FHIRMetadata {
	license := req.AyushLicense
	if license == "" {
		license = "N/A"
	}

	return models.FHIRMetadata{
		ResourceType: "Medication",
		ID:           et.resourceID("medication"),
		Identifier: []models.FHIRIdentifier{
			{System: "urn:ayurveda:pack", Value: packID},
			{System: "urn:ayush:license", Value: license},
		},
		Code: &models.FHIRCodeableConcept{Coding: []models.FHIRCoding{{
			System:  fhirMedicationSystem,
			Code:    req.SKU,
			Display: req.ProductName,
		}}},
		Batch: &models.FHIRBatch{
			LotNumber:      req.BatchNumber,
			ExpirationDate: req.ExpiryDate.UTC().Format("2006-01-02"),
		},
	}
}
