package models

// FHIRIdentifier is a FHIR identifier element
type FHIRIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// FHIRExtension is a FHIR extension element carrying a string value
type FHIRExtension struct {
	URL         string `json:"url"`
	ValueString string `json:"valueString,omitempty"`
}

// FHIRCoding is a single code within a codeable concept
type FHIRCoding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// FHIRCodeableConcept groups codings
type FHIRCodeableConcept struct {
	Coding []FHIRCoding `json:"coding"`
}

// FHIRBatch describes a medication batch
type FHIRBatch struct {
	LotNumber      string `json:"lotNumber"`
	ExpirationDate string `json:"expirationDate"`
}

// FHIRMetadata is the subset of a FHIR resource attached to every supply-chain record
type FHIRMetadata struct {
	ResourceType string               `json:"resourceType"`
	ID           string               `json:"id"`
	Identifier   []FHIRIdentifier     `json:"identifier,omitempty"`
	Extension    []FHIRExtension      `json:"extension,omitempty"`
	Status       string               `json:"status,omitempty"`
	Conclusion   string               `json:"conclusion,omitempty"`
	Code         *FHIRCodeableConcept `json:"code,omitempty"`
	Batch        *FHIRBatch           `json:"batch,omitempty"`
}
