package models

import "time"

// GeoLocation is where an event took place
type GeoLocation struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`
}

// CollectionEvent records raw material harvested into a lot
type CollectionEvent struct {
	ID                string       `json:"id" db:"id"`
	LotID             string       `json:"lot_id" db:"lot_id"`
	CollectorID       string       `json:"collector_id" db:"collector_id"`
	Species           string       `json:"species" db:"species"`
	CommonName        string       `json:"common_name" db:"common_name"`
	PartUsed          string       `json:"part_used" db:"part_used"`
	QuantityKg        float64      `json:"quantity_kg" db:"quantity_kg"`
	CollectionDate    time.Time    `json:"collection_date" db:"collection_date"`
	Location          GeoLocation  `json:"location" db:"location"`
	WeatherConditions string       `json:"weather_conditions,omitempty" db:"weather_conditions"`
	SoilType          string       `json:"soil_type,omitempty" db:"soil_type"`
	WildHarvested     bool         `json:"wild_harvested" db:"wild_harvested"`
	OrganicCertified  bool         `json:"organic_certified" db:"organic_certified"`
	FHIRMetadata      FHIRMetadata `json:"fhir_metadata" db:"fhir_metadata"`
	BlockchainTxID    string       `json:"blockchain_tx_id,omitempty" db:"-"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
}

// ProcessingEvent records a processing step applied to a lot
type ProcessingEvent struct {
	ID               string                 `json:"id" db:"id"`
	LotID            string                 `json:"lot_id" db:"lot_id"`
	ProcessorID      string                 `json:"processor_id" db:"processor_id"`
	ProcessType      string                 `json:"process_type" db:"process_type"`
	ProcessDate      time.Time              `json:"process_date" db:"process_date"`
	Parameters       map[string]interface{} `json:"parameters,omitempty" db:"parameters"`
	InputQuantityKg  float64                `json:"input_quantity_kg" db:"input_quantity_kg"`
	OutputQuantityKg float64                `json:"output_quantity_kg" db:"output_quantity_kg"`
	YieldPercentage  float64                `json:"yield_percentage" db:"yield_percentage"`
	EquipmentID      string                 `json:"equipment_id,omitempty" db:"equipment_id"`
	OperatorID       string                 `json:"operator_id,omitempty" db:"operator_id"`
	FHIRMetadata     FHIRMetadata           `json:"fhir_metadata" db:"fhir_metadata"`
	BlockchainTxID   string                 `json:"blockchain_tx_id,omitempty" db:"-"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
}

// QualityTestEvent records a laboratory test of a lot. OverallStatus is derived
// by the compliance evaluator, never taken from input.
type QualityTestEvent struct {
	ID                  string                     `json:"id" db:"id"`
	LotID               string                     `json:"lot_id" db:"lot_id"`
	LabID               string                     `json:"lab_id" db:"lab_id"`
	TestDate            time.Time                  `json:"test_date" db:"test_date"`
	TestType            string                     `json:"test_type" db:"test_type"`
	Parameters          map[string]ParameterResult `json:"parameters" db:"parameters"`
	OverallStatus       TestStatus                 `json:"overall_status" db:"overall_status"`
	CertificationNumber string                     `json:"certification_number,omitempty" db:"certification_number"`
	CertificationBody   string                     `json:"certification_body,omitempty" db:"certification_body"`
	LabAccreditation    string                     `json:"lab_accreditation,omitempty" db:"lab_accreditation"`
	FHIRMetadata        FHIRMetadata               `json:"fhir_metadata" db:"fhir_metadata"`
	BlockchainTxID      string                     `json:"blockchain_tx_id,omitempty" db:"-"`
	CreatedAt           time.Time                  `json:"created_at" db:"created_at"`
}

// Ingredient is one component of a pack
type Ingredient struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	LotID      string  `json:"lot_id,omitempty"`
}

// Pack is a finished consumer-facing product unit derived from a lot
type Pack struct {
	ID              string       `json:"id" db:"id"`
	LotID           string       `json:"lot_id" db:"lot_id"`
	ManufacturerID  string       `json:"manufacturer_id" db:"manufacturer_id"`
	SKU             string       `json:"sku" db:"sku"`
	ProductName     string       `json:"product_name" db:"product_name"`
	BatchNumber     string       `json:"batch_number" db:"batch_number"`
	ManufactureDate time.Time    `json:"manufacture_date" db:"manufacture_date"`
	ExpiryDate      time.Time    `json:"expiry_date" db:"expiry_date"`
	NetWeight       string       `json:"net_weight" db:"net_weight"`
	Ingredients     []Ingredient `json:"ingredients" db:"ingredients"`
	Dosage          string       `json:"dosage,omitempty" db:"dosage"`
	Storage         string       `json:"storage,omitempty" db:"storage"`
	AyushLicense    string       `json:"ayush_license,omitempty" db:"ayush_license"`
	GMPCertified    bool         `json:"gmp_certified" db:"gmp_certified"`
	FHIRMetadata    FHIRMetadata `json:"fhir_metadata" db:"fhir_metadata"`
	BlockchainTxID  string       `json:"blockchain_tx_id,omitempty" db:"-"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}
