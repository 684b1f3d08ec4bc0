// File: internal/processor/validator.go
package processor

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// EventValidator checks supply-chain requests before anything is written
type EventValidator struct {
	config  *ProcessorConfig
	now     func() time.Time
	idRegex *regexp.Regexp
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Type    string      `json:"type"` // required, format, range, date
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

func (r *ValidationResult) add(field, errType, message string, value interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, &ValidationError{
		Field:   field,
		Type:    errType,
		Message: message,
		Value:   value,
	})
}

// NewEventValidator creates a new event validator
func NewEventValidator(config *ProcessorConfig, now func() time.Time) *EventValidator {
	return &EventValidator{
		config:  config,
		now:     now,
		idRegex: regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]*$`),
	}
}

// validationError folds a failed result into a single VALIDATION_ERROR
func validationError(message string, result *ValidationResult) error {
	if result.Valid {
		return nil
	}

	var errorMessages []string
	for _, err := range result.Errors {
		errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return utils.NewValidationError(message, strings.Join(errorMessages, "; "))
}

// ValidateLot validates a lot creation request
func (ev *EventValidator) ValidateLot(req *CreateLotRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if req == nil {
		result.add("request", "required", "request body is required", nil)
		return result
	}

	ev.requireText(result, "name", req.Name)
	ev.requireText(result, "species", req.Species)
	ev.nonNegative(result, "current_quantity_kg", req.CurrentQuantityKg)
	return result
}

// ValidateCollection validates a collection request
func (ev *EventValidator) ValidateCollection(req *CollectionRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if req == nil {
		result.add("request", "required", "request body is required", nil)
		return result
	}

	ev.requireID(result, "lot_id", req.LotID)
	ev.requireID(result, "collector_id", req.CollectorID)
	ev.requireText(result, "species", req.Species)
	ev.requireDate(result, "collection_date", req.CollectionDate)

	if math.IsNaN(req.QuantityKg) || req.QuantityKg <= 0 {
		result.add("quantity_kg", "range", "must be greater than zero", req.QuantityKg)
	}
	if req.Location.Lat < -90 || req.Location.Lat > 90 {
		result.add("location.lat", "range", "must be between -90 and 90", req.Location.Lat)
	}
	if req.Location.Lng < -180 || req.Location.Lng > 180 {
		result.add("location.lng", "range", "must be between -180 and 180", req.Location.Lng)
	}
	return result
}

// ValidateProcessing validates a processing request
func (ev *EventValidator) ValidateProcessing(req *ProcessingRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if req == nil {
		result.add("request", "required", "request body is required", nil)
		return result
	}

	ev.requireID(result, "lot_id", req.LotID)
	ev.requireID(result, "processor_id", req.ProcessorID)
	ev.requireText(result, "process_type", req.ProcessType)
	ev.requireDate(result, "process_date", req.ProcessDate)
	ev.nonNegative(result, "input_quantity_kg", req.InputQuantityKg)
	ev.nonNegative(result, "output_quantity_kg", req.OutputQuantityKg)

	if req.YieldPercentage < 0 || req.YieldPercentage > 100 {
		result.add("yield_percentage", "range", "must be between 0 and 100", req.YieldPercentage)
	}
	return result
}

// ValidateQualityTest validates a quality test request. Numeric checks on
// parameter values belong to the compliance evaluator.
func (ev *EventValidator) ValidateQualityTest(req *QualityTestRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if req == nil {
		result.add("request", "required", "request body is required", nil)
		return result
	}

	ev.requireID(result, "lot_id", req.LotID)
	ev.requireID(result, "lab_id", req.LabID)
	ev.requireText(result, "test_type", req.TestType)
	ev.requireDate(result, "test_date", req.TestDate)

	if len(req.Parameters) == 0 {
		result.add("parameters", "required", "at least one measured parameter is required", nil)
	}
	for name, p := range req.Parameters {
		if strings.TrimSpace(name) == "" {
			result.add("parameters", "format", "parameter name is empty", nil)
		}
		if p.Value == nil {
			result.add("parameters."+name, "required", "value is required", nil)
		}
	}
	return result
}

// ValidatePack validates a pack minting request
func (ev *EventValidator) ValidatePack(req *PackRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if req == nil {
		result.add("request", "required", "request body is required", nil)
		return result
	}

	ev.requireID(result, "lot_id", req.LotID)
	ev.requireID(result, "manufacturer_id", req.ManufacturerID)
	ev.requireText(result, "sku", req.SKU)
	ev.requireText(result, "product_name", req.ProductName)
	ev.requireText(result, "batch_number", req.BatchNumber)
	ev.requireDate(result, "manufacture_date", req.ManufactureDate)

	if req.ExpiryDate.IsZero() {
		result.add("expiry_date", "required", "is required", nil)
	} else if !req.ManufactureDate.IsZero() && !req.ExpiryDate.After(req.ManufactureDate) {
		result.add("expiry_date", "date", "must be after manufacture_date", req.ExpiryDate)
	}

	total := 0.0
	for i, ing := range req.Ingredients {
		field := fmt.Sprintf("ingredients[%d]", i)
		if strings.TrimSpace(ing.Name) == "" {
			result.add(field+".name", "required", "is required", nil)
		}
		if ing.Percentage < 0 || ing.Percentage > 100 {
			result.add(field+".percentage", "range", "must be between 0 and 100", ing.Percentage)
		}
		total += ing.Percentage
	}
	if total > 100.001 {
		result.add("ingredients", "range", "percentages add up to more than 100", total)
	}
	return result
}

func (ev *EventValidator) requireText(result *ValidationResult, field, value string) {
	if strings.TrimSpace(value) == "" {
		result.add(field, "required", "is required", nil)
	}
}

func (ev *EventValidator) requireID(result *ValidationResult, field, value string) {
	if strings.TrimSpace(value) == "" {
		result.add(field, "required", "is required", nil)
		return
	}
	if !ev.idRegex.MatchString(value) {
		result.add(field, "format", "contains invalid characters", value)
	}
}

// requireDate rejects zero dates and dates further ahead than the configured tolerance
func (ev *EventValidator) requireDate(result *ValidationResult, field string, value time.Time) {
	if value.IsZero() {
		result.add(field, "required", "is required", nil)
		return
	}
	if value.After(ev.now().Add(ev.config.FutureTolerance)) {
		result.add(field, "date", "is in the future", value)
	}
}

func (ev *EventValidator) nonNegative(result *ValidationResult, field string, value float64) {
	if math.IsNaN(value) || value < 0 {
		result.add(field, "range", "must not be negative", value)
	}
}
