package compliance

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// ThresholdLister supplies the thresholds for a test type
type ThresholdLister interface {
	List(ctx context.Context, testType string) ([]*models.ComplianceThreshold, error)
}

// Evaluator checks measured parameters against the regulatory thresholds of
// their test type.
type Evaluator struct {
	thresholds ThresholdLister
	logger     *logrus.Entry
}

// NewEvaluator creates an evaluator reading thresholds from thresholds
func NewEvaluator(thresholds ThresholdLister) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		logger:     utils.ComponentLogger("evaluator"),
	}
}

// Evaluate derives a status for every parameter and the overall test status.
// A parameter without a threshold passes. A parameter with a threshold must
// carry a numeric value; anything else is a validation error and nothing is
// returned.
func (e *Evaluator) Evaluate(ctx context.Context, testType string, parameters map[string]models.MeasuredParameter) (map[string]models.ParameterResult, models.TestStatus, error) {
	if testType == "" {
		return nil, "", utils.NewValidationError("Test type is required")
	}

	thresholds, err := e.thresholds.List(ctx, testType)
	if err != nil {
		return nil, "", err
	}
	byParameter := make(map[string]*models.ComplianceThreshold, len(thresholds))
	for _, t := range thresholds {
		byParameter[t.Parameter] = t
	}

	overall := models.TestStatusPass
	results := make(map[string]models.ParameterResult, len(parameters))

	for name, measured := range parameters {
		result := models.ParameterResult{
			Value:  measured.Value,
			Unit:   measured.Unit,
			Status: models.ParameterStatusPass,
		}

		threshold, ok := byParameter[name]
		if !ok {
			results[name] = result
			continue
		}

		value, ok := NumericValue(measured.Value)
		if !ok {
			return nil, "", utils.NewValidationError("Measured value is not numeric", name)
		}

		result.Threshold = &models.ThresholdSnapshot{
			MinValue:       threshold.MinValue,
			MaxValue:       threshold.MaxValue,
			Unit:           threshold.Unit,
			RegulatoryBody: threshold.RegulatoryBody,
			Standard:       threshold.Standard,
		}
		if outOfRange(value, threshold) {
			result.Status = models.ParameterStatusFail
			overall = models.TestStatusFail
		}
		results[name] = result
	}

	e.logger.WithFields(logrus.Fields{
		"test_type":  testType,
		"parameters": len(parameters),
		"status":     overall,
	}).Debug("Quality test evaluated")

	return results, overall, nil
}

func outOfRange(value float64, threshold *models.ComplianceThreshold) bool {
	if threshold.MaxValue != nil && value > *threshold.MaxValue {
		return true
	}
	return threshold.MinValue != nil && value < *threshold.MinValue
}

// NumericValue converts a measured value to float64. JSON numbers, Go
// numeric types and strings holding a finite float are numeric.
func NumericValue(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
