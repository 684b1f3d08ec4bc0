package compliance

import (
	"context"
	"os"

	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
	"gopkg.in/yaml.v2"
)

// ThresholdFile is the layout of a threshold seed file
type ThresholdFile struct {
	Thresholds []models.ComplianceThreshold `yaml:"thresholds"`
}

// LoadThresholdsFile reads thresholds from a YAML seed file
func LoadThresholdsFile(path string) ([]*models.ComplianceThreshold, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeConfiguration, "Failed to read thresholds file", err)
	}

	var file ThresholdFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, utils.WrapAppError(utils.ErrCodeConfiguration, "Failed to parse thresholds file", err)
	}

	thresholds := make([]*models.ComplianceThreshold, 0, len(file.Thresholds))
	for i := range file.Thresholds {
		t := file.Thresholds[i]
		if err := ValidateThreshold(&t); err != nil {
			return nil, err
		}
		thresholds = append(thresholds, &t)
	}
	return thresholds, nil
}

// DefaultThresholds returns the built-in regulatory limits
func DefaultThresholds() []*models.ComplianceThreshold {
	return []*models.ComplianceThreshold{
		{
			TestType:       "microbial",
			Parameter:      "total_aerobic_count",
			MaxValue:       float64Ptr(100000),
			Unit:           "CFU/g",
			RegulatoryBody: "AYUSH",
			Standard:       "AS 3.6.1",
		},
		{
			TestType:       "heavy-metals",
			Parameter:      "lead",
			MaxValue:       float64Ptr(10),
			Unit:           "ppm",
			RegulatoryBody: "AYUSH",
			Standard:       "AS 2.3.13",
		},
		{
			TestType:       "pesticide",
			Parameter:      "organophosphates",
			MaxValue:       float64Ptr(0.1),
			Unit:           "ppm",
			RegulatoryBody: "FSSAI",
			Standard:       "PFA-1954",
		},
	}
}

// Seed stores every threshold whose key is not present yet and returns how
// many were added. Existing thresholds are left untouched.
func Seed(ctx context.Context, store *ThresholdStore, thresholds []*models.ComplianceThreshold) (int, error) {
	added := 0
	for _, t := range thresholds {
		_, err := store.Get(ctx, t.TestType, t.Parameter)
		if err == nil {
			continue
		}
		if !utils.IsNotFound(err) {
			return added, err
		}
		if _, err := store.Put(ctx, t); err != nil {
			return added, err
		}
		added++
	}

	store.logger.WithField("added", added).Info("Compliance thresholds seeded")
	return added, nil
}

func float64Ptr(v float64) *float64 { return &v }
