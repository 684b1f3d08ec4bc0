package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartdevs17/ayutrace/internal/config"
	"github.com/smartdevs17/ayutrace/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Name: "ayutrace", Environment: "test"},
		Storage:    config.StorageConfig{Type: "memory"},
		Ledger:     config.LedgerConfig{StorageTimeout: time.Second},
		Compliance: config.ComplianceConfig{ThresholdCacheSize: 16},
		Anchor:     config.AnchorConfig{Type: "none"},
		Server:     config.ServerConfig{Host: "127.0.0.1", Port: 18081, EnableHealth: true},
		Logging:    config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"},
	}
}

func TestNewApplicationWiresComponents(t *testing.T) {
	app, err := NewApplication(testConfig())
	require.NoError(t, err)
	defer app.Stop()

	assert.Equal(t, 3, app.seeded)
	assert.Equal(t, "none", app.anchor.Name())
	assert.True(t, app.processor.IsRunning())

	lot, err := app.processor.CreateLot(app.ctx, &processor.CreateLotRequest{Name: "Guduchi stem", Species: "Tinospora cordifolia"})
	require.NoError(t, err)

	result, err := app.verifier.Verify(app.ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	stats := app.GetStats()
	assert.Equal(t, AppVersion, stats["version"])
	assert.Contains(t, stats, "storage")
	assert.Contains(t, stats, "processor")
}

func TestNewApplicationSeedsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := `
thresholds:
  - test_type: potency
    parameter: withanolides
    min_value: 2.5
    unit: "%"
    regulatory_body: AYUSH
    standard: API Vol. I
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := testConfig()
	cfg.Compliance.ThresholdsFile = path

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Stop()

	assert.Equal(t, 1, app.seeded)
	stored, err := app.thresholds.Get(app.ctx, "potency", "withanolides")
	require.NoError(t, err)
	assert.Equal(t, 2.5, *stored.MinValue)
}

func TestNewApplicationRejectsBadStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Type = "cassandra"

	_, err := NewApplication(cfg)
	assert.Error(t, err)
}
