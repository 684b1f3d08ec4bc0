package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), "")
	require.NoError(t, err, "Defaults should load")

	assert.Equal(t, "ayutrace", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 5*time.Second, cfg.Ledger.StorageTimeout)
	assert.Equal(t, []string{"microbial", "heavy-metals", "pesticide", "potency", "authenticity"}, cfg.Compliance.RecommendedTests)
	assert.Equal(t, "none", cfg.Anchor.Type)
	assert.Equal(t, 100, cfg.Notifications.QueueSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  type: memory
ledger:
  storage_timeout: 250ms
anchor:
  type: kafka
  brokers: ["localhost:9092"]
  topic: ledger
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err, "Config file should load")

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.StorageTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Anchor.Brokers)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseURLOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ayutrace")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/ayutrace", cfg.Storage.ConnectionString)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := load(viper.New(), "")
		require.NoError(t, err)
		return cfg
	}

	t.Run("UnknownStorage", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Type = "mongo"
		assert.Error(t, cfg.Validate())
	})

	t.Run("KafkaWithoutBrokers", func(t *testing.T) {
		cfg := valid()
		cfg.Anchor.Type = "kafka"
		cfg.Anchor.Brokers = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("NonPositiveTimeout", func(t *testing.T) {
		cfg := valid()
		cfg.Ledger.StorageTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("BadPort", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})
}
