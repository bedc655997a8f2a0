package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DURATION_MODE", "")
	t.Setenv("PAYMENT_CURRENCY", "")

	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "decimal", cfg.DurationMode)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.Jobs.ReconcileInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("PAYMENT_CURRENCY", "EUR")

	cfg := Load()

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.InDelta(t, 2.5, cfg.RateLimit.RPS, 1e-9)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "eur", cfg.Payment.Currency)
}

func TestElasticsearchDisabledWithoutURL(t *testing.T) {
	t.Setenv("ELASTICSEARCH_URL", "")
	assert.False(t, LoadElasticsearchConfig().Enabled)

	t.Setenv("ELASTICSEARCH_URL", "http://es:9200")
	cfg := LoadElasticsearchConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "cars", cfg.Index)
}
