package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/config"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
	})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/storefront",
		"REDIS_URL":    "redis://localhost:6379",
		"PORT":         "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "storefront", cfg.MetricsNamespace)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, int32(5), cfg.LowStockThreshold)
	require.Equal(t, 6, cfg.QueueMaxAttempts)
	require.True(t, cfg.SecurityHeaders)
	require.False(t, cfg.WebhooksEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost:5432/storefront",
		"REDIS_URL":         "redis://localhost:6379",
		"PORT":              "9090",
		"CHECKOUT_RATE_MAX": "5",
		"CATALOG_CACHE_TTL": "90s",
		"WEBHOOKS_ENABLED":  "true",
		"DEFAULT_STORE_ID":  "5f0f1f9e-7d0a-4b59-8ac9-0a4da24c131b",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 5, cfg.CheckoutRateMax)
	require.Equal(t, 90*time.Second, cfg.CatalogCacheTTL)
	require.True(t, cfg.WebhooksEnabled)
	require.Equal(t, "5f0f1f9e-7d0a-4b59-8ac9-0a4da24c131b", cfg.DefaultStoreID)
}
