package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.FHIR.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.FHIR.SearchCacheTTL)
	assert.True(t, cfg.Reconcile.Enabled)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("FHIR_BASE_URL", "https://fhir.example.org/r4/")
	t.Setenv("FHIR_TIMEOUT", "not-a-duration")
	t.Setenv("RECONCILE_INTERVAL", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ADMIN_USERNAME", "root")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "https://fhir.example.org/r4", cfg.FHIR.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.FHIR.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "root", cfg.Bootstrap.AdminUsername)
}

func TestUnknownStoreDriverFallsBackToPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
}
