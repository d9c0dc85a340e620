package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8090, cfg.App.Port)
	assert.Equal(t, "https://api.accord.app", cfg.Backend.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Backend.RequestTimeout)

	assert.Equal(t, 2500*time.Millisecond, cfg.Flow.QRPollInterval)
	assert.Equal(t, 30*time.Second, cfg.Flow.QRCountdown)
	assert.Equal(t, 3*time.Second, cfg.Flow.DownloadPollInterval)
	assert.Equal(t, 50, cfg.Flow.ContactPageSize)
	assert.Equal(t, 20, cfg.Flow.PreviewLimit)
	assert.Equal(t, 10*time.Minute, cfg.Flow.PreviewTTL)
	assert.Equal(t, 30*time.Minute, cfg.Flow.InstanceTTL)

	assert.False(t, cfg.Mongo.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://backend.test:9000")
	t.Setenv("FLOW_CONTACT_PAGE_SIZE", "25")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://backend.test:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 25, cfg.Flow.ContactPageSize)
}
