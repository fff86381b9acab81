package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "r8_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "r8_test", cfg.Replicate.APIToken)
	assert.Equal(t, "https://api.replicate.com", cfg.Replicate.APIURL)
	assert.Equal(t, "evalstate/flux1_schnell", cfg.Replicate.ModelVersion)
	assert.Equal(t, time.Second, cfg.Generation.PollInterval)
	assert.Equal(t, 120, cfg.Generation.MaxPollAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Generation.PollTimeout)
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
	assert.Equal(t, 25*time.Second, cfg.Worker.DrainTimeout)
	assert.False(t, cfg.SupabaseEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "r8_test")
	t.Setenv("GENERATION_POLL_INTERVAL", "250ms")
	t.Setenv("GENERATION_MAX_POLL_ATTEMPTS", "7")
	t.Setenv("GENERATION_POLL_TIMEOUT", "30s")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Generation.PollInterval)
	assert.Equal(t, 7, cfg.Generation.MaxPollAttempts)
	assert.Equal(t, 30*time.Second, cfg.Generation.PollTimeout)
	assert.True(t, cfg.SupabaseEnabled())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPLICATE_API_TOKEN")
}

func TestValidate_RejectsNonPositiveLimits(t *testing.T) {
	base := Config{
		Replicate:  ReplicateConfig{APIToken: "t", APIURL: "http://x"},
		Generation: GenerationConfig{PollInterval: time.Second, MaxPollAttempts: 1, PollTimeout: time.Second},
		Worker:     WorkerConfig{Concurrency: 1},
	}
	require.NoError(t, base.Validate())

	noAttempts := base
	noAttempts.Generation.MaxPollAttempts = 0
	assert.Error(t, noAttempts.Validate())

	noTimeout := base
	noTimeout.Generation.PollTimeout = 0
	assert.Error(t, noTimeout.Validate())

	noInterval := base
	noInterval.Generation.PollInterval = -time.Second
	assert.Error(t, noInterval.Validate())
}
