package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k1, k2 ,,")
	t.Setenv("PROVIDER_STRATEGY", "")
	t.Setenv("BAG_DESCRIBER", "")
	t.Setenv("BACKEND_URL", "https://backend.example.com/")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("CAROUSEL_TTL_HOURS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2"}, cfg.GeminiAPIKeys)
	assert.Equal(t, StrategyImagen3, cfg.ProviderStrategy)
	assert.Equal(t, DescriberGemini, cfg.BagDescriber)
	assert.Equal(t, "https://backend.example.com", cfg.BackendURL)
	assert.Equal(t, 24*time.Hour, cfg.CarouselTTL)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.SupabaseEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PROVIDER_STRATEGY", "Gemini")
	t.Setenv("CAROUSEL_TTL_HOURS", "2")
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("PUBLISH_WEBP_QUALITY", "75")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StrategyGemini, cfg.ProviderStrategy)
	assert.Equal(t, 2*time.Hour, cfg.CarouselTTL)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "cache.local:6380", cfg.GetRedisAddr())
	assert.Equal(t, float32(75), cfg.PublishWebPQuality)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("PROVIDER_STRATEGY", "midjourney")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "PROVIDER_STRATEGY")

	t.Setenv("PROVIDER_STRATEGY", "gemini")
	t.Setenv("BAG_DESCRIBER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	// no describer is built for backend strategies
	t.Setenv("PROVIDER_STRATEGY", "dalle")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DescriberOpenAI, cfg.BagDescriber)

	t.Setenv("BAG_DESCRIBER", "gemini")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "SUPABASE_SERVICE_KEY")
}

func TestLoadConfigVertexAIBackend(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_BACKEND", "vertexai")
	t.Setenv("VERTEXAI_PROJECT", "")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "VERTEXAI_PROJECT")

	t.Setenv("VERTEXAI_PROJECT", "bagify-prod")
	t.Setenv("VERTEXAI_LOCATION", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendVertexAI, cfg.GeminiBackend)
	assert.Equal(t, "bagify-prod", cfg.VertexAIProject)
	assert.Equal(t, "us-central1", cfg.VertexAILocation)
}
