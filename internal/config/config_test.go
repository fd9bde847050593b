package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, 1000, cfg.CacheCapacity)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Len(t, cfg.OpenRouterModels, 3)
	assert.Len(t, cfg.GeminiModels, 3)
	assert.True(t, cfg.InjectEvidence)
}

func TestLoad_ModelListParsing(t *testing.T) {
	t.Setenv("OPENROUTER_MODELS", "meta-llama/llama-3.3-70b-instruct:free,google/gemma-2-9b-it:free")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.OpenRouterModels, 2)
	assert.Equal(t, "google/gemma-2-9b-it:free", cfg.OpenRouterModels[1])
}

func TestInstitutePages(t *testing.T) {
	cfg := Config{
		InstituteBaseURL:  "https://iestpjva.edu.pe/",
		InstitutePagePath: []string{"/", "/admision/matricula", "contactanos", " ", ""},
	}
	assert.Equal(t, []string{
		"https://iestpjva.edu.pe",
		"https://iestpjva.edu.pe/admision/matricula",
		"https://iestpjva.edu.pe/contactanos",
	}, cfg.InstitutePages())
}
