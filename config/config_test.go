package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	require.NoError(t, LoadConfig())

	assert.Equal(t, "8080", AppConfig.Server.Port)
	assert.Empty(t, AppConfig.Server.AllowedOrigins)
	assert.Equal(t, "16:9", AppConfig.Generation.DefaultAspectRatio)
	assert.Equal(t, "720p", AppConfig.Generation.DefaultResolution)
	assert.Equal(t, 8, AppConfig.Generation.DefaultDuration)
	assert.False(t, AppConfig.Generation.LenientFields)
}

func TestLoadConfigAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com,")

	require.NoError(t, LoadConfig())
	assert.Equal(t,
		[]string{"https://app.example.com", "https://staging.example.com"},
		AppConfig.Server.AllowedOrigins)
}

func TestLoadConfigLenientFields(t *testing.T) {
	t.Setenv("GEN_LENIENT_FIELDS", "true")

	require.NoError(t, LoadConfig())
	assert.True(t, AppConfig.Generation.LenientFields)
}
