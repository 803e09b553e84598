package main

import (
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvDefaults(t *testing.T) {
	cfg := envConfig{}
	require.NoError(t, env.Parse(&cfg))

	// A fresh deployment must publish aggregated parameters as-is;
	// blending against the prior model is opt-in.
	assert.Equal(t, 1.0, cfg.Blend)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "default", cfg.Domain)
	assert.Equal(t, 1, cfg.RoundQuorum)
	assert.Equal(t, 3, cfg.MaxMissed)
}
