package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultRedisAddr, cfg.RedisAddr)
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Len(t, cfg.STUNServers, 2)
	assert.Equal(t, "stun:stun.l.google.com:19302", cfg.STUNServers[0])
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("BEAMDROP_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("BEAMDROP_NAMESPACE", "family")
	t.Setenv("BEAMDROP_REDIS_DB", "3")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "family", cfg.Namespace)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadFlagsBeatEnv(t *testing.T) {
	t.Setenv("BEAMDROP_REDIS_ADDR", "from-env:6379")
	t.Setenv("BEAMDROP_DEVICE_NAME", "Env Device")

	cfg, err := Load(Options{
		RedisAddr:  "from-flag:6379",
		DeviceName: "Flag Device",
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag:6379", cfg.RedisAddr)
	assert.Equal(t, "Flag Device", cfg.DeviceName)
}

func TestSTUNServerSplitting(t *testing.T) {
	cfg, err := Load(Options{STUNServers: "stun:a.example:3478, stun:b.example:3478 ,,"})
	require.NoError(t, err)

	assert.Equal(t, []string{"stun:a.example:3478", "stun:b.example:3478"}, cfg.GetSTUNServers())
}
