package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FUSION_CONFIG", "")
	t.Setenv("TIMER_PERIOD", "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.Timer.InitialDelay)
	assert.Equal(t, 10*time.Second, c.Timer.Period)
	assert.Equal(t, 10*time.Second, c.Generator.Timeout)
	assert.Equal(t, "fusion", c.NATSPrefix)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.yaml")
	yml := `
addr: ":9000"
redis_addr: "cache:6379"
sweeper:
  period: 30s
  threshold: 5m
timer:
  period: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("REDIS_ADDR", "override:6379")
	t.Setenv("GENERATOR_TIMEOUT", "4")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, "override:6379", c.RedisAddr)
	assert.Equal(t, 30*time.Second, c.Sweeper.Period)
	assert.Equal(t, 5*time.Minute, c.Sweeper.Threshold)
	assert.Equal(t, time.Second, c.Timer.Period)
	assert.Equal(t, 3*time.Second, c.Timer.InitialDelay)
	assert.Equal(t, 4*time.Second, c.Generator.Timeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("FUSION_CONFIG", "")

	t.Setenv("TIMER_PERIOD", "0s")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadOriginsAndKeys(t *testing.T) {
	t.Setenv("FUSION_CONFIG", "")
	t.Setenv("ALLOWED_ORIGINS", "example.com,*.example.org")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "*.example.org"}, c.AllowedOrigins)

	t.Setenv("TOKEN_PRIVATE_KEY", "/keys/token")
	_, err = Load("")
	assert.Error(t, err, "a private key needs its public half")
}
