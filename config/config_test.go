package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves into an empty directory so no stray .env file is read.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8800, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, RuntimeDocker, cfg.Runtime)
	assert.Equal(t, []string{"tcp://127.0.0.1:2375", "env"}, cfg.DockerHosts)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.RunTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, 3, cfg.RecentErrors)
	assert.True(t, cfg.LegacyRoutes)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.ConsulAddr)
	assert.Zero(t, cfg.RunRate)
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JOBLEDGER_PORT", "9999")
	t.Setenv("JOBLEDGER_RUNTIME", "Nomad")
	t.Setenv("JOBLEDGER_DOCKER_HOSTS", "unix:///var/run/docker.sock")
	t.Setenv("JOBLEDGER_RUN_TIMEOUT", "90s")
	t.Setenv("JOBLEDGER_DATABASE_URL", "postgres://test:test@db:5432/jobs")
	t.Setenv("JOBLEDGER_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("JOBLEDGER_LEGACY_ROUTES", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, RuntimeNomad, cfg.Runtime)
	assert.Equal(t, []string{"unix:///var/run/docker.sock"}, cfg.DockerHosts)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, "postgres://test:test@db:5432/jobs", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.False(t, cfg.LegacyRoutes)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBLEDGER_SERVICE_NAME=ledger-dev\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("JOBLEDGER_SERVICE_NAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ledger-dev", cfg.ServiceName)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JOBLEDGER_RUN_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	cfg := &Config{
		Port:          -1,
		Runtime:       "podman",
		MaxConcurrent: 0,
		RunRate:       -5,
		RunBurst:      0,
		RecentErrors:  -2,
	}
	cfg.Sanitize()

	assert.Equal(t, 8800, cfg.Port)
	assert.Equal(t, RuntimeDocker, cfg.Runtime)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Zero(t, cfg.RunRate)
	assert.Equal(t, 1, cfg.RunBurst)
	assert.Equal(t, 3, cfg.RecentErrors)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 60*time.Second, cfg.RunTimeout)
}
