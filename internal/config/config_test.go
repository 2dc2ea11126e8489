package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
directory:
  url: "postgres://localhost/directory"
resolver:
  app_domain: "clinicacloud.com.br"
  preview_domains: ["vercel.app"]
cache:
  max_idle: 10m
  reap_interval: 1m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/directory", cfg.Directory.URL)
	assert.Equal(t, "clinicacloud.com.br", cfg.Resolver.AppDomain)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MaxIdle.Std())
	assert.Equal(t, time.Minute, cfg.Cache.ReapInterval.Std())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "clinica_shared", cfg.Store.SharedName)
	assert.Equal(t, "desenvolvimento", cfg.Resolver.DevTenantKey)
	assert.Equal(t, 30*time.Minute, cfg.Cache.MaxIdle.Std())
	assert.Equal(t, 5*time.Minute, cfg.Cache.ReapInterval.Std())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DIRECTORY_URL", "postgres://env-wins/directory")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(writeConfig(t, `
directory:
  url: "postgres://yaml/directory"
auth:
  jwt_secret: "yaml-secret"
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-wins/directory", cfg.Directory.URL)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestInvalidDuration(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
cache:
  max_idle: "soon"
`))
	assert.Error(t, err)
}
