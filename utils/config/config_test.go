package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sthembisoo/airbrake-notifier/notifier"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airbrake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Setenv("AIRBRAKE_API_KEY", "")
	t.Setenv("AIRBRAKE_ENV", "")
	t.Setenv("AIRBRAKE_ENDPOINT", "")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PWD", "/srv/app")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, notifier.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "/srv/app", cfg.ProjectRoot)
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_key: file-key
environment: staging
name: billing
url: https://billing.example.com
project_root: /opt/billing
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "billing", cfg.Name)
	assert.Equal(t, "https://billing.example.com", cfg.URL)
	assert.Equal(t, "/opt/billing", cfg.ProjectRoot)
	assert.Equal(t, notifier.DefaultEndpoint, cfg.Endpoint)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIRBRAKE_API_KEY", "env-key")
	t.Setenv("AIRBRAKE_ENDPOINT", "http://localhost:8080/notices")
	path := writeConfig(t, "api_key: file-key\nenvironment: staging\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "http://localhost:8080/notices", cfg.Endpoint)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "api_key: [unterminated"))
	assert.ErrorContains(t, err, "failed to decode config file")
}

func TestValidate(t *testing.T) {
	err := (&Config{Environment: "prod"}).Validate()
	assert.ErrorContains(t, err, "api key required")
	assert.NotContains(t, err.Error(), "environment required")

	err = (&Config{APIKey: "k"}).Validate()
	assert.ErrorContains(t, err, "environment required")
}

func TestOptions(t *testing.T) {
	cfg := &Config{
		APIKey:      "k",
		Environment: "prod",
		Name:        "n",
		URL:         "https://example.com",
		ProjectRoot: "/srv",
	}

	n := notifier.New(cfg.Name, cfg.Options()...)
	assert.True(t, n.Configured())

	notice := n.BuildNotice(notifier.NewExceptionInfo(assert.AnError), nil)
	assert.Equal(t, "k", notice.APIKey)
	assert.Equal(t, "https://example.com", notice.Notifier.URL)
	assert.Equal(t, "/srv", notice.ServerEnvironment.ProjectRoot)
	assert.Equal(t, "prod", notice.ServerEnvironment.EnvironmentName)
}
