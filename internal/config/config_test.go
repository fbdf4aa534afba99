package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
storage:
  path: "/tmp/outlines.db"
ai:
  provider: "gemini"
  model: "gemini-2.0-flash"
  api_key: "from-file"
billing:
  webhook_secret: "whsec_file"
  success_url: "https://app.example/done"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/outlines.db", cfg.Storage.Path)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "whsec_file", cfg.Billing.WebhookSecret)
	assert.Equal(t, "https://app.example/done", cfg.Billing.SuccessURL)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "ai:\n  api_key: \"k\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "scriptloom.db", cfg.Storage.Path)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SCRIPTLOOM_API_KEY", "from-env")
	t.Setenv("SCRIPTLOOM_AI_PROVIDER", "openai")
	t.Setenv("SCRIPTLOOM_WEBHOOK_SECRET", "whsec_env")

	path := writeConfig(t, `
ai:
  provider: "gemini"
  api_key: "from-file"
billing:
  webhook_secret: "whsec_file"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AI.APIKey)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "whsec_env", cfg.Billing.WebhookSecret)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
