package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentswap.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "database", cfg.Cache.Store)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, "https://li.quest/v1", cfg.Swap.RouterURL)
	assert.InDelta(t, 0.02, cfg.Swap.Fee, 1e-9)
	assert.Equal(t, "LIFI_API_KEY", cfg.Swap.APIKeyEnv)
	assert.Equal(t, filepath.Join(base, "chains.yaml"), cfg.Web3.ChainConfig)
	assert.Equal(t, filepath.Join(base, "data"), cfg.Runtime.DataDir)
	assert.Equal(t, filepath.Join(base, "cache"), cfg.Cache.Dir)
}

func TestLoadRejectsMySQLWithoutDSN(t *testing.T) {
	path := writeConfig(t, `{"storage":{"driver":"MySQL"}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn")
}

func TestLoadRejectsUnknownQueue(t *testing.T) {
	path := writeConfig(t, `{"queue":{"driver":"kafka"}}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadKeepsAbsolutePaths(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "chains.yaml")
	path := writeConfig(t, `{"web3":{"chain_config":"`+filepath.ToSlash(abs)+`"},"swap":{"fee":0.01}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Web3.ChainConfig)
	assert.InDelta(t, 0.01, cfg.Swap.Fee, 1e-9)
}

func TestLoadResolvesPluginAndAlertingDefaults(t *testing.T) {
	path := writeConfig(t, `{"plugins":{"config":"plugins.yaml"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "plugins.yaml"), cfg.Plugins.Config)
	assert.Equal(t, "ALERT_WEBHOOK_URL", cfg.Alerting.WebhookURLEnv)
	assert.Empty(t, cfg.Alerting.WebhookURL)
}
