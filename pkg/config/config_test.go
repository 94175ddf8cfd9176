package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.True(t, cfg.Gateway.RequirePairing)
	assert.Equal(t, "none", cfg.Tunnel.Provider)
	assert.Equal(t, filepath.Join(dir, "workspace"), cfg.WorkspaceDir)
	assert.Empty(t, cfg.Gateway.PairedTokens)
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	body := `
default_model = "test/model"

[gateway]
require_pairing = false
trust_forwarded_headers = true
webhook_rate_limit_per_minute = 5
paired_tokens = ["aaaa", "bbbb"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "test/model", cfg.DefaultModel)
	assert.False(t, cfg.Gateway.RequirePairing)
	assert.True(t, cfg.Gateway.TrustForwardedHeaders)
	assert.Equal(t, 5, cfg.Gateway.WebhookRateLimitPerMinute)
	assert.Equal(t, []string{"aaaa", "bbbb"}, cfg.Gateway.PairedTokens)
}

func TestSaveRoundTripsPairedTokens(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	cfg.Gateway.PairedTokens = []string{"deadbeef"}
	require.NoError(t, cfg.Save())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"deadbeef"}, reloaded.Gateway.PairedTokens)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NIGHTJAR_NEXTCLOUD_TALK_WEBHOOK_SECRET", "  shh  ")
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.Channels.NextcloudTalk)
	assert.Equal(t, "shh", cfg.Channels.NextcloudTalk.WebhookSecret)
}

func TestGetenvTreatsWhitespaceAsUnset(t *testing.T) {
	t.Setenv("NIGHTJAR_TEST_A", "   ")
	t.Setenv("NIGHTJAR_TEST_B", " value ")
	assert.Equal(t, "value", Getenv("NIGHTJAR_TEST_A", "NIGHTJAR_TEST_B"))
}

func TestEnvFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("NIGHTJAR_TEST_FLAG", v)
		assert.True(t, EnvFlag("NIGHTJAR_TEST_FLAG"), v)
	}
	for _, v := range []string{"", "0", "off", "nope"} {
		t.Setenv("NIGHTJAR_TEST_FLAG", v)
		assert.False(t, EnvFlag("NIGHTJAR_TEST_FLAG"), v)
	}
}
