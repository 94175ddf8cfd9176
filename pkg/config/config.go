// Package config loads and persists the nightjar configuration.
//
// Configuration comes from three layers, later layers overriding earlier ones:
//
//  1. Built-in defaults
//  2. config.toml in the nightjar home directory
//  3. Environment variables (NIGHTJAR_*, all values trimmed, empty = unset)
//
// The config file is rewritten by Save() after every successful pairing so
// that minted bearer tokens survive restarts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration object. A single instance is shared by the
// gateway, the chat bridge, and the sidecar supervisor; mutation after startup
// happens only through Save-guarded token persistence.
type Config struct {
	// ConfigPath is where this config was loaded from (and where Save writes).
	// Not serialized.
	ConfigPath string `toml:"-"`

	WorkspaceDir       string  `toml:"workspace_dir"`
	DefaultProvider    string  `toml:"default_provider"`
	DefaultModel       string  `toml:"default_model"`
	DefaultTemperature float64 `toml:"default_temperature"`

	Gateway       GatewayConfig       `toml:"gateway"`
	Tunnel        TunnelConfig        `toml:"tunnel"`
	Memory        MemoryConfig        `toml:"memory"`
	Channels      ChannelsConfig      `toml:"channels"`
	Observability ObservabilityConfig `toml:"observability"`
}

// GatewayConfig controls the HTTP listener and the admission layer.
type GatewayConfig struct {
	Host                      string   `toml:"host"`
	Port                      int      `toml:"port"`
	RequirePairing            bool     `toml:"require_pairing"`
	PairedTokens              []string `toml:"paired_tokens"`
	AllowPublicBind           bool     `toml:"allow_public_bind"`
	TrustForwardedHeaders     bool     `toml:"trust_forwarded_headers"`
	PairRateLimitPerMinute    int      `toml:"pair_rate_limit_per_minute"`
	WebhookRateLimitPerMinute int      `toml:"webhook_rate_limit_per_minute"`
	RateLimitMaxKeys          int      `toml:"rate_limit_max_keys"`
	IdempotencyTTLSecs        int      `toml:"idempotency_ttl_secs"`
	IdempotencyMaxKeys        int      `toml:"idempotency_max_keys"`
}

// TunnelConfig selects the optional public tunnel provider. "none" disables
// tunneling; any other value counts as a tunnel for the bind-safety check.
type TunnelConfig struct {
	Provider string `toml:"provider"`
}

// MemoryConfig controls conversation auto-save.
type MemoryConfig struct {
	AutoSave bool `toml:"auto_save"`
	// Path of the sqlite database file, relative to the workspace when not
	// absolute. Empty means "memory/conversations.db".
	Path string `toml:"path"`
}

// ObservabilityConfig selects the metrics backend ("prometheus" or "none").
type ObservabilityConfig struct {
	Backend string `toml:"backend"`
}

// ChannelsConfig holds per-channel credentials. A nil section means the
// channel is not configured and its webhook endpoint answers 404.
type ChannelsConfig struct {
	Webhook       *WebhookChannelConfig       `toml:"webhook"`
	WhatsApp      *WhatsAppChannelConfig      `toml:"whatsapp"`
	Linq          *LinqChannelConfig          `toml:"linq"`
	NextcloudTalk *NextcloudTalkChannelConfig `toml:"nextcloud_talk"`
	Wati          *WatiChannelConfig          `toml:"wati"`
}

// WebhookChannelConfig guards POST /webhook with a shared secret.
type WebhookChannelConfig struct {
	Secret string `toml:"secret"`
}

// WhatsAppChannelConfig holds Meta Cloud API credentials.
type WhatsAppChannelConfig struct {
	AccessToken    string   `toml:"access_token"`
	PhoneNumberID  string   `toml:"phone_number_id"`
	VerifyToken    string   `toml:"verify_token"`
	AppSecret      string   `toml:"app_secret"`
	AllowedNumbers []string `toml:"allowed_numbers"`
}

// IsCloudConfig reports whether the WhatsApp section carries enough of the
// Cloud API credentials to build a client.
func (c *WhatsAppChannelConfig) IsCloudConfig() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.PhoneNumberID) != ""
}

// LinqChannelConfig holds Linq (iMessage/RCS/SMS) credentials.
type LinqChannelConfig struct {
	APIToken       string   `toml:"api_token"`
	FromPhone      string   `toml:"from_phone"`
	SigningSecret  string   `toml:"signing_secret"`
	AllowedSenders []string `toml:"allowed_senders"`
}

// NextcloudTalkChannelConfig holds Nextcloud Talk bot credentials.
type NextcloudTalkChannelConfig struct {
	BaseURL       string   `toml:"base_url"`
	AppToken      string   `toml:"app_token"`
	WebhookSecret string   `toml:"webhook_secret"`
	AllowedUsers  []string `toml:"allowed_users"`
}

// WatiChannelConfig holds WATI WhatsApp credentials.
type WatiChannelConfig struct {
	APIToken       string   `toml:"api_token"`
	APIURL         string   `toml:"api_url"`
	TenantID       string   `toml:"tenant_id"`
	AllowedNumbers []string `toml:"allowed_numbers"`
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		ConfigPath:         filepath.Join(dir, "config.toml"),
		WorkspaceDir:       filepath.Join(dir, "workspace"),
		DefaultProvider:    "openrouter",
		DefaultModel:       "anthropic/claude-sonnet-4",
		DefaultTemperature: 0.7,
		Gateway: GatewayConfig{
			Host:                      "127.0.0.1",
			Port:                      3000,
			RequirePairing:            true,
			PairRateLimitPerMinute:    10,
			WebhookRateLimitPerMinute: 60,
			IdempotencyTTLSecs:        600,
		},
		Tunnel:        TunnelConfig{Provider: "none"},
		Memory:        MemoryConfig{AutoSave: true},
		Observability: ObservabilityConfig{Backend: "prometheus"},
	}
}

// Load reads config.toml from dir, applying defaults for absent fields and
// environment overrides on top. A missing file is not an error; defaults are
// returned so first boot works without any setup.
func Load(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(cfg.ConfigPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.ConfigPath, err)
		}
	case os.IsNotExist(err):
		// First boot: keep defaults.
	default:
		return nil, fmt.Errorf("read %s: %w", cfg.ConfigPath, err)
	}

	cfg.applyEnvOverrides()

	if !filepath.IsAbs(cfg.WorkspaceDir) {
		cfg.WorkspaceDir = filepath.Join(dir, cfg.WorkspaceDir)
	}
	return cfg, nil
}

// Save writes the config back to ConfigPath atomically (temp file + rename)
// so a crash mid-write never truncates the paired token list.
func (c *Config) Save() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("config path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(c.ConfigPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := c.ConfigPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, c.ConfigPath); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// applyEnvOverrides copies recognized NIGHTJAR_* variables over file values.
func (c *Config) applyEnvOverrides() {
	if v := Getenv("NIGHTJAR_GATEWAY_HOST"); v != "" {
		c.Gateway.Host = v
	}
	if v := Getenv("NIGHTJAR_WORKSPACE_DIR"); v != "" {
		c.WorkspaceDir = v
	}
	if v := Getenv("NIGHTJAR_DEFAULT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := Getenv("NIGHTJAR_WHATSAPP_APP_SECRET"); v != "" {
		if c.Channels.WhatsApp == nil {
			c.Channels.WhatsApp = &WhatsAppChannelConfig{}
		}
		c.Channels.WhatsApp.AppSecret = v
	}
	if v := Getenv("NIGHTJAR_LINQ_SIGNING_SECRET"); v != "" {
		if c.Channels.Linq == nil {
			c.Channels.Linq = &LinqChannelConfig{}
		}
		c.Channels.Linq.SigningSecret = v
	}
	if v := Getenv("NIGHTJAR_NEXTCLOUD_TALK_WEBHOOK_SECRET"); v != "" {
		if c.Channels.NextcloudTalk == nil {
			c.Channels.NextcloudTalk = &NextcloudTalkChannelConfig{}
		}
		c.Channels.NextcloudTalk.WebhookSecret = v
	}
}

// Getenv returns the trimmed value of the first non-empty variable.
// An all-whitespace value counts as unset.
func Getenv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// EnvFlag reports whether name is set to a truthy value (1/true/yes/on).
func EnvFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
