// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for telegate.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telegate/telegate/internal/policy"
)

// Config is the top-level configuration structure.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Gate     GateConfig     `yaml:"gate"`
	Policy   policy.Config  `yaml:"policy"`
}

// TelegramConfig holds the bot credentials and the responder transport.
type TelegramConfig struct {
	// Token is the bot token from @BotFather.
	Token string `yaml:"token"`

	// ChatID is the chat that receives approval prompts.
	ChatID int64 `yaml:"chat_id"`

	// APIURL overrides the Bot API base URL (tests, self-hosted relays).
	APIURL string `yaml:"api_url"`

	// Mode selects how the responder daemon receives updates:
	// "polling" (getUpdates long poll) or "webhook".
	Mode string `yaml:"mode"`

	// PollingTimeout is the getUpdates long-poll timeout in seconds.
	PollingTimeout int `yaml:"polling_timeout"`

	// WebhookURL is the public URL Telegram posts updates to.
	WebhookURL string `yaml:"webhook_url"`

	// WebhookSecret is checked against X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string `yaml:"webhook_secret"`

	// ListenAddr is the responder daemon's HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`
}

// GateConfig holds the approval-request lifecycle settings.
type GateConfig struct {
	// StorePath is the SQLite database shared by the gate and the
	// responder daemon. Empty means <data dir>/approvals.db.
	StorePath string `yaml:"store_path"`

	// PollInterval is how often the blocked gate re-reads its request.
	PollInterval time.Duration `yaml:"poll_interval"`

	// WaitTimeout bounds the wait for a human response. On expiry the
	// gate fails open.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// Retention is how long any request record may exist before the
	// reaper collects it, resolved or not.
	Retention time.Duration `yaml:"retention"`
}

// UnmarshalYAML decodes the gate section with Go duration strings ("1s",
// "300s"). yaml.v3 has no native time.Duration support.
func (g *GateConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		StorePath    string `yaml:"store_path"`
		PollInterval string `yaml:"poll_interval"`
		WaitTimeout  string `yaml:"wait_timeout"`
		Retention    string `yaml:"retention"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	g.StorePath = raw.StorePath

	fields := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"poll_interval", raw.PollInterval, &g.PollInterval},
		{"wait_timeout", raw.WaitTimeout, &g.WaitTimeout},
		{"retention", raw.Retention, &g.Retention},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return fmt.Errorf("gate.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// Defaults applies default values to unset fields.
func (c *Config) Defaults() {
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = "polling"
	}
	if c.Telegram.PollingTimeout == 0 {
		c.Telegram.PollingTimeout = 30
	}
	if c.Telegram.ListenAddr == "" {
		c.Telegram.ListenAddr = ":8731"
	}

	if c.Gate.PollInterval <= 0 {
		c.Gate.PollInterval = time.Second
	}
	if c.Gate.WaitTimeout <= 0 {
		c.Gate.WaitTimeout = 300 * time.Second
	}
	if c.Gate.Retention <= 0 {
		c.Gate.Retention = 600 * time.Second
	}

	if c.Policy.Skip == nil && c.Policy.Rules == nil {
		c.Policy = policy.Default()
	}
}
