package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate checks configuration field constraints after defaults have
// been applied.
func Validate(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("config: telegram.token is required")
	}
	if !tokenPattern.MatchString(cfg.Telegram.Token) {
		return fmt.Errorf("config: telegram.token format invalid (expected <bot_id>:<hash>)")
	}
	if cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("config: telegram.chat_id is required")
	}

	if u, err := url.Parse(cfg.Telegram.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: telegram.api_url must be a valid http/https URL, got %q", cfg.Telegram.APIURL)
	}

	switch cfg.Telegram.Mode {
	case "polling":
	case "webhook":
		if cfg.Telegram.WebhookURL == "" {
			return fmt.Errorf("config: telegram.webhook_url is required in webhook mode")
		}
	default:
		return fmt.Errorf("config: telegram.mode must be \"polling\" or \"webhook\", got %q", cfg.Telegram.Mode)
	}

	if cfg.Telegram.PollingTimeout < 0 || cfg.Telegram.PollingTimeout > 50 {
		return fmt.Errorf("config: telegram.polling_timeout must be 0-50, got %d", cfg.Telegram.PollingTimeout)
	}

	if cfg.Gate.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("config: gate.poll_interval must be at least 100ms, got %s", cfg.Gate.PollInterval)
	}
	if cfg.Gate.WaitTimeout < cfg.Gate.PollInterval {
		return fmt.Errorf("config: gate.wait_timeout %s is shorter than poll_interval %s", cfg.Gate.WaitTimeout, cfg.Gate.PollInterval)
	}
	if cfg.Gate.Retention < cfg.Gate.WaitTimeout {
		return fmt.Errorf("config: gate.retention %s is shorter than wait_timeout %s", cfg.Gate.Retention, cfg.Gate.WaitTimeout)
	}

	return nil
}
