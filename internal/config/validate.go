package config

import (
	"fmt"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
)

// Validate checks the structural settings every command depends on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return ouvErrors.Config(fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}

	switch strings.ToLower(strings.TrimSpace(c.Sessions.Backend)) {
	case "memory", "pebble":
	default:
		return ouvErrors.Config(fmt.Sprintf("sessions.backend %q must be memory or pebble", c.Sessions.Backend))
	}

	switch c.Intake.Flow {
	case "full", "short":
	default:
		return ouvErrors.Config(fmt.Sprintf("intake.flow %q must be full or short", c.Intake.Flow))
	}

	if strings.TrimSpace(c.Records.Table) == "" {
		return ouvErrors.Config("records.table is required")
	}

	durations := map[string]string{
		"intake.session_timeout":      c.Intake.SessionTimeout,
		"intake.intelligence_timeout": c.Intake.IntelligenceTimeout,
		"ingress.idempotency_ttl":     c.Ingress.IdempotencyTTL,
		"ingress.send_timeout":        c.Ingress.SendTimeout,
	}
	for key, value := range durations {
		d, err := DurationOrDefault(value, "")
		if err != nil {
			return ouvErrors.Config(fmt.Sprintf("%s: %v", key, err))
		}
		if d <= 0 {
			return ouvErrors.Config(fmt.Sprintf("%s must be positive", key))
		}
	}

	if c.Ingress.RateRPS < 0 || c.Ingress.RateBurst < 0 {
		return ouvErrors.Config("ingress.rate_rps and ingress.rate_burst must not be negative")
	}
	if c.Ingress.LookupRPS < 0 || c.Ingress.LookupBurst < 0 {
		return ouvErrors.Config("ingress.lookup_rps and ingress.lookup_burst must not be negative")
	}

	return nil
}

// ValidateServing checks the credentials a process needs before it accepts traffic.
// A missing credential is fatal rather than discovered on the first message.
func (c *Config) ValidateServing() error {
	if err := c.Validate(); err != nil {
		return err
	}

	tw := c.Adapters.Twilio
	if !tw.Enabled && !c.Adapters.Telegram.Enabled {
		return ouvErrors.Config("no inbound adapter enabled (adapters.twilio or adapters.telegram)")
	}
	if tw.Enabled {
		if strings.TrimSpace(tw.AccountSID) == "" || strings.TrimSpace(tw.AuthToken) == "" {
			return ouvErrors.Config("adapters.twilio.account_sid and adapters.twilio.auth_token are required when twilio is enabled")
		}
		if strings.TrimSpace(tw.From) == "" {
			return ouvErrors.Config("adapters.twilio.from is required when twilio is enabled")
		}
		if !strings.HasPrefix(tw.WebhookPath, "/") {
			return ouvErrors.Config(fmt.Sprintf("adapters.twilio.webhook_path %q must start with /", tw.WebhookPath))
		}
	}
	if c.Adapters.Telegram.Enabled && strings.TrimSpace(c.Adapters.Telegram.BotToken) == "" {
		return ouvErrors.Config("adapters.telegram.bot_token is required when telegram is enabled")
	}
	if sl := c.Adapters.Slack; sl.Enabled {
		if strings.TrimSpace(sl.BotToken) == "" || strings.TrimSpace(sl.Channel) == "" {
			return ouvErrors.Config("adapters.slack.bot_token and adapters.slack.channel are required when slack is enabled")
		}
	}

	if c.Intake.CorrectText || c.Intake.Analyze {
		m, ok := c.Models.Lookup(c.Models.Default)
		if !ok {
			return ouvErrors.Config(fmt.Sprintf("models.default %q is not in models.registry", c.Models.Default))
		}
		if m.Provider != "ollama" && strings.TrimSpace(m.APIKey) == "" {
			return ouvErrors.Config(fmt.Sprintf("model %q has no api_key (set %s or models.registry[].api_key)", m.Name, apiKeyEnv(m.Provider)))
		}
	}

	return nil
}

// Lookup returns the registry entry with the given name.
func (m ModelsConfig) Lookup(name string) (ModelRegistry, bool) {
	for _, entry := range m.Registry {
		if entry.Name == name {
			return entry, true
		}
	}
	return ModelRegistry{}, false
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
