package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/ouvidoria/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Intake   IntakeConfig   `koanf:"intake"`
	Sessions SessionsConfig `koanf:"sessions"`
	Records  RecordsConfig  `koanf:"records"`
	Models   ModelsConfig   `koanf:"models"`
	Prompts  PromptsConfig  `koanf:"prompts"`
	Adapters AdaptersConfig `koanf:"adapters"`
	Ingress  IngressConfig  `koanf:"ingress"`
	Janitor  JanitorConfig  `koanf:"janitor"`
	Daemon   DaemonConfig   `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	PublicURL       string `koanf:"public_url"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// IntakeConfig tunes the conversation engine.
type IntakeConfig struct {
	// Flow is "full" (every complementary question) or "short" (description only).
	Flow                string `koanf:"flow"`
	SessionTimeout      string `koanf:"session_timeout"`
	IntelligenceTimeout string `koanf:"intelligence_timeout"`
	CorrectText         bool   `koanf:"correct_text"`
	Analyze             bool   `koanf:"analyze"`
	IssueCredentials    bool   `koanf:"issue_credentials"`
}

type SessionsConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

type RecordsConfig struct {
	Path  string `koanf:"path"`
	Table string `koanf:"table"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type PromptsConfig struct {
	Correct CorrectPromptConfig `koanf:"correct"`
	Analyze AnalyzePromptConfig `koanf:"analyze"`
}

type CorrectPromptConfig struct {
	System string `koanf:"system"`
}

type AnalyzePromptConfig struct {
	System     string   `koanf:"system"`
	Categories []string `koanf:"categories"`
}

type AdaptersConfig struct {
	Twilio   TwilioConfig   `koanf:"twilio"`
	Telegram TelegramConfig `koanf:"telegram"`
	Slack    SlackConfig    `koanf:"slack"`
}

type TwilioConfig struct {
	Enabled           bool   `koanf:"enabled"`
	AccountSID        string `koanf:"account_sid"`
	AuthToken         string `koanf:"auth_token"`
	From              string `koanf:"from"`
	WebhookPath       string `koanf:"webhook_path"`
	ValidateSignature bool   `koanf:"validate_signature"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

// SlackConfig configures the back-office notification channel.
type SlackConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`
}

type IngressConfig struct {
	IdempotencyTTL string  `koanf:"idempotency_ttl"`
	RateRPS        float64 `koanf:"rate_rps"`
	RateBurst      int     `koanf:"rate_burst"`
	SendTimeout    string  `koanf:"send_timeout"`
	// LookupRPS and LookupBurst throttle the public lookup portal per
	// client address.
	LookupRPS   float64 `koanf:"lookup_rps"`
	LookupBurst int     `koanf:"lookup_burst"`
}

type JanitorConfig struct {
	Schedule string `koanf:"schedule"`
}

type DaemonConfig struct {
	DataPath               string `koanf:"data_path"`
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
	LockTimeout            string `koanf:"lock_timeout"`
	LockRetry              string `koanf:"lock_retry"`
	StaleLockTTL           string `koanf:"stale_lock_ttl"`
}

const (
	DefaultServerPort                   = 8080
	DefaultServerLogLevel               = "info"
	DefaultServerReadTimeout            = "10s"
	DefaultServerWriteTimeout           = "30s"
	DefaultServerIdleTimeout            = "60s"
	DefaultServerShutdownTimeout        = "5s"
	DefaultIntakeFlow                   = "full"
	DefaultIntakeSessionTimeout         = "5m"
	DefaultIntakeIntelligenceTimeout    = "8s"
	DefaultIntakeCorrectText            = true
	DefaultIntakeAnalyze                = true
	DefaultIntakeIssueCredentials       = true
	DefaultSessionsBackend              = "memory"
	DefaultRecordsTable                 = "denuncias"
	DefaultModelDefault                 = "gpt-4o-mini"
	DefaultModelMaxFallbackAttempts     = 2
	DefaultOpenAIBaseURL                = "https://api.openai.com/v1"
	DefaultOllamaBaseURL                = "http://localhost:11434/v1"
	DefaultOllamaAPIKey                 = "ollama"
	DefaultTwilioWebhookPath            = "/webhook"
	DefaultTwilioValidateSignature      = true
	DefaultTelegramUpdateTimeout        = 60
	DefaultIngressIdempotencyTTL        = "24h"
	DefaultIngressRateRPS               = 1.0
	DefaultIngressRateBurst             = 5
	DefaultIngressSendTimeout           = "10s"
	DefaultIngressLookupRPS             = 0.2
	DefaultIngressLookupBurst           = 5
	DefaultJanitorSchedule              = "@every 1m"
	DefaultDaemonShutdownTimeout        = "30s"
	DefaultDaemonHealthCheckInterval    = "30s"
	DefaultDaemonStartupShutdownTimeout = "10s"
	DefaultDaemonLockTimeout            = "10s"
	DefaultDaemonLockRetry              = "100ms"
	DefaultDaemonStaleLockTTL           = "15m"
	DefaultCorrectSystemPrompt          = "Você corrige gramática e ortografia de textos em português do Brasil. Preserve exatamente o sentido, os nomes, datas e fatos. Não acrescente nem remova informações. Responda somente com o texto corrigido."
	DefaultAnalyzeSystemPrompt          = "Você é um analista de compliance. Leia o relato de uma denúncia e responda somente com um objeto JSON com os campos: \"summary\" (resumo objetivo em até três frases, em português), \"category\" (uma das categorias permitidas) e \"is_compliance\" (true se o relato trata de uma questão de compliance, ética ou conduta no trabalho; false caso contrário)."
)

// DefaultAnalyzeCategories lists the categories offered to the classifier.
var DefaultAnalyzeCategories = []string{
	"Assédio moral",
	"Assédio sexual",
	"Discriminação",
	"Fraude",
	"Corrupção",
	"Conflito de interesses",
	"Segurança do trabalho",
	"Vazamento de dados",
	"Outros",
}

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":                        DefaultServerPort,
		"server.log_level":                   DefaultServerLogLevel,
		"server.read_timeout":                DefaultServerReadTimeout,
		"server.write_timeout":               DefaultServerWriteTimeout,
		"server.idle_timeout":                DefaultServerIdleTimeout,
		"server.shutdown_timeout":            DefaultServerShutdownTimeout,
		"intake.flow":                        DefaultIntakeFlow,
		"intake.session_timeout":             DefaultIntakeSessionTimeout,
		"intake.intelligence_timeout":        DefaultIntakeIntelligenceTimeout,
		"intake.correct_text":                DefaultIntakeCorrectText,
		"intake.analyze":                     DefaultIntakeAnalyze,
		"intake.issue_credentials":           DefaultIntakeIssueCredentials,
		"sessions.backend":                   DefaultSessionsBackend,
		"sessions.path":                      "",
		"records.path":                       "",
		"records.table":                      DefaultRecordsTable,
		"models.default":                     DefaultModelDefault,
		"models.max_fallback_attempts":       DefaultModelMaxFallbackAttempts,
		"models.registry":                    []ModelRegistry{{Name: DefaultModelDefault, Provider: "openai"}},
		"prompts.correct.system":             DefaultCorrectSystemPrompt,
		"prompts.analyze.system":             DefaultAnalyzeSystemPrompt,
		"prompts.analyze.categories":         DefaultAnalyzeCategories,
		"adapters.twilio.webhook_path":       DefaultTwilioWebhookPath,
		"adapters.twilio.validate_signature": DefaultTwilioValidateSignature,
		"adapters.telegram.update_timeout":   DefaultTelegramUpdateTimeout,
		"ingress.idempotency_ttl":            DefaultIngressIdempotencyTTL,
		"ingress.rate_rps":                   DefaultIngressRateRPS,
		"ingress.rate_burst":                 DefaultIngressRateBurst,
		"ingress.send_timeout":               DefaultIngressSendTimeout,
		"ingress.lookup_rps":                 DefaultIngressLookupRPS,
		"ingress.lookup_burst":               DefaultIngressLookupBurst,
		"janitor.schedule":                   DefaultJanitorSchedule,
		"daemon.data_path":                   filepath.Join(os.Getenv("HOME"), ".ouvidoria", "data"),
		"daemon.shutdown_timeout":            DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":       DefaultDaemonHealthCheckInterval,
		"daemon.startup_shutdown_timeout":    DefaultDaemonStartupShutdownTimeout,
		"daemon.lock_timeout":                DefaultDaemonLockTimeout,
		"daemon.lock_retry":                  DefaultDaemonLockRetry,
		"daemon.stale_lock_ttl":              DefaultDaemonStaleLockTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".ouvidoria", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables: OUVIDORIA_SERVER_PORT -> server.port
	k.Load(env.Provider("OUVIDORIA_", ".", envKey), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	injectStandardEnv(&cfg)

	return &cfg, nil
}

// envKey maps OUVIDORIA_INTAKE_SESSION_TIMEOUT to intake.session_timeout.
// Only the section separators become dots; adapters and prompts nest one level deeper.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "OUVIDORIA_"))
	levels := 1
	if strings.HasPrefix(key, "adapters_") || strings.HasPrefix(key, "prompts_") {
		levels = 2
	}
	return strings.Replace(key, "_", ".", levels)
}

// injectStandardEnv fills credentials from the variables each vendor documents,
// so a plain Render/Heroku style deploy works without the OUVIDORIA_ prefix.
func injectStandardEnv(cfg *Config) {
	providerKeys := map[string]string{
		"openai":    os.Getenv("OPENAI_API_KEY"),
		"anthropic": os.Getenv("ANTHROPIC_API_KEY"),
		"gemini":    os.Getenv("GEMINI_API_KEY"),
	}
	for i, m := range cfg.Models.Registry {
		if key := providerKeys[m.Provider]; key != "" && m.APIKey == "" {
			cfg.Models.Registry[i].APIKey = key
		}
	}

	fillFromEnv(&cfg.Adapters.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	fillFromEnv(&cfg.Adapters.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	fillFromEnv(&cfg.Adapters.Twilio.From, "TWILIO_WHATSAPP_FROM")
	fillFromEnv(&cfg.Adapters.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	fillFromEnv(&cfg.Adapters.Slack.BotToken, "SLACK_BOT_TOKEN")
	fillFromEnv(&cfg.Adapters.Slack.Channel, "SLACK_CHANNEL")
}

func fillFromEnv(target *string, name string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*target = v
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	dataPath, err := expandConfiguredPath(cfg.Daemon.DataPath)
	if err != nil {
		return err
	}
	if dataPath != "" {
		cfg.Daemon.DataPath = dataPath
	}

	sessionsPath, err := expandConfiguredPath(cfg.Sessions.Path)
	if err != nil {
		return err
	}
	if sessionsPath == "" && cfg.Daemon.DataPath != "" {
		sessionsPath = filepath.Join(cfg.Daemon.DataPath, "sessions")
	}
	cfg.Sessions.Path = sessionsPath

	recordsPath, err := expandConfiguredPath(cfg.Records.Path)
	if err != nil {
		return err
	}
	if recordsPath == "" && cfg.Daemon.DataPath != "" {
		recordsPath = filepath.Join(cfg.Daemon.DataPath, "records.db")
	}
	cfg.Records.Path = recordsPath

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}
