package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"

	"github.com/spf13/cobra"
)

func clearStandardEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_FROM",
		"TELEGRAM_BOT_TOKEN", "SLACK_BOT_TOKEN", "SLACK_CHANNEL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearStandardEnv(t)

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.Models.Default != DefaultModelDefault {
		t.Errorf("Expected default model %s, got %s", DefaultModelDefault, cfg.Models.Default)
	}
	if cfg.Intake.SessionTimeout != DefaultIntakeSessionTimeout {
		t.Errorf("Expected session timeout %s, got %s", DefaultIntakeSessionTimeout, cfg.Intake.SessionTimeout)
	}
	if !cfg.Intake.CorrectText || !cfg.Intake.Analyze || !cfg.Intake.IssueCredentials {
		t.Errorf("Expected intelligence and credentials enabled by default, got %+v", cfg.Intake)
	}
	if cfg.Sessions.Backend != DefaultSessionsBackend {
		t.Errorf("Expected sessions backend %s, got %s", DefaultSessionsBackend, cfg.Sessions.Backend)
	}
	if cfg.Records.Table != DefaultRecordsTable {
		t.Errorf("Expected records table %s, got %s", DefaultRecordsTable, cfg.Records.Table)
	}
	if cfg.Adapters.Twilio.WebhookPath != DefaultTwilioWebhookPath {
		t.Errorf("Expected webhook path %s, got %s", DefaultTwilioWebhookPath, cfg.Adapters.Twilio.WebhookPath)
	}
	if len(cfg.Prompts.Analyze.Categories) != len(DefaultAnalyzeCategories) {
		t.Errorf("Expected %d categories, got %d", len(DefaultAnalyzeCategories), len(cfg.Prompts.Analyze.Categories))
	}
	if len(cfg.Models.Registry) != 1 || cfg.Models.Registry[0].Provider != "openai" {
		t.Errorf("Expected a single openai registry entry, got %+v", cfg.Models.Registry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadWithConfigFlag(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
server:
  port: 9090
models:
  default: custom-model
intake:
  session_timeout: 10m
adapters:
  twilio:
    enabled: true
    from: "whatsapp:+14155238886"
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("failed to load config with --config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Models.Default != "custom-model" {
		t.Fatalf("expected default model custom-model, got %s", cfg.Models.Default)
	}
	if cfg.Intake.SessionTimeout != "10m" {
		t.Fatalf("expected session timeout 10m, got %s", cfg.Intake.SessionTimeout)
	}
	if !cfg.Adapters.Twilio.Enabled || cfg.Adapters.Twilio.From != "whatsapp:+14155238886" {
		t.Fatalf("expected twilio enabled with from number, got %+v", cfg.Adapters.Twilio)
	}
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	if _, err := Load(cmd); err == nil {
		t.Fatal("expected error when --config points to missing file")
	}
}

func TestLoad_ExpandsConfiguredPaths(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
daemon:
  data_path: ~/.ouvidoria/var
records:
  path: ~/reports/denuncias.db
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	wantDataPath := filepath.Join(tmpDir, ".ouvidoria", "var")
	if cfg.Daemon.DataPath != wantDataPath {
		t.Fatalf("data path = %q, want %q", cfg.Daemon.DataPath, wantDataPath)
	}
	wantSessions := filepath.Join(wantDataPath, "sessions")
	if cfg.Sessions.Path != wantSessions {
		t.Fatalf("sessions path = %q, want %q", cfg.Sessions.Path, wantSessions)
	}
	wantRecords := filepath.Join(tmpDir, "reports", "denuncias.db")
	if cfg.Records.Path != wantRecords {
		t.Fatalf("records path = %q, want %q", cfg.Records.Path, wantRecords)
	}
}

func TestLoad_EnvOverridesAndStandardCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearStandardEnv(t)
	t.Setenv("OUVIDORIA_INTAKE_SESSION_TIMEOUT", "2m")
	t.Setenv("OUVIDORIA_ADAPTERS_TWILIO_ENABLED", "true")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Intake.SessionTimeout != "2m" {
		t.Fatalf("session timeout = %q, want 2m", cfg.Intake.SessionTimeout)
	}
	if !cfg.Adapters.Twilio.Enabled {
		t.Fatal("expected twilio enabled from env")
	}
	if cfg.Adapters.Twilio.AccountSID != "AC123" || cfg.Adapters.Twilio.AuthToken != "secret" {
		t.Fatalf("twilio credentials not injected: %+v", cfg.Adapters.Twilio)
	}
	if cfg.Models.Registry[0].APIKey != "sk-test" {
		t.Fatalf("openai key not injected: %+v", cfg.Models.Registry[0])
	}
	if err := cfg.ValidateServing(); err != nil {
		t.Fatalf("expected serving config to validate, got %v", err)
	}
}

func TestValidateServing_MissingCredentialsAreFatal(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearStandardEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if err := cfg.ValidateServing(); !errors.Is(err, ouvErrors.ErrConfig) {
		t.Fatalf("expected config error with no adapter enabled, got %v", err)
	}

	cfg.Adapters.Twilio.Enabled = true
	if err := cfg.ValidateServing(); !errors.Is(err, ouvErrors.ErrConfig) {
		t.Fatalf("expected config error for missing twilio credentials, got %v", err)
	}

	cfg.Adapters.Twilio.AccountSID = "AC123"
	cfg.Adapters.Twilio.AuthToken = "secret"
	cfg.Adapters.Twilio.From = "whatsapp:+14155238886"
	if err := cfg.ValidateServing(); !errors.Is(err, ouvErrors.ErrConfig) {
		t.Fatalf("expected config error for missing model key, got %v", err)
	}

	cfg.Intake.CorrectText = false
	cfg.Intake.Analyze = false
	if err := cfg.ValidateServing(); err != nil {
		t.Fatalf("expected valid config without intelligence, got %v", err)
	}
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Sessions.Backend = "redis"
	if err := cfg.Validate(); !errors.Is(err, ouvErrors.ErrConfig) {
		t.Fatalf("expected config error for unknown backend, got %v", err)
	}
}
