package adapter

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

func TestSlackNotifier_PostsNoticeWithoutIdentity(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1710000000.000100"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier("xoxb-test", "C123", slack.OptionAPIURL(srv.URL+"/"))
	rec := &report.Record{
		Protocol:   "20240502-ABCDEFGH",
		ReportType: session.ReportIdentified,
		Name:       "Maria Souza",
		Email:      "maria@example.com",
		Phone:      "whatsapp:+5511999990000",
		Category:   "Assédio",
		Severity:   "alta",
		Source:     "twilio",
		CreatedAt:  time.Now(),
	}
	if err := n.NotifyReport(context.Background(), rec); err != nil {
		t.Fatalf("NotifyReport() returned error: %v", err)
	}

	if got := form["channel"]; len(got) != 1 || got[0] != "C123" {
		t.Fatalf("channel = %v, want C123", got)
	}
	text := strings.Join(form["text"], "")
	if !strings.Contains(text, "20240502-ABCDEFGH") || !strings.Contains(text, "Assédio") {
		t.Fatalf("notice is missing report data: %q", text)
	}
	for _, identity := range []string{"Maria", "maria@example.com", "+5511999990000"} {
		if strings.Contains(text, identity) {
			t.Fatalf("notice leaks identity %q: %q", identity, text)
		}
	}
}

func TestCLIAdapter_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	var cli *CLIAdapter
	var got []string
	cli = NewCLIAdapter(strings.NewReader("oi\n1\n/sair\nnunca lido\n"), &out, "cli:local", func(ctx context.Context, msg Message) error {
		got = append(got, msg.Text)
		if msg.SenderID != "cli:local" || msg.Source != "cli" {
			t.Errorf("unexpected message: %+v", msg)
		}
		return cli.Send(ctx, msg.SenderID, "eco: "+msg.Text)
	})

	if err := cli.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	if len(got) != 2 || got[0] != "oi" || got[1] != "1" {
		t.Fatalf("handled = %v, want [oi 1]", got)
	}
	if !strings.Contains(out.String(), "eco: oi") {
		t.Fatalf("reply not printed: %q", out.String())
	}
}

func TestNewRuntimeManager_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AdaptersConfig
	}{
		{"twilio without token", config.AdaptersConfig{Twilio: config.TwilioConfig{Enabled: true, AccountSID: "AC1", From: "whatsapp:+1"}}},
		{"twilio without from", config.AdaptersConfig{Twilio: config.TwilioConfig{Enabled: true, AccountSID: "AC1", AuthToken: "t"}}},
		{"telegram without token", config.AdaptersConfig{Telegram: config.TelegramConfig{Enabled: true}}},
		{"slack without channel", config.AdaptersConfig{Slack: config.SlackConfig{Enabled: true, BotToken: "xoxb"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRuntimeManager(tt.cfg, nil, RuntimeAdapterOptions{}); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestNewRuntimeManager_WiresTwilio(t *testing.T) {
	cfg := config.AdaptersConfig{Twilio: config.TwilioConfig{
		Enabled:     true,
		AccountSID:  "AC1",
		AuthToken:   "t",
		From:        "whatsapp:+14155238886",
		WebhookPath: "/webhook",
	}}
	cli := NewCLIAdapter(strings.NewReader(""), &bytes.Buffer{}, "cli:local", nil)
	m, err := NewRuntimeManager(cfg, nil, RuntimeAdapterOptions{CLI: cli})
	if err != nil {
		t.Fatalf("NewRuntimeManager() returned error: %v", err)
	}
	if m.Twilio() == nil {
		t.Fatal("twilio adapter not wired")
	}
	if m.Notifier() != nil {
		t.Fatal("notifier wired while slack is disabled")
	}

	names := map[string]bool{}
	for _, o := range m.OutputAdapters() {
		names[o.Name()] = true
	}
	if !names["twilio"] || !names["cli"] {
		t.Fatalf("outputs = %v, want twilio and cli", names)
	}

	skipped, err := NewRuntimeManager(cfg, nil, RuntimeAdapterOptions{SkipGateways: true})
	if err != nil {
		t.Fatalf("NewRuntimeManager() returned error: %v", err)
	}
	if skipped.Twilio() != nil {
		t.Fatal("gateway wired despite SkipGateways")
	}
}
