package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/report"

	"github.com/slack-go/slack"
)

// SlackNotifier posts a notice to the compliance team's channel whenever a
// report is stored. Identity fields never leave the record store.
type SlackNotifier struct {
	channel string
	client  *slack.Client
}

func NewSlackNotifier(botToken, channel string, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		channel: channel,
		client:  slack.New(botToken, opts...),
	}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

func (s *SlackNotifier) NotifyReport(ctx context.Context, rec *report.Record) error {
	if rec == nil {
		return nil
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(reportNotice(rec), false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return ouvErrors.MapError(ouvErrors.Wrap(err, "failed to send Slack message"))
	}
	slog.Debug("Slack notice sent", "channel", s.channel, "protocol", rec.Protocol)
	return nil
}

// Send posts arbitrary text to channel, or to the configured one when empty.
func (s *SlackNotifier) Send(ctx context.Context, channel string, content string) error {
	if channel == "" {
		channel = s.channel
	}
	_, _, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(content, false))
	if err != nil {
		return ouvErrors.Wrap(err, "failed to send Slack message")
	}
	return nil
}

func (s *SlackNotifier) Health(ctx context.Context) error {
	if s.client == nil {
		return ouvErrors.Transient("Slack client not initialized")
	}
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return ouvErrors.Transient("Slack connection failed")
	}
	return nil
}

func reportNotice(rec *report.Record) string {
	var b strings.Builder
	b.WriteString(":rotating_light: *Nova denúncia recebida*\n")
	fmt.Fprintf(&b, "*Protocolo:* %s\n", rec.Protocol)
	fmt.Fprintf(&b, "*Tipo:* %s\n", rec.ReportType)
	fmt.Fprintf(&b, "*Categoria:* %s\n", orDash(rec.Category))
	fmt.Fprintf(&b, "*Gravidade:* %s\n", orDash(rec.Severity))
	fmt.Fprintf(&b, "*Canal:* %s", orDash(rec.Source))
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
