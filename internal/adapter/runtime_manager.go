package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
)

type RuntimeAdapterOptions struct {
	// CLI, when set, is registered as an output. The caller drives its
	// input loop so it can block on it.
	CLI *CLIAdapter
	// SkipGateways leaves the Twilio and Telegram gateways out, for local runs.
	SkipGateways bool
	// PublicURL is the externally visible base URL Twilio signs requests for.
	PublicURL string
}

// RuntimeManager holds the gateways enabled in config. Gateways are both
// an input and the output that answers on the same channel.
type RuntimeManager struct {
	mu       sync.RWMutex
	gateways []gateway
	outputs  map[string]OutputAdapter
	order    []string
	twilio   *TwilioAdapter
	notifier *SlackNotifier
	running  bool
}

type gateway interface {
	InputAdapter
	OutputAdapter
}

func NewRuntimeManager(cfg config.AdaptersConfig, eventHandler EventHandler, opts RuntimeAdapterOptions) (*RuntimeManager, error) {
	m := &RuntimeManager{outputs: make(map[string]OutputAdapter)}

	if opts.CLI != nil {
		m.addOutput(opts.CLI)
	}

	if !opts.SkipGateways {
		if cfg.Twilio.Enabled {
			tw, err := buildTwilio(cfg.Twilio, opts.PublicURL, eventHandler)
			if err != nil {
				return nil, err
			}
			m.twilio = tw
			m.addGateway(tw)
		}
		if cfg.Telegram.Enabled {
			token := strings.TrimSpace(cfg.Telegram.BotToken)
			if token == "" {
				return nil, ouvErrors.Config("adapters.telegram.bot_token is required when telegram adapter is enabled")
			}
			m.addGateway(NewTelegramAdapter(token, eventHandler, cfg.Telegram.UpdateTimeout))
		}
	}

	if cfg.Slack.Enabled {
		if strings.TrimSpace(cfg.Slack.BotToken) == "" || strings.TrimSpace(cfg.Slack.Channel) == "" {
			return nil, ouvErrors.Config("adapters.slack.bot_token and channel are required when slack notifications are enabled")
		}
		m.notifier = NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel)
	}
	return m, nil
}

func buildTwilio(cfg config.TwilioConfig, publicURL string, h EventHandler) (*TwilioAdapter, error) {
	switch {
	case strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "":
		return nil, ouvErrors.Config("adapters.twilio.account_sid and auth_token are required when twilio adapter is enabled")
	case strings.TrimSpace(cfg.From) == "":
		return nil, ouvErrors.Config("adapters.twilio.from is required when twilio adapter is enabled")
	}
	return NewTwilioAdapter(cfg, publicURL, h), nil
}

func (m *RuntimeManager) addGateway(g gateway) {
	m.gateways = append(m.gateways, g)
	m.addOutput(g)
}

// addOutput keys outputs by name; a later adapter with the same name
// replaces the earlier one in place.
func (m *RuntimeManager) addOutput(o OutputAdapter) {
	name := strings.TrimSpace(o.Name())
	if name == "" {
		return
	}
	if _, seen := m.outputs[name]; !seen {
		m.order = append(m.order, name)
	}
	m.outputs[name] = o
}

// Twilio returns the webhook adapter, or nil when the gateway is disabled.
func (m *RuntimeManager) Twilio() *TwilioAdapter {
	return m.twilio
}

// Notifier returns the back-office notifier, or nil when disabled.
func (m *RuntimeManager) Notifier() *SlackNotifier {
	return m.notifier
}

func (m *RuntimeManager) OutputAdapters() []OutputAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OutputAdapter, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.outputs[name])
	}
	return out
}

// Start launches every gateway's receive loop. It does not block.
func (m *RuntimeManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true

	for _, g := range m.gateways {
		go func(g gateway) {
			slog.Info("Starting gateway", "adapter", g.Name())
			if err := g.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Gateway stopped with error", "adapter", g.Name(), "error", err)
			}
		}(g)
	}
}

func (m *RuntimeManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false

	var errs []error
	for _, g := range m.gateways {
		if err := g.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to stop gateways: %w", err)
	}
	return nil
}

// Health reports the first unhealthy output or notifier. Gateways are
// checked through their output side.
func (m *RuntimeManager) Health(ctx context.Context) error {
	for _, o := range m.OutputAdapters() {
		if err := o.Health(ctx); err != nil {
			return fmt.Errorf("adapter %s unhealthy: %w", o.Name(), err)
		}
	}
	if m.notifier != nil {
		if err := m.notifier.Health(ctx); err != nil {
			return fmt.Errorf("notifier %s unhealthy: %w", m.notifier.Name(), err)
		}
	}
	return nil
}
