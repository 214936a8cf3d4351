package intake

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/ouvidoria/internal/concurrency"
	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/intel"
	"github.com/harunnryd/ouvidoria/internal/logger"
	"github.com/harunnryd/ouvidoria/internal/metrics"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

// Inbound is one message from a sender.
type Inbound struct {
	SenderID  string
	Text      string
	Media     []session.MediaRef
	Source    string
	MessageID string
}

// Outbound is one reply to deliver.
type Outbound struct {
	RecipientID string
	Text        string
}

// Outcome is how a pass ended. Terminal outcomes destroy the session.
type Outcome uint8

const (
	OutcomeContinue Outcome = iota
	OutcomeSubmitted
	OutcomeCancelled
	OutcomeClosed
)

// Flow selects which collection stages a report goes through.
type Flow string

const (
	FlowFull  Flow = "full"
	FlowShort Flow = "short"
)

type Config struct {
	Flow                Flow
	CorrectText         bool
	Analyze             bool
	IssueCredentials    bool
	IntelligenceTimeout time.Duration
	NotifyTimeout       time.Duration
	// CredentialCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	CredentialCost      int
	MaxProtocolAttempts int
	Now                 func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Flow:                FlowFull,
		CorrectText:         true,
		Analyze:             true,
		IssueCredentials:    true,
		IntelligenceTimeout: 8 * time.Second,
		NotifyTimeout:       5 * time.Second,
		MaxProtocolAttempts: 3,
	}
}

// ConfigFrom maps the intake section of the config onto engine settings.
func ConfigFrom(cfg config.IntakeConfig) (Config, error) {
	out := DefaultConfig()

	switch Flow(strings.ToLower(strings.TrimSpace(cfg.Flow))) {
	case "", FlowFull:
		out.Flow = FlowFull
	case FlowShort:
		out.Flow = FlowShort
	default:
		return Config{}, ouvErrors.Config("unknown intake flow " + cfg.Flow)
	}

	timeout, err := config.DurationOrDefault(cfg.IntelligenceTimeout, config.DefaultIntakeIntelligenceTimeout)
	if err != nil {
		return Config{}, ouvErrors.Wrap(err, "parse intake intelligence timeout")
	}
	out.IntelligenceTimeout = timeout
	out.CorrectText = cfg.CorrectText
	out.Analyze = cfg.Analyze
	out.IssueCredentials = cfg.IssueCredentials
	return out, nil
}

// Notifier is told about every persisted report. Failures are logged only.
type Notifier interface {
	NotifyReport(ctx context.Context, r *report.Record) error
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine drives the intake conversation. Handle is safe for concurrent use;
// messages from one sender are processed one at a time.
type Engine struct {
	sessions session.Store
	reports  report.Repository
	intel    intel.Service
	notifier Notifier
	metrics  *metrics.Metrics
	cfg      Config

	locks *concurrency.KeyedMutex
	steps map[session.Stage]stepFunc
	order []session.Stage
}

func New(sessions session.Store, reports report.Repository, svc intel.Service, cfg Config, opts ...Option) *Engine {
	if svc == nil {
		svc = intel.Noop{}
	}
	if cfg.Flow == "" {
		cfg.Flow = FlowFull
	}
	if cfg.IntelligenceTimeout <= 0 {
		cfg.IntelligenceTimeout = 8 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if cfg.MaxProtocolAttempts <= 0 {
		cfg.MaxProtocolAttempts = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		sessions: sessions,
		reports:  reports,
		intel:    svc,
		cfg:      cfg,
		locks:    concurrency.NewKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.order = collectionOrder(cfg.Flow)
	e.steps = e.stepTable()
	return e
}

// turn is the working state of one Handle pass.
type turn struct {
	sess    *session.Session
	in      Inbound
	text    string
	next    session.Stage
	replies []string
	outcome Outcome
}

func (t *turn) say(msg string) {
	if msg != "" {
		t.replies = append(t.replies, msg)
	}
}

func (t *turn) goTo(s session.Stage) {
	t.next = s
}

func (t *turn) end(o Outcome, msg string) {
	t.outcome = o
	t.say(msg)
}

// Handle runs one synchronous pass for an inbound message and returns the
// replies to send. A non-nil error means the session could not be read or
// written; the returned replies then carry a temporary-failure notice.
func (e *Engine) Handle(ctx context.Context, in Inbound) ([]Outbound, error) {
	ctx, traceID := logger.EnsureTraceID(ctx)
	ctx = logger.WithSenderID(ctx, in.SenderID)
	log := slog.With("sender", logger.MaskSender(in.SenderID), "trace_id", traceID, "source", in.Source)

	if strings.TrimSpace(in.SenderID) == "" {
		return nil, ouvErrors.InvalidInput("sender id is required")
	}

	unlock := e.locks.Lock(in.SenderID)
	defer unlock()

	sess, created, err := e.sessions.GetOrCreate(ctx, in.SenderID)
	if err != nil {
		log.Error("Failed to load session", "error", err, "category", ouvErrors.Category(ouvErrors.MapError(err)))
		return e.outbound(in.SenderID, []string{msgTemporary}), ouvErrors.Wrap(err, "load session")
	}

	t := &turn{
		sess: sess,
		in:   in,
		text: strings.TrimSpace(in.Text),
		next: sess.Stage,
	}
	from := sess.Stage

	if created {
		t.say(msgWelcome)
	}
	switch {
	case e.runCommand(ctx, t):
	case created:
		t.goTo(session.StageMenu)
		t.say(msgMenu)
	default:
		step, ok := e.steps[sess.Stage]
		if !ok {
			log.Error("No handler for stage, resetting", "stage", sess.Stage)
			sess.Reset()
			t.goTo(session.StageMenu)
			t.say(msgMenu)
			break
		}
		step(ctx, t)
	}

	if err := e.finish(ctx, t); err != nil {
		log.Error("Failed to persist session", "error", err, "stage", t.next)
		return e.outbound(in.SenderID, []string{msgTemporary}), err
	}

	log.Debug("Message handled", "from", from, "to", t.next, "outcome", t.outcome, "created", created)
	return e.outbound(in.SenderID, t.replies), nil
}

func (e *Engine) finish(ctx context.Context, t *turn) error {
	now := e.cfg.Now()

	if t.outcome != OutcomeContinue {
		if err := e.sessions.Delete(ctx, t.sess.SenderID); err != nil {
			// the record (if any) is already written; make sure the next
			// message cannot resubmit it
			slog.Error("Failed to delete session, resetting instead", "sender", logger.MaskSender(t.sess.SenderID), "error", err)
			t.sess.Reset()
			t.sess.Touch(now)
			if saveErr := e.sessions.Save(ctx, t.sess); saveErr != nil && t.outcome != OutcomeSubmitted {
				return ouvErrors.Wrap(saveErr, "reset session")
			}
		}
		return nil
	}

	t.sess.Stage = t.next
	t.sess.Touch(now)
	if err := e.sessions.Save(ctx, t.sess); err != nil {
		return ouvErrors.Wrap(err, "save session")
	}
	return nil
}

func (e *Engine) outbound(recipient string, texts []string) []Outbound {
	out := make([]Outbound, 0, len(texts))
	for _, text := range texts {
		out = append(out, Outbound{RecipientID: recipient, Text: text})
	}
	return out
}

// SweepSessions drops idle sessions and refreshes the live-session gauge.
func (e *Engine) SweepSessions(ctx context.Context) (int, error) {
	n, err := e.sessions.Sweep(ctx, e.cfg.Now())
	if err != nil {
		return 0, err
	}
	if count, err := e.sessions.Count(ctx); err == nil {
		e.metrics.SetLiveSessions(count)
	}
	return n, nil
}
