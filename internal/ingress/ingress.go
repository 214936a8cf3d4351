package ingress

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/idempotency"
	"github.com/harunnryd/ouvidoria/internal/intake"
	"github.com/harunnryd/ouvidoria/internal/logger"
	"github.com/harunnryd/ouvidoria/internal/metrics"
)

// Handler runs one conversation pass. *intake.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, in intake.Inbound) ([]intake.Outbound, error)
}

// rateLimitedText is sent once per limiter window to a throttled sender,
// so a dropped answer never goes unnoticed.
const rateLimitedText = "⏳ Você enviou muitas mensagens seguidas. Aguarde um instante e reenvie a última."

type RuntimeConfig struct {
	IdempotencyTTL time.Duration
	SendTimeout    time.Duration
	RateRPS        float64
	RateBurst      int
	// LookupRPS and LookupBurst limit portal lookups per client address.
	LookupRPS   float64
	LookupBurst int
}

// RuntimeConfigFrom parses the ingress section of the config.
func RuntimeConfigFrom(cfg config.IngressConfig) (RuntimeConfig, error) {
	ttl, err := config.DurationOrDefault(cfg.IdempotencyTTL, config.DefaultIngressIdempotencyTTL)
	if err != nil {
		return RuntimeConfig{}, ouvErrors.Wrap(err, "parse ingress idempotency ttl")
	}
	send, err := config.DurationOrDefault(cfg.SendTimeout, config.DefaultIngressSendTimeout)
	if err != nil {
		return RuntimeConfig{}, ouvErrors.Wrap(err, "parse ingress send timeout")
	}
	return RuntimeConfig{
		IdempotencyTTL: ttl,
		SendTimeout:    send,
		RateRPS:        cfg.RateRPS,
		RateBurst:      cfg.RateBurst,
		LookupRPS:      cfg.LookupRPS,
		LookupBurst:    cfg.LookupBurst,
	}, nil
}

// Ingress takes normalized events from every gateway, drops redeliveries
// and floods, runs the engine and delivers the replies through the output
// adapter of the gateway the event came from.
type Ingress struct {
	handler  Handler
	idem     *idempotency.Store
	router   Router
	resolver Resolver
	limiter  *limiterPool
	portal   *limiterPool
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	outputs map[string]adapter.OutputAdapter

	idempotencyTTL time.Duration
	sendTimeout    time.Duration
}

func NewIngress(handler Handler, idem *idempotency.Store, runtimeCfg RuntimeConfig, m *metrics.Metrics) *Ingress {
	if runtimeCfg.IdempotencyTTL <= 0 {
		d, err := config.DurationOrDefault("", config.DefaultIngressIdempotencyTTL)
		if err == nil {
			runtimeCfg.IdempotencyTTL = d
		}
	}
	if runtimeCfg.SendTimeout <= 0 {
		d, err := config.DurationOrDefault("", config.DefaultIngressSendTimeout)
		if err == nil {
			runtimeCfg.SendTimeout = d
		}
	}
	if idem == nil {
		idem = idempotency.NewMemoryStore()
	}

	return &Ingress{
		handler:        handler,
		idem:           idem,
		router:         NewStandardRouter(),
		resolver:       NewStandardResolver(),
		limiter:        newLimiterPool(runtimeCfg.RateRPS, runtimeCfg.RateBurst),
		portal:         newLimiterPool(runtimeCfg.LookupRPS, runtimeCfg.LookupBurst),
		metrics:        m,
		outputs:        make(map[string]adapter.OutputAdapter),
		idempotencyTTL: runtimeCfg.IdempotencyTTL,
		sendTimeout:    runtimeCfg.SendTimeout,
	}
}

// RegisterOutput makes out the delivery target for events whose source
// equals out.Name().
func (i *Ingress) RegisterOutput(outs ...adapter.OutputAdapter) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, out := range outs {
		if out == nil {
			continue
		}
		i.outputs[out.Name()] = out
	}
}

// IgnoreSender drops events from id, typically the bot's own number.
func (i *Ingress) IgnoreSender(id string) {
	if r, ok := i.router.(*StandardRouter); ok {
		r.IgnoreSender(id)
	}
}

// HandleMessage is the adapter.EventHandler feeding the ingress.
func (i *Ingress) HandleMessage(ctx context.Context, msg adapter.Message) error {
	evt := FromMessage(msg)
	err := i.Submit(ctx, &evt)
	if ouvErrors.IsCategory(err, ouvErrors.ErrDuplicateEvent) || ouvErrors.IsCategory(err, ouvErrors.ErrRateLimited) {
		return nil
	}
	return err
}

// Submit processes an event and delivers the replies.
func (i *Ingress) Submit(ctx context.Context, evt *Event) error {
	replies, err := i.Process(ctx, evt)
	if len(replies) > 0 {
		i.deliver(ctx, evt, replies)
	}
	return err
}

// Process runs an event through dedupe, routing and rate limiting and then
// the engine, returning the replies without sending them. Replies may be
// returned together with an error when the engine produced a failure notice.
func (i *Ingress) Process(ctx context.Context, evt *Event) ([]intake.Outbound, error) {
	if evt == nil {
		return nil, ouvErrors.InvalidInput("event is nil")
	}
	if i.handler == nil {
		return nil, ouvErrors.Internal("handler not initialized")
	}
	if evt.ID != "" {
		ctx = logger.WithTraceID(ctx, evt.ID)
	}

	slog.Debug("Ingress received event", "id", evt.ID, "type", evt.Type, "source", evt.Source)
	i.metrics.Inbound(evt.Source)

	if evt.ExternalID != "" {
		key := HashKey(GenerateIdempotencyKey(evt.Source, evt.ExternalID))
		if i.idem.CheckAndMark(key, i.idempotencyTTL) {
			slog.Warn("Duplicate event detected", "source", evt.Source, "external_id", evt.ExternalID)
			i.metrics.Duplicate()
			return nil, ouvErrors.ErrDuplicateEvent
		}
	}

	dest := i.router.Route(ctx, evt)
	switch dest.Type {
	case DestDrop:
		slog.Debug("Event dropped by router", "id", evt.ID, "reason", dest.Reason)
		return nil, nil
	case DestPipeline:
	default:
		return nil, ouvErrors.InvalidInput("unknown destination type")
	}

	sender, err := i.resolver.ResolveSender(ctx, evt)
	if err != nil {
		return nil, ouvErrors.Wrap(err, "sender resolution failed")
	}

	if !i.limiter.Allow(sender) {
		slog.Warn("Sender rate limited, dropping event", "sender", logger.MaskSender(sender), "id", evt.ID)
		i.metrics.RateLimited()
		var notice []intake.Outbound
		if i.limiter.Notice(sender) {
			notice = []intake.Outbound{{RecipientID: evt.SenderID, Text: rateLimitedText}}
		}
		return notice, ouvErrors.ErrRateLimited
	}

	replies, err := i.handler.Handle(ctx, intake.Inbound{
		SenderID:  sender,
		Text:      evt.Content,
		Media:     evt.Media,
		Source:    evt.Source,
		MessageID: evt.ExternalID,
	})
	if err != nil {
		return replies, ouvErrors.Wrap(err, "handle event")
	}
	return replies, nil
}

// deliver sends replies in order. Failures are logged and counted; the
// gateway owns retries.
func (i *Ingress) deliver(ctx context.Context, evt *Event, replies []intake.Outbound) {
	i.mu.RLock()
	out, ok := i.outputs[evt.Source]
	i.mu.RUnlock()
	if !ok {
		slog.Warn("No output adapter for source, replies discarded", "source", evt.Source, "replies", len(replies))
		return
	}

	for _, r := range replies {
		sendCtx, cancel := context.WithTimeout(ctx, i.sendTimeout)
		err := out.Send(sendCtx, evt.SenderID, r.Text)
		cancel()
		i.metrics.Reply(evt.Source, err == nil)
		if err != nil {
			slog.Error("Failed to deliver reply", "source", evt.Source, "to", logger.MaskSender(evt.SenderID), "error", err)
		}
	}
}

// PruneLimiters forgets sender and portal limiters idle longer than idle.
func (i *Ingress) PruneLimiters(idle time.Duration) int {
	return i.limiter.Prune(idle) + i.portal.Prune(idle)
}

// AllowLookup reports whether the portal client at addr may run another
// lookup now.
func (i *Ingress) AllowLookup(addr string) bool {
	return i.portal.Allow(addr)
}

// PruneIdempotency drops expired message ids and persists the rest.
func (i *Ingress) PruneIdempotency() (int, error) {
	return i.idem.Prune()
}

// Close persists the processed message ids.
func (i *Ingress) Close() error {
	slog.Info("Ingress shutting down, saving processed message ids", "keys", i.idem.Len())
	return i.idem.Save()
}

// Health checks ingress health
func (i *Ingress) Health(ctx context.Context) error {
	if i.handler == nil {
		return ouvErrors.Internal("handler not initialized")
	}
	if i.router == nil {
		return ouvErrors.Internal("router not initialized")
	}
	if i.resolver == nil {
		return ouvErrors.Internal("resolver not initialized")
	}

	i.mu.RLock()
	names := make([]string, 0, len(i.outputs))
	for name := range i.outputs {
		names = append(names, name)
	}
	i.mu.RUnlock()

	slog.Debug("Ingress health metrics",
		"outputs", strings.Join(names, ","),
		"idempotency_keys", i.idem.Len(),
		"limiters", i.limiter.Len(),
	)
	return nil
}
