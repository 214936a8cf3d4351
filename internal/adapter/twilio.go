package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/ouvidoria/internal/concurrency"
	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/logger"
)

const (
	twilioSignatureHeader = "X-Twilio-Signature"
	whatsappPrefix        = "whatsapp:"
	emptyTwiML            = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	webhookActiveText     = "Webhook ativo ✅"
	defaultProcessTimeout = 2 * time.Minute
	senderQueueLimit      = 32
)

// messageCreator is the slice of the Twilio REST API the adapter uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type signatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// TwilioAdapter receives WhatsApp messages on the Twilio webhook and replies
// through the REST API. The webhook is acknowledged with empty TwiML before
// the message is processed. Messages from one sender are handled one at a
// time in arrival order.
type TwilioAdapter struct {
	from         string
	publicURL    string
	webhookPath  string
	validate     bool
	eventHandler EventHandler
	messages     messageCreator
	validator    signatureValidator
	queue        *concurrency.KeyedQueue

	processTimeout time.Duration
}

func NewTwilioAdapter(cfg config.TwilioConfig, publicURL string, eventHandler EventHandler) *TwilioAdapter {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	validator := twilioclient.NewRequestValidator(cfg.AuthToken)
	path := cfg.WebhookPath
	if path == "" {
		path = config.DefaultTwilioWebhookPath
	}
	return &TwilioAdapter{
		from:           cfg.From,
		publicURL:      strings.TrimRight(publicURL, "/"),
		webhookPath:    path,
		validate:       cfg.ValidateSignature,
		eventHandler:   eventHandler,
		messages:       client.Api,
		validator:      &validator,
		queue:          newSenderQueue(),
		processTimeout: defaultProcessTimeout,
	}
}

func (t *TwilioAdapter) Name() string {
	return "twilio"
}

// WebhookPath is where the adapter expects to be mounted.
func (t *TwilioAdapter) WebhookPath() string {
	return t.webhookPath
}

// Start is a no-op: the webhook is served by the daemon's HTTP server.
func (t *TwilioAdapter) Start(ctx context.Context) error {
	slog.Info("Twilio Adapter ready", "webhook", t.webhookPath, "from", logger.MaskSender(t.from))
	return nil
}

// Stop waits for queued messages to finish or ctx to expire.
func (t *TwilioAdapter) Stop(ctx context.Context) error {
	if t.queue == nil {
		return nil
	}
	return t.queue.Close(ctx)
}

func (t *TwilioAdapter) Health(ctx context.Context) error {
	if t.messages == nil {
		return ouvErrors.Transient("Twilio client not initialized")
	}
	if t.from == "" {
		return ouvErrors.Config("Twilio sender number not configured")
	}
	return nil
}

// Send delivers one WhatsApp message.
func (t *TwilioAdapter) Send(ctx context.Context, recipientID string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := recipientID
	if strings.HasPrefix(t.from, whatsappPrefix) && !strings.HasPrefix(to, whatsappPrefix) {
		to = whatsappPrefix + to
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(content)

	resp, err := t.messages.CreateMessage(params)
	if err != nil {
		return ouvErrors.MapError(ouvErrors.Wrap(err, "failed to send Twilio message"))
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Twilio message sent", "to", logger.MaskSender(to), "sid", sid)
	return nil
}

// ServeHTTP handles the Twilio webhook. GET answers a liveness probe.
func (t *TwilioAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(webhookActiveText))
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	params := formParams(r)

	if t.validate && !t.validator.Validate(t.requestURL(r), params, r.Header.Get(twilioSignatureHeader)) {
		slog.Warn("Rejected Twilio webhook with invalid signature", "remote", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	msg := parseTwilioMessage(params)
	if msg.SenderID == "" {
		http.Error(w, "Missing From", http.StatusBadRequest)
		return
	}

	if t.eventHandler != nil {
		base := context.WithoutCancel(r.Context())
		err := t.queue.Enqueue(msg.SenderID, func() {
			ctx, cancel := context.WithTimeout(base, t.processTimeout)
			defer cancel()
			if err := t.eventHandler(ctx, msg); err != nil {
				slog.Error("Failed to handle Twilio message", "error", err, "sid", msg.ID)
			}
		})
		if err != nil {
			// Twilio retries on 5xx, so the message is not lost.
			slog.Warn("Twilio message not queued", "error", err, "sid", msg.ID, "sender", logger.MaskSender(msg.SenderID))
			http.Error(w, "Busy", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(emptyTwiML))
}

// requestURL is the URL Twilio signed. Behind a proxy the configured public
// URL is authoritative.
func (t *TwilioAdapter) requestURL(r *http.Request) string {
	if t.publicURL != "" {
		return t.publicURL + r.URL.RequestURI()
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}

func newSenderQueue() *concurrency.KeyedQueue {
	return concurrency.NewKeyedQueue(senderQueueLimit, func(sender string, v any) {
		slog.Error("Twilio message handler panicked", "panic", v, "sender", logger.MaskSender(sender))
	})
}

func formParams(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func parseTwilioMessage(params map[string]string) Message {
	msg := Message{
		ID:       params["MessageSid"],
		Source:   "twilio",
		SenderID: strings.TrimSpace(params["From"]),
		Text:     params["Body"],
		Metadata: map[string]string{},
	}
	if msg.ID == "" {
		msg.ID = params["SmsMessageSid"]
	}
	if name := params["ProfileName"]; name != "" {
		msg.Metadata["profile_name"] = name
	}
	if status := params["MessageStatus"]; status != "" {
		msg.Metadata["status_callback"] = status
	}

	n, _ := strconv.Atoi(params["NumMedia"])
	for i := 0; i < n; i++ {
		url := params[fmt.Sprintf("MediaUrl%d", i)]
		if url == "" {
			continue
		}
		msg.Media = append(msg.Media, Media{
			URL:         url,
			ContentType: params[fmt.Sprintf("MediaContentType%d", i)],
		})
	}
	return msg
}
