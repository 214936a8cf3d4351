package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/ouvidoria/internal/config"
)

func TestTelegramAdapter_EventFlow(t *testing.T) {
	var got Message

	adapter := NewTelegramAdapter("test-token", func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	}, 1)

	adapter.handleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: 99,
		Message: &tgbotapi.Message{
			MessageID: 123,
			Caption:   "foto do ocorrido",
			Chat:      &tgbotapi.Chat{ID: 456},
			From:      &tgbotapi.User{ID: 789, UserName: "alice"},
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small"},
				{FileID: "large"},
			},
		},
	})

	if got.Source != "telegram" {
		t.Fatalf("source = %q, want %q", got.Source, "telegram")
	}
	if got.ID != "99" {
		t.Fatalf("id = %q, want %q", got.ID, "99")
	}
	if got.SenderID != "456" {
		t.Fatalf("sender = %q, want %q", got.SenderID, "456")
	}
	if got.Text != "foto do ocorrido" {
		t.Fatalf("text = %q, want caption", got.Text)
	}
	if len(got.Media) != 1 || got.Media[0].URL != telegramFilePrefix+"large" {
		t.Fatalf("media = %+v, want the largest photo", got.Media)
	}
	if got.Metadata["user_name"] != "alice" {
		t.Fatalf("metadata user_name = %q, want %q", got.Metadata["user_name"], "alice")
	}
}

func TestTelegramAdapter_IgnoresNonMessageUpdates(t *testing.T) {
	called := false
	adapter := NewTelegramAdapter("test-token", func(ctx context.Context, msg Message) error {
		called = true
		return nil
	}, 1)

	adapter.handleUpdate(context.Background(), tgbotapi.Update{UpdateID: 1})
	if called {
		t.Fatal("handler called for an update without a message")
	}
}

const (
	testAuthToken = "test-auth-token"
	testPublicURL = "https://bot.example.com"
)

func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestTwilio(handler EventHandler) *TwilioAdapter {
	return NewTwilioAdapter(config.TwilioConfig{
		Enabled:           true,
		AccountSID:        "AC123",
		AuthToken:         testAuthToken,
		From:              "whatsapp:+14155238886",
		WebhookPath:       "/webhook",
		ValidateSignature: true,
	}, testPublicURL, handler)
}

func webhookForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "whatsapp:+5511999990000")
	form.Set("Body", "1")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/media/ME1")
	form.Set("MediaContentType0", "image/jpeg")
	return form
}

func TestTwilioAdapter_WebhookDispatchesMessage(t *testing.T) {
	received := make(chan Message, 1)
	adapter := newTestTwilio(func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	})

	form := webhookForm()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(twilioSignatureHeader, twilioSignature(testAuthToken, testPublicURL+"/webhook", form))

	rr := httptest.NewRecorder()
	adapter.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != emptyTwiML {
		t.Fatalf("body = %q, want empty TwiML", rr.Body.String())
	}

	select {
	case msg := <-received:
		if msg.ID != "SM123" || msg.SenderID != "whatsapp:+5511999990000" || msg.Text != "1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if len(msg.Media) != 1 || msg.Media[0].ContentType != "image/jpeg" {
			t.Fatalf("media = %+v", msg.Media)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func postSignedWebhook(t *testing.T, adapter *TwilioAdapter, form url.Values) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(twilioSignatureHeader, twilioSignature(testAuthToken, testPublicURL+"/webhook", form))
	rr := httptest.NewRecorder()
	adapter.ServeHTTP(rr, req)
	return rr.Code
}

func TestTwilioAdapter_WebhookKeepsSenderOrder(t *testing.T) {
	received := make(chan string, 2)
	adapter := newTestTwilio(func(ctx context.Context, msg Message) error {
		if msg.ID == "SM1" {
			// A slow first message must not let the second overtake it.
			time.Sleep(50 * time.Millisecond)
		}
		received <- msg.Text
		return nil
	})

	first := url.Values{}
	first.Set("MessageSid", "SM1")
	first.Set("From", "whatsapp:+5511999990000")
	first.Set("Body", "2")
	second := url.Values{}
	second.Set("MessageSid", "SM2")
	second.Set("From", "whatsapp:+5511999990000")
	second.Set("Body", "Maria")

	if code := postSignedWebhook(t, adapter, first); code != http.StatusOK {
		t.Fatalf("first status = %d", code)
	}
	if code := postSignedWebhook(t, adapter, second); code != http.StatusOK {
		t.Fatalf("second status = %d", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := adapter.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	close(received)

	var got []string
	for text := range received {
		got = append(got, text)
	}
	if len(got) != 2 || got[0] != "2" || got[1] != "Maria" {
		t.Fatalf("handled order = %v, want [2 Maria]", got)
	}

	if code := postSignedWebhook(t, adapter, first); code != http.StatusServiceUnavailable {
		t.Fatalf("status after Stop = %d, want %d", code, http.StatusServiceUnavailable)
	}
}

func TestTwilioAdapter_WebhookRejectsBadSignature(t *testing.T) {
	adapter := newTestTwilio(func(ctx context.Context, msg Message) error {
		t.Error("handler must not be called")
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(webhookForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(twilioSignatureHeader, "bm90LWEtc2lnbmF0dXJl")

	rr := httptest.NewRecorder()
	adapter.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestTwilioAdapter_WebhookGetIsProbe(t *testing.T) {
	adapter := newTestTwilio(nil)
	rr := httptest.NewRecorder()
	adapter.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != webhookActiveText {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

type fakeCreator struct {
	params []*openapi.CreateMessageParams
}

func (f *fakeCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	sid := "SM999"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioAdapter_Send(t *testing.T) {
	adapter := newTestTwilio(nil)
	creator := &fakeCreator{}
	adapter.messages = creator

	if err := adapter.Send(context.Background(), "+5511999990000", "olá"); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	if len(creator.params) != 1 {
		t.Fatalf("CreateMessage calls = %d, want 1", len(creator.params))
	}
	p := creator.params[0]
	if *p.To != "whatsapp:+5511999990000" {
		t.Fatalf("to = %q, want whatsapp-prefixed", *p.To)
	}
	if *p.From != "whatsapp:+14155238886" || *p.Body != "olá" {
		t.Fatalf("unexpected params: from=%q body=%q", *p.From, *p.Body)
	}
}

func TestParseTwilioMessage_StatusCallback(t *testing.T) {
	msg := parseTwilioMessage(map[string]string{
		"MessageSid":    "SM1",
		"From":          "whatsapp:+14155238886",
		"MessageStatus": "delivered",
	})
	if msg.Metadata["status_callback"] != "delivered" {
		t.Fatalf("metadata = %+v, want status_callback", msg.Metadata)
	}
}
