package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramFilePrefix marks media references that point at a Telegram file id
// rather than a URL; files are never downloaded.
const telegramFilePrefix = "telegram-file:"

type TelegramAdapter struct {
	token         string
	updateTimeout int
	eventHandler  EventHandler
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
}

func NewTelegramAdapter(token string, eventHandler EventHandler, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		eventHandler:  eventHandler,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return ouvErrors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("Telegram Adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	msg := update.Message

	// UpdateID is unique per bot, MessageID only per chat.
	m := Message{
		ID:       fmt.Sprintf("%d", update.UpdateID),
		Source:   "telegram",
		SenderID: fmt.Sprintf("%d", msg.Chat.ID),
		Text:     msg.Text,
		Metadata: map[string]string{
			"msg_id": fmt.Sprintf("%d", msg.MessageID),
		},
	}
	if m.Text == "" {
		m.Text = msg.Caption
	}
	if msg.From != nil {
		m.Metadata["user_id"] = fmt.Sprintf("%d", msg.From.ID)
		m.Metadata["user_name"] = msg.From.UserName
	}

	if n := len(msg.Photo); n > 0 {
		// sizes are ascending; keep the largest
		m.Media = append(m.Media, Media{URL: telegramFilePrefix + msg.Photo[n-1].FileID, ContentType: "image/jpeg"})
	}
	if msg.Document != nil {
		m.Media = append(m.Media, Media{URL: telegramFilePrefix + msg.Document.FileID, ContentType: msg.Document.MimeType})
	}
	if msg.Voice != nil {
		m.Media = append(m.Media, Media{URL: telegramFilePrefix + msg.Voice.FileID, ContentType: msg.Voice.MimeType})
	}

	if t.eventHandler != nil {
		if err := t.eventHandler(ctx, m); err != nil {
			slog.Error("Failed to handle Telegram message", "error", err)
		}
	}
}

// Send sends a reply back to Telegram
func (t *TelegramAdapter) Send(ctx context.Context, recipientID string, content string) error {
	if t.bot == nil {
		return ouvErrors.Transient("Telegram bot not initialized")
	}
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return ouvErrors.InvalidInput("invalid telegram chat ID: " + err.Error())
	}

	msg := tgbotapi.NewMessage(chatID, content)
	_, err = t.bot.Send(msg)
	if err != nil {
		return ouvErrors.Wrap(err, "failed to send telegram message")
	}

	slog.Debug("Telegram message sent", "chat_id", recipientID)
	return nil
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return ouvErrors.Transient("Telegram bot not initialized")
	}

	_, err := t.bot.GetMe()
	if err != nil {
		return ouvErrors.Transient("Telegram connection failed: " + err.Error())
	}

	return nil
}
