package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"telemetry/internal/config"
	"telemetry/internal/domain"
	"telemetry/internal/templatefmt"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// TelegramPublisher sends rendered transitions to one chat; resolutions reply to the firing message.
type TelegramPublisher struct {
	client  *tgbot.Bot
	chatID  any
	message *template.Template

	mu      sync.Mutex
	threads map[string]int
}

// NewTelegramPublisher creates Telegram channel.
// Params: Telegram notifier config.
// Returns: publisher or init error for missing credentials or bad template.
func NewTelegramPublisher(cfg config.TelegramNotifier) (*TelegramPublisher, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram chat_id is required")
	}
	body := cfg.Template
	if strings.TrimSpace(body) == "" {
		body = templatefmt.DefaultNotificationTemplate
	}
	message, err := templatefmt.ParseNotificationTemplate("telegram", body)
	if err != nil {
		return nil, fmt.Errorf("parse telegram template: %w", err)
	}
	options := []tgbot.Option{tgbot.WithSkipGetMe()}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"); base != "" {
		options = append(options, tgbot.WithServerURL(base))
	}
	client, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramPublisher{
		client:  client,
		chatID:  normalizeChatID(cfg.ChatID),
		message: message,
		threads: make(map[string]int),
	}, nil
}

// Name returns channel name.
func (p *TelegramPublisher) Name() string {
	return "telegram"
}

// Publish renders notification and posts it to the chat.
func (p *TelegramPublisher) Publish(ctx context.Context, notification domain.Notification) error {
	text, err := templatefmt.Render(p.message, notification)
	if err != nil {
		return markPermanent(err)
	}
	request := &tgbot.SendMessageParams{
		ChatID: p.chatID,
		Text:   text,
	}
	if notification.State == domain.AlertStateResolved {
		if replyTo := p.thread(notification.AlertID); replyTo > 0 {
			request.ReplyParameters = &tgmodels.ReplyParameters{MessageID: replyTo}
		}
	}

	sent, err := p.client.SendMessage(ctx, request)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if notification.State == domain.AlertStateFiring {
		p.threads[notification.AlertID] = sent.ID
	} else {
		delete(p.threads, notification.AlertID)
	}
	return nil
}

func (p *TelegramPublisher) thread(alertID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threads[alertID]
}

// Close is a no-op.
func (p *TelegramPublisher) Close() error {
	return nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps channel usernames as string.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
