// Package alerts sends operator notifications through Telegram.
// The notifier degrades to a logged no-op when credentials are absent.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier sends messages to a Telegram chat.
type Notifier struct {
	client   *resty.Client
	botToken string
	chatID   string
	enabled  bool
	logger   *zap.Logger
}

// Config holds notifier configuration.
type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string // defaults to the Telegram API
	Logger   *zap.Logger
}

// New creates a notifier. With empty credentials every Send is a no-op.
func New(cfg Config) *Notifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	enabled := cfg.BotToken != "" && cfg.ChatID != ""
	if !enabled {
		cfg.Logger.Info("alerts-disabled")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Notifier{
		client:   client,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  enabled,
		logger:   cfg.Logger,
	}
}

// Send delivers a plain-text message. Failures are logged, never
// propagated; an alert must not take the trading pipeline down.
func (n *Notifier) Send(ctx context.Context, text string) {
	if !n.enabled {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": n.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", n.botToken))

	if err != nil {
		n.logger.Warn("alert-send-failed", zap.Error(err))
		return
	}
	if resp.IsError() {
		n.logger.Warn("alert-send-rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return
	}

	n.logger.Debug("alert-sent", zap.Int("length", len(text)))
}

// NotifyHalt reports a sticky trading halt.
func (n *Notifier) NotifyHalt(ctx context.Context, reason string) {
	n.Send(ctx, fmt.Sprintf("🛑 Trading halted: %s", reason))
}

// NotifyResolution reports a settled position.
func (n *Notifier) NotifyResolution(ctx context.Context, pos *types.Position) {
	outcome := "✅ WIN"
	if pos.RealizedPnL < 0 {
		outcome = "❌ LOSS"
	}
	n.Send(ctx, fmt.Sprintf("%s %s | %s | winner %s | pnl %.2f USD",
		outcome, pos.Strategy, pos.Question, pos.Winner, pos.RealizedPnL))
}
