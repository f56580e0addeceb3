// Package notify forwards accepted contact messages to the committee:
// a row appended to the answers spreadsheet and a Telegram chat message.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// telegramMaxText is Telegram's limit for one message.
const telegramMaxText = 4096

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a summary of each message to a chat.
type Telegram struct {
	bot    chatSender
	chatID int64
	logger logger.Logger
}

// NewTelegram authenticates the bot against the Bot API. An empty endpoint
// uses the public API.
func NewTelegram(token, endpoint string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, ErrNotConfigured
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	t := newTelegram(bot, chatID)
	t.logger.Info(context.Background(), "telegram bot authorized", logger.String("username", bot.Self.UserName))
	return t, nil
}

func newTelegram(bot chatSender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, logger: logger.Get().Named("telegram")}
}

// Name identifies the sink.
func (t *Telegram) Name() string { return "telegram" }

// Deliver sends the message summary.
func (t *Telegram) Deliver(ctx context.Context, m contact.Message) error { //nolint:gocritic // hugeParam
	if err := ctx.Err(); err != nil {
		return err
	}
	text := []rune(m.Summary())
	if len(text) > telegramMaxText {
		text = append(text[:telegramMaxText-1], '…')
	}
	msg := tgbotapi.NewMessage(t.chatID, string(text))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("%w: telegram: %v", ErrRejected, err)
	}
	t.logger.Debug(ctx, "contact forwarded to chat", logger.String("id", m.ID))
	return nil
}
