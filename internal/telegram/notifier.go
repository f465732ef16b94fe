// Package telegram delivers emergency notices to Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxTelegramMessage = 4096

// Prefix is the target prefix handled by the notifier, as in
// "telegram:123456".
const Prefix = "telegram:"

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends plain-text notices through a bot.
type Notifier struct {
	bot    Sender
	logger *slog.Logger
}

// New creates a Notifier authenticated with the bot token.
func New(token string, logger *slog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return NewWithSender(bot, logger), nil
}

// NewWithSender creates a Notifier over an existing sender.
func NewWithSender(bot Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{bot: bot, logger: logger}
}

// Deliver sends message to the chat named by target. It matches
// delivery.Handler.
func (n *Notifier) Deliver(ctx context.Context, target, message string) error {
	chatID, err := ParseTarget(target)
	if err != nil {
		return err
	}
	for _, part := range splitMessage(message) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
	}
	n.logger.Info("emergency notice sent", "chat_id", chatID)
	return nil
}

// ParseTarget extracts the chat id from "telegram:<chat_id>".
func ParseTarget(target string) (int64, error) {
	raw, ok := strings.CutPrefix(target, Prefix)
	if !ok {
		return 0, fmt.Errorf("not a telegram target: %q", target)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", raw, err)
	}
	return id, nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		// Prefer breaking at a newline so list items stay whole.
		if end < len(text) {
			if i := strings.LastIndexByte(text[:end], '\n'); i > 0 {
				end = i + 1
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
