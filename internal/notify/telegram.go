package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"

	"providence/internal/config"
)

// TelegramSender posts batches to one Telegram chat.
// Params: bot token and chat id from config.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates a Telegram sender.
// Params: telegram config with bot token and chat id.
// Returns: initialized sender; init failures surface on first Send.
func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	sender := &TelegramSender{chatID: normalizeChatID(cfg.ChatID)}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("telegram chat_id is required")
		return sender
	}

	botClient, err := tgbot.New(cfg.BotToken, tgbot.WithSkipGetMe())
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns the sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() string {
	return "telegram"
}

// Send posts one rendered batch to the configured chat.
// Params: context and collected batch.
// Returns: render or transport error.
func (s *TelegramSender) Send(ctx context.Context, batch Batch) error {
	if s.initErr != nil {
		return s.initErr
	}

	body, err := batch.Render()
	if err != nil {
		return err
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: s.chatID,
		Text:   batch.Subject() + "\n\n" + body,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// normalizeChatID converts numeric chat ids to int64 and keeps others as string.
// Params: configured chat id value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
