// Package telegram_api sends administrator notifications through a Telegram bot.
package telegram_api

import (
	"context"
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/sirupsen/logrus"
)

// sender is the part of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotClient posts messages to a single admin chat.
type BotClient struct {
	api    sender
	chatID int64
	log    logrus.FieldLogger
}

// NewBotClient authorises the bot with token and targets adminChatID.
func NewBotClient(token string, adminChatID int64, debug bool, log logrus.FieldLogger) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if adminChatID == 0 {
		return nil, fmt.Errorf("admin chat id is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot api: %w", err)
	}
	api.Debug = debug
	log.WithField("bot", api.Self.UserName).Info("telegram notifier authorised")
	return newBotClient(api, adminChatID, log), nil
}

func newBotClient(api sender, chatID int64, log logrus.FieldLogger) *BotClient {
	return &BotClient{api: api, chatID: chatID, log: log.WithField("component", "telegram")}
}

// Notify sends text to the admin chat, split into Telegram-sized parts.
func (bc *BotClient) Notify(ctx context.Context, text string) error {
	for _, part := range SplitMessage(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := bc.send(part); err != nil {
			return err
		}
	}
	return nil
}
