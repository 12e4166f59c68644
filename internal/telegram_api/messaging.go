package telegram_api

import (
	"fmt"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// MaxMessageLength is Telegram's limit for one text message.
const MaxMessageLength = 4096

// send posts one Markdown message and falls back to plain text when Telegram
// cannot parse the entities.
func (bc *BotClient) send(text string) error {
	msg := tgbotapi.NewMessage(bc.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bc.api.Send(msg)
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "can't parse entities") {
		return fmt.Errorf("send telegram message: %w", err)
	}

	bc.log.WithError(err).Warn("markdown rejected, resending as plain text")
	plain := tgbotapi.NewMessage(bc.chatID, text)
	if _, err := bc.api.Send(plain); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// SplitMessage cuts text into parts of at most limit bytes, preferring line breaks.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			// Do not split a multi-byte rune.
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
