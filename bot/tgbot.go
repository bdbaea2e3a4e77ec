// Package bot delivers alert messages to a single Telegram chat.
//
// It is the sink of the logger's TelegramHandler: records at or above the
// configured level are formatted there and handed to SendMessageWithLevel.
// Delivery is asynchronous so a slow Telegram API never delays a webhook.
package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"giftsync/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

type TgBot struct {
	log    *slog.Logger
	api    *tgbotapi.Bot
	chatId int64
}

// NewTgBot connects to the Bot API. The logger must not route back into
// Telegram, otherwise a failing send would alert about itself.
func NewTgBot(apiKey string, chatId int64, log *slog.Logger) (*TgBot, error) {
	if chatId == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	return &TgBot{
		log:    log.With(sl.Module("tgbot")),
		api:    api,
		chatId: chatId,
	}, nil
}

func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if msg == "" {
		return
	}
	go t.plainResponse(t.chatId, msg, level)
}

func (t *TgBot) plainResponse(chatId int64, text string, level slog.Level) {
	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(
			slog.Int64("id", chatId),
			slog.String("level", level.String()),
		).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending safe message", sl.Err(err))
		}
	}
}

// Sanitize escapes MarkdownV2 reserved characters.
func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*`>~"
	var b strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
