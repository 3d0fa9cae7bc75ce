package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink пересылает уведомления в Telegram чат оператора.
// Success/Info шумны при 5-секундном опросе, поэтому по умолчанию
// пересылаются только error и warning.
type TelegramSink struct {
	bot           *tgbotapi.BotAPI
	chatID        int64
	logger        *slog.Logger
	allSeverities bool
}

func NewTelegramSink(bot *tgbotapi.BotAPI, chatID int64, allSeverities bool, logger *slog.Logger) *TelegramSink {
	return &TelegramSink{
		bot:           bot,
		chatID:        chatID,
		logger:        logger,
		allSeverities: allSeverities,
	}
}

func (s *TelegramSink) Notify(toast Toast) {
	if !s.allSeverities && toast.Severity != Error && toast.Severity != Warning {
		return
	}

	msg := tgbotapi.NewMessage(s.chatID, fmt.Sprintf("%s %s", severityIcon(toast.Severity), toast.Message))
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error("Failed to relay toast to Telegram", slog.Any("error", err))
	}
}

func severityIcon(severity Severity) string {
	switch severity {
	case Success:
		return "✅"
	case Error:
		return "❌"
	case Warning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
