package telegram

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Service управляет Telegram ботом
type Service struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// New создает новый Telegram сервис
func New(token string, logger *slog.Logger) (*Service, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("✅ Bot authorized", slog.String("username", bot.Self.UserName))

	// Устанавливаем команды для меню
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Начать работу"},
		{Command: "stats", Description: "Сводка по торговле"},
		{Command: "positions", Description: "Открытые позиции"},
		{Command: "close", Description: "Закрыть позицию <symbol>"},
		{Command: "close_all", Description: "Закрыть все позиции"},
		{Command: "close_profitable", Description: "Закрыть прибыльные"},
		{Command: "close_losing", Description: "Закрыть убыточные"},
		{Command: "scan", Description: "Сканировать рынок"},
		{Command: "analyze", Description: "Анализ символа <symbol> [timeframe]"},
		{Command: "refresh", Description: "Внеочередная сверка с агентом"},
		{Command: "settings", Description: "Текущие настройки агента"},
		{Command: "history", Description: "История сделок [limit]"},
		{Command: "logs", Description: "Журнал уведомлений [limit]"},
		{Command: "help", Description: "Помощь"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	_, err = bot.Request(cfg)
	if err != nil {
		logger.Error("Failed to set commands", slog.Any("error", err))
	} else {
		logger.Info("✅ Bot commands set")
	}

	return &Service{
		bot:    bot,
		logger: logger,
	}, nil
}

// GetUpdatesChan возвращает канал обновлений
func (s *Service) GetUpdatesChan() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	return s.bot.GetUpdatesChan(u)
}

// SendMessage отправляет текстовое сообщение
func (s *Service) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := s.bot.Send(msg)

	return err
}

// SendHTMLMessage отправляет сообщение с HTML форматированием
func (s *Service) SendHTMLMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := s.bot.Send(msg)

	return err
}

// GetBot возвращает экземпляр бота
func (s *Service) GetBot() *tgbotapi.BotAPI {
	return s.bot
}
