package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent_console/internal/actions"
	"agent_console/internal/config"
	"agent_console/internal/notify"
	"agent_console/internal/poller"
	"agent_console/internal/session"
	"agent_console/internal/state"
	"agent_console/internal/storage"
	"agent_console/internal/telegram/handlers"
	"agent_console/pkg/services/agent"
	"agent_console/pkg/services/telegram"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
)

func main() {
	godotenv.Load()

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen, // "3:04PM"
		AddSource:  false,
		NoColor:    false,
	})

	logger := slog.New(handler)

	logger.Info("=== Trading Agent Telegram Bot ===")

	// Загрузка конфигурации
	cfg := config.Load(logger)

	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		logger.Error("❌ TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
		os.Exit(1)
	}

	// Инициализация хранилища (общая база с консолью)
	db, err := storage.New(cfg.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Инициализация Telegram сервиса
	tgService, err := telegram.New(cfg.TelegramToken, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram service", slog.Any("error", err))
		os.Exit(1)
	}

	// Сессия агента и клиент его API
	sessionMgr := session.New(cfg.BackendURL, db, logger)
	client := agent.New(cfg.BackendURL, sessionMgr.Token, logger)
	client.SetUnauthorizedHandler(sessionMgr.Expire)

	store := state.New()
	toasts := notify.NewCenter(logger)

	// Исход каждого действия дублируем в чат оператора
	toasts.AddSink(notify.NewTelegramSink(tgService.GetBot(), cfg.TelegramChatID, true, logger))
	toasts.AddSink(notify.SinkFunc(func(toast notify.Toast) {
		if err := db.LogNotification(string(toast.Severity), toast.Message); err != nil {
			logger.Error("Failed to log notification", slog.Any("error", err))
		}
	}))

	actionsSvc := actions.New(client, store, toasts, logger)

	dashboardPoller := poller.New("dashboard", cfg.PollInterval, cfg.RequestTimeout, actionsSvc.FetchDashboardBatch, logger)
	scannerPoller := poller.New("scanner", 6*cfg.PollInterval, cfg.RequestTimeout, actionsSvc.FetchScannerBatch, logger)
	actionsSvc.AttachPollers(dashboardPoller, scannerPoller)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Вход в агента
	if !sessionMgr.Restore() && cfg.BackendUsername != "" {
		if sessionMgr.Login(ctx, cfg.BackendUsername, cfg.BackendPassword) {
			logger.Info("✅ Backend login successful")
		}
	}

	go dashboardPoller.Run(ctx)
	go scannerPoller.Run(ctx)

	// Ежедневная сводка по расписанию
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.DailySummaryCron, func() {
		sendDailySummary(tgService, store, cfg.TelegramChatID, logger)
	}); err != nil {
		logger.Error("Failed to schedule daily summary", slog.Any("error", err))
	} else {
		scheduler.Start()
		logger.Info("✅ Daily summary scheduled", slog.String("cron", cfg.DailySummaryCron))
	}

	// Создание обработчика команд
	cmdHandler := handlers.New(actionsSvc, store, db, tgService, cfg.TelegramChatID, logger)

	// Запуск бота
	logger.Info("🚀 Starting bot...")
	logger.Info("📡 Listening for commands (polling mode)...")

	updates := tgService.GetUpdatesChan()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("🛑 Shutting down bot...")
		scheduler.Stop()
		dashboardPoller.Close()
		scannerPoller.Close()
		cancel()
		tgService.GetBot().StopReceivingUpdates()
	}()

	for update := range updates {
		go cmdHandler.HandleUpdate(update)
	}

	logger.Info("✅ Bot stopped")
}

// sendDailySummary отправляет утреннюю сводку по торговле
func sendDailySummary(tgService *telegram.Service, store *state.Store, chatID int64, logger *slog.Logger) {
	dashboard := store.Dashboard()
	if dashboard == nil {
		logger.Warn("Daily summary skipped, no data")
		return
	}

	stats := dashboard.Stats
	positions := store.Positions()

	text := fmt.Sprintf(`🌅 ЕЖЕДНЕВНАЯ СВОДКА

💰 Общий PnL: %.2f USDT
💼 Баланс: %.2f USDT
📈 Win rate: %.1f%% (%d/%d)
📋 Открытых позиций: %d`,
		stats.TotalPnl,
		stats.WalletBalance,
		stats.WinRate,
		stats.WinningTrades,
		stats.TotalTrades,
		len(positions))

	if err := tgService.SendMessage(chatID, text); err != nil {
		logger.Error("Failed to send daily summary", slog.Any("error", err))
	}
}
