package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent_console/internal/actions"
	"agent_console/internal/api"
	"agent_console/internal/auth"
	"agent_console/internal/config"
	"agent_console/internal/notify"
	"agent_console/internal/poller"
	"agent_console/internal/session"
	"agent_console/internal/settings"
	"agent_console/internal/state"
	"agent_console/internal/storage"
	"agent_console/pkg/services/agent"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	godotenv.Load()

	// Конфигурация slog для вывода в файл и stdout
	logFile, err := os.OpenFile("console.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()

	// Pretty handler для stdout с цветами
	prettyHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen, // "3:04PM"
		AddSource:  false,
		NoColor:    false,
	})

	// Обычный текстовый handler для файла
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	// Мультиплексируем логи в оба handler'а
	logger := slog.New(&multiHandler{
		handlers: []slog.Handler{prettyHandler, fileHandler},
	})

	logger.Info("=== Trading Agent Console ===")

	// Загрузка конфигурации из env
	cfg := config.Load(logger)

	// Инициализация БД
	db, err := storage.New(cfg.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Сессия торгового агента и его API клиент
	sessionMgr := session.New(cfg.BackendURL, db, logger)
	client := agentClient(cfg, sessionMgr, logger)

	// Локальное состояние и уведомления
	store := state.New()
	toasts := notify.NewCenter(logger)

	// До первой успешной сверки показываем кэшированный снапшот
	var cached state.Snapshot
	if ok, err := db.LoadSnapshot("dashboard", &cached); err != nil {
		logger.Warn("Failed to load cached snapshot", slog.Any("error", err))
	} else if ok {
		store.ApplySnapshot(cached)
		logger.Info("✅ Cached snapshot restored")
	}

	actionsSvc := actions.New(client, store, toasts, logger)
	actionsSvc.SetSnapshotSaver(func(snap state.Snapshot) {
		if err := db.SaveSnapshot("dashboard", snap); err != nil {
			logger.Error("Failed to cache snapshot", slog.Any("error", err))
		}
	})

	// Поллеры: дашборд каждые cfg.PollInterval, сканер реже
	dashboardPoller := poller.New("dashboard", cfg.PollInterval, cfg.RequestTimeout, actionsSvc.FetchDashboardBatch, logger)
	scannerPoller := poller.New("scanner", 6*cfg.PollInterval, cfg.RequestTimeout, actionsSvc.FetchScannerBatch, logger)
	actionsSvc.AttachPollers(dashboardPoller, scannerPoller)

	// Ошибки сверки показываем оператору как уведомления
	dashboardPoller.SetErrorHandler(func(err error) {
		toasts.Show(fmt.Sprintf("Dashboard refresh failed: %v", err), notify.Error)
	})
	scannerPoller.SetErrorHandler(func(err error) {
		toasts.Show(fmt.Sprintf("Scanner refresh failed: %v", err), notify.Error)
	})

	// Редактор настроек приостанавливает сверку дашборда,
	// чтобы опрос не затирал черновик
	editor := settings.NewEditor(dashboardPoller.Suspend, dashboardPoller.Resume)
	actionsSvc.SetEditor(editor)

	sessionMgr.SetErrorHandler(func(message string) {
		toasts.Show(message, notify.Warning)
	})

	// WebSocket push в браузер
	ws := api.NewWSManager(logger)
	store.SetChangeHandler(ws.NotifyStateChanged)
	toasts.SetChangeHandler(ws.NotifyToast)
	sessionMgr.SetChangeHandler(ws.NotifySession)

	// Журналируем каждое показанное уведомление
	toasts.AddSink(notify.SinkFunc(func(toast notify.Toast) {
		if err := db.LogNotification(string(toast.Severity), toast.Message); err != nil {
			logger.Error("Failed to log notification", slog.Any("error", err))
		}
	}))

	// Пересылка важных уведомлений в Telegram
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Error("Failed to initialize Telegram relay", slog.Any("error", err))
		} else {
			toasts.AddSink(notify.NewTelegramSink(bot, cfg.TelegramChatID, false, logger))
			logger.Info("✅ Telegram relay enabled")
		}
	}

	// Аутентификация оператора консоли
	authService := auth.NewService(cfg.JWTSecret, cfg.ConsoleUsername, cfg.ConsolePasswordHash, 24*time.Hour)

	apiHandler := api.New(store, sessionMgr, actionsSvc, authService, toasts, dashboardPoller, scannerPoller, ws, logger)
	router := apiHandler.SetupRouter(cfg.WebDir)

	// Вход в агента: сначала пробуем сохраненный токен, затем учетные данные
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !sessionMgr.Restore() && cfg.BackendUsername != "" {
		if sessionMgr.Login(ctx, cfg.BackendUsername, cfg.BackendPassword) {
			logger.Info("✅ Backend login successful")
		}
	}

	go dashboardPoller.Run(ctx)
	go scannerPoller.Run(ctx)

	// HTTP сервер
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("🚀 Server starting...", slog.String("address", cfg.Address))
		logger.Info(fmt.Sprintf("📡 API available at http://%s/api", cfg.Address))
		logger.Info(fmt.Sprintf("🏥 Health check at http://%s/health", cfg.Address))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("🛑 Shutting down server...")

	dashboardPoller.Close()
	scannerPoller.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("✅ Server stopped")
}

// agentClient собирает API клиент агента поверх сессии:
// токен читается из сессии, 401 сбрасывает ее
func agentClient(cfg *config.Config, sessionMgr *session.Manager, logger *slog.Logger) *agent.Client {
	client := agent.New(cfg.BackendURL, sessionMgr.Token, logger)
	client.SetUnauthorizedHandler(sessionMgr.Expire)

	return client
}

// multiHandler отправляет логи в несколько handlers одновременно
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if err := h.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}

	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}

	return &multiHandler{handlers: handlers}
}
