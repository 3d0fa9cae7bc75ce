package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию консоли
type Config struct {
	BackendURL      string // базовый URL JSON API агента (с /api)
	BackendUsername string // учётные данные для /auth/token
	BackendPassword string

	PollInterval   time.Duration // период сверки дашборда/сканера
	RequestTimeout time.Duration // предел одного батча

	Address string // адрес HTTP сервера консоли
	WebDir  string // каталог статики UI
	DBPath  string

	JWTSecret           string // подпись сессий консоли
	ConsoleUsername     string
	ConsolePasswordHash string // bcrypt hash (cmd/hashpass)

	// Telegram (пустой token отключает бота и пересылку уведомлений)
	TelegramToken    string
	TelegramChatID   int64
	DailySummaryCron string // расписание сводки, cron формат
}

// Load загружает конфигурацию из переменных окружения
func Load(logger *slog.Logger) *Config {
	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:8000/api"
	}

	pollInterval := 5 * time.Second
	if raw := os.Getenv("POLL_INTERVAL_SECONDS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			pollInterval = time.Duration(parsed) * time.Second
		} else {
			logger.Warn("Invalid POLL_INTERVAL_SECONDS, using default", slog.String("value", raw))
		}
	}

	requestTimeout := 15 * time.Second
	if raw := os.Getenv("REQUEST_TIMEOUT_SECONDS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			requestTimeout = time.Duration(parsed) * time.Second
		} else {
			logger.Warn("Invalid REQUEST_TIMEOUT_SECONDS, using default", slog.String("value", raw))
		}
	}

	address := os.Getenv("ADDRESS")
	if address == "" {
		address = "0.0.0.0:8080"
	}

	webDir := os.Getenv("WEB_DIR")
	if webDir == "" {
		webDir = "./web/"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./console.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "default-secret-change-me-in-production"

		logger.Warn("⚠️  JWT_SECRET not set, using default (insecure!)")
	}

	consoleUsername := os.Getenv("CONSOLE_USERNAME")
	consolePasswordHash := os.Getenv("CONSOLE_PASSWORD_HASH")
	if consoleUsername == "" || consolePasswordHash == "" {
		logger.Warn("⚠️  CONSOLE_USERNAME / CONSOLE_PASSWORD_HASH not set - console login will be rejected")
	}

	var telegramChatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Error("❌ Invalid TELEGRAM_CHAT_ID", slog.String("value", raw))
			os.Exit(1)
		}
		telegramChatID = parsed
	}

	dailySummaryCron := os.Getenv("DAILY_SUMMARY_CRON")
	if dailySummaryCron == "" {
		dailySummaryCron = "0 9 * * *" // каждый день в 09:00
	}

	return &Config{
		BackendURL:          backendURL,
		BackendUsername:     os.Getenv("BACKEND_USERNAME"),
		BackendPassword:     os.Getenv("BACKEND_PASSWORD"),
		PollInterval:        pollInterval,
		RequestTimeout:      requestTimeout,
		Address:             address,
		WebDir:              webDir,
		DBPath:              dbPath,
		JWTSecret:           jwtSecret,
		ConsoleUsername:     consoleUsername,
		ConsolePasswordHash: consolePasswordHash,
		TelegramToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:      telegramChatID,
		DailySummaryCron:    dailySummaryCron,
	}
}
