package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"agent_console/internal/actions"
	"agent_console/internal/state"
	"agent_console/internal/storage"
	"agent_console/pkg/models"
	"agent_console/pkg/services/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const commandTimeout = 60 * time.Second

// Handler обрабатывает команды бота
type Handler struct {
	actions  *actions.Service
	store    *state.Store
	storage  *storage.Storage
	telegram *telegram.Service
	chatID   int64 // единственный разрешенный чат оператора
	logger   *slog.Logger
}

// New создает новый обработчик
func New(
	actionsSvc *actions.Service,
	store *state.Store,
	storage *storage.Storage,
	telegramSvc *telegram.Service,
	chatID int64,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		actions:  actionsSvc,
		store:    store,
		storage:  storage,
		telegram: telegramSvc,
		chatID:   chatID,
		logger:   logger,
	}
}

// HandleUpdate обрабатывает обновление от Telegram
func (h *Handler) HandleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	chatID := update.Message.Chat.ID
	if chatID != h.chatID {
		h.logger.Warn("Ignoring command from unknown chat", slog.Int64("chat_id", chatID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := update.Message.Command()
	args := strings.Fields(update.Message.CommandArguments())

	h.logger.Info("Command received",
		slog.Int64("chat_id", chatID),
		slog.String("command", cmd),
		slog.Any("args", args))

	var response string

	switch cmd {
	case "start":
		response = h.handleStart()
	case "stats":
		response = h.handleStats()
	case "positions":
		response = h.handlePositions()
	case "close":
		response = h.handleClose(ctx, args)
	case "close_all":
		response = h.handleCloseAll(ctx)
	case "close_profitable":
		response = h.handleCloseProfitable(ctx)
	case "close_losing":
		response = h.handleCloseLosing(ctx)
	case "scan":
		response = h.handleScan(ctx)
	case "analyze":
		response = h.handleAnalyze(ctx, args)
	case "refresh":
		response = h.handleRefresh()
	case "settings":
		response = h.handleSettings()
	case "history":
		response = h.handleHistory(args)
	case "logs":
		response = h.handleLogs(args)
	case "help":
		response = h.handleStart()
	default:
		response = "❌ Неизвестная команда. /help"
	}

	if err := h.telegram.SendMessage(chatID, response); err != nil {
		h.logger.Error("Failed to send response", slog.Any("error", err))
	}
}

func (h *Handler) handleStart() string {
	return `🤖 Trading Agent Console

📊 Информация:
/stats - Сводка по торговле
/positions - Открытые позиции
/history [limit] - История сделок
/logs [limit] - Журнал уведомлений
/settings - Настройки агента

⚡ Действия:
/close <symbol> - Закрыть позицию
/close_all - Закрыть все позиции
/close_profitable - Закрыть прибыльные
/close_losing - Закрыть убыточные
/scan - Сканировать рынок
/analyze <symbol> [timeframe] - AI анализ
/refresh - Внеочередная сверка

/help - Помощь`
}

func (h *Handler) handleStats() string {
	dashboard := h.store.Dashboard()
	if dashboard == nil {
		return "⚠️ Данные еще не получены. Попробуй /refresh"
	}

	stats := dashboard.Stats

	return fmt.Sprintf(`📊 СВОДКА

💰 Общий PnL: %.2f USDT
💼 Баланс: %.2f USDT
📈 Win rate: %.1f%% (%d/%d)
📉 Убыточных: %d
🏆 Profit factor: %.2f
🕳 Max drawdown: %.2f
🧠 Модель: %s`,
		stats.TotalPnl,
		stats.WalletBalance,
		stats.WinRate,
		stats.WinningTrades,
		stats.TotalTrades,
		stats.LosingTrades,
		stats.ProfitFactor,
		stats.MaxDrawdown,
		stats.ActiveModel)
}

func (h *Handler) handlePositions() string {
	positions := h.store.Positions()
	if len(positions) == 0 {
		return "📝 Нет открытых позиций"
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("📋 ПОЗИЦИИ (%d):\n", len(positions)))

	for _, pos := range positions {
		icon := "🟢"
		if pos.Pnl < 0 {
			icon = "🔴"
		}

		lines = append(lines, fmt.Sprintf("%s %s %s\nВход: %.6g → %.6g\nPnL: %.2f USDT (%.2f%%)\nSL: %.6g / TP: %.6g\n",
			icon, pos.Symbol, strings.ToUpper(pos.Side),
			pos.EntryPrice, pos.CurrentPrice,
			pos.Pnl, pos.PnlPercentage,
			pos.StopLoss, pos.TakeProfit))
	}

	return strings.Join(lines, "\n")
}

func (h *Handler) handleClose(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return "❌ Формат: /close <symbol>"
	}

	symbol := strings.ToUpper(args[0])
	if err := h.actions.ClosePosition(ctx, symbol); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	return fmt.Sprintf("✅ Позиция %s закрыта", symbol)
}

func (h *Handler) handleCloseAll(ctx context.Context) string {
	if err := h.actions.CloseAllPositions(ctx); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	return "✅ Все позиции закрыты"
}

func (h *Handler) handleCloseProfitable(ctx context.Context) string {
	if err := h.actions.CloseProfitablePositions(ctx); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	return "✅ Прибыльные позиции закрыты"
}

func (h *Handler) handleCloseLosing(ctx context.Context) string {
	if err := h.actions.CloseLosingPositions(ctx); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	return "✅ Убыточные позиции закрыты"
}

func (h *Handler) handleScan(ctx context.Context) string {
	if err := h.actions.RunInteractiveScan(ctx); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	candidates := h.store.Candidates()
	if len(candidates) == 0 {
		return "📝 Сканер не нашел кандидатов"
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("🔍 КАНДИДАТЫ (%d):\n", len(candidates)))

	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("• %s [%s] RSI %.1f / ADX %.1f",
			c.Symbol, c.Timeframe, c.Indicators.RSI, c.Indicators.ADX))
	}

	return strings.Join(lines, "\n")
}

func (h *Handler) handleAnalyze(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return "❌ Формат: /analyze <symbol> [timeframe]"
	}

	req := models.AnalysisRequest{
		Symbol:    strings.ToUpper(args[0]),
		Timeframe: "1h",
	}
	if len(args) > 1 {
		req.Timeframe = args[1]
	}

	result, err := h.actions.RunAnalysis(ctx, req)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	return fmt.Sprintf(`🧠 АНАЛИЗ %s [%s]

Рекомендация: %s
Цена: %.6g

%s`,
		result.Symbol, result.Timeframe,
		result.Recommendation, result.Data.Price,
		result.Reason)
}

func (h *Handler) handleRefresh() string {
	h.actions.RefreshAll()
	return "🔄 Сверка запланирована"
}

func (h *Handler) handleSettings() string {
	settings := h.store.Settings()
	if len(settings) == 0 {
		return "⚠️ Настройки еще не получены. Попробуй /refresh"
	}

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var lines []string
	lines = append(lines, "⚙️ НАСТРОЙКИ:\n")
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s = %v", key, settings[key]))
	}

	return strings.Join(lines, "\n")
}

func (h *Handler) handleHistory(args []string) string {
	limit := 10
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	dashboard := h.store.Dashboard()
	if dashboard == nil || len(dashboard.TradeHistory) == 0 {
		return "📝 История пуста"
	}

	history := dashboard.TradeHistory
	if len(history) > limit {
		history = history[:limit]
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("📜 ИСТОРИЯ (%d):\n", len(history)))

	for _, trade := range history {
		icon := "🟢"
		if trade.Pnl < 0 {
			icon = "🔴"
		}

		lines = append(lines, fmt.Sprintf("%s %s %s %.2f USDT (%s)",
			icon, trade.Symbol, strings.ToUpper(trade.Side), trade.Pnl,
			trade.ClosedAt.Format("02.01 15:04")))
	}

	return strings.Join(lines, "\n")
}

func (h *Handler) handleLogs(args []string) string {
	limit := 10
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.storage.Notifications(limit)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	if len(records) == 0 {
		return "📝 Журнал пуст"
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("🗒 ЖУРНАЛ (%d):\n", len(records)))

	for _, record := range records {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			record.CreatedAt.Format("02.01 15:04"), record.Severity, record.Message))
	}

	return strings.Join(lines, "\n")
}
