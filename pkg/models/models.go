package models

import (
	"strings"
	"time"
)

// FlexibleTime парсит метки времени бэкенда.
// Python datetime.isoformat() отдаёт время без зоны, поэтому
// поддерживаем несколько форматов.
type FlexibleTime struct {
	time.Time
}

var timeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "" || s == "null" {
		ft.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, format := range timeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			ft.Time = t
			return nil
		}
		lastErr = err
	}

	return lastErr
}

func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return []byte("\"" + ft.Format(time.RFC3339) + "\""), nil
}

// Stats - агрегированная статистика дашборда
type Stats struct {
	TotalPnl          float64 `json:"total_pnl"`
	WinRate           float64 `json:"win_rate"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	TotalTrades       int     `json:"total_trades"`
	ActiveModel       string  `json:"active_model"`
	ProfitFactor      float64 `json:"profit_factor"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	AvgPnl            float64 `json:"avg_pnl"`
	AvgHoldingSeconds float64 `json:"avg_holding_seconds"`
	WalletBalance     float64 `json:"wallet_balance"`
}

// ChartPoint - точка графика кумулятивного P&L
type ChartPoint struct {
	X string  `json:"x"` // дата YYYY-MM-DD
	Y float64 `json:"y"` // cumulative pnl
}

// ChartData - данные графика
type ChartData struct {
	Points []ChartPoint `json:"points"`
}

// SymbolPerformance - распределение сделок по символам
type SymbolPerformance struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// WeekPerformance - суммарный P&L за неделю
type WeekPerformance struct {
	Week string  `json:"week"`
	Pnl  float64 `json:"pnl"`
}

// DashboardData - полный ответ /dashboard/stats
type DashboardData struct {
	Stats               Stats               `json:"stats"`
	ChartData           ChartData           `json:"chart_data"`
	TradeHistory        []ClosedTrade       `json:"trade_history"`
	PerformanceBySymbol []SymbolPerformance `json:"performance_by_symbol"`
	PerformanceByWeek   []WeekPerformance   `json:"performance_by_week"`
}

// ManagedPosition - открытая позиция, управляемая агентом
type ManagedPosition struct {
	ID            int          `json:"id"`
	Symbol        string       `json:"symbol"`
	Side          string       `json:"side"` // "buy" / "sell"
	EntryPrice    float64      `json:"entry_price"`
	Amount        float64      `json:"amount"`
	StopLoss      float64      `json:"stop_loss"`
	TakeProfit    float64      `json:"take_profit"`
	Pnl           float64      `json:"pnl"`
	PnlPercentage float64      `json:"pnl_percentage"`
	CurrentPrice  float64      `json:"current_price"`
	Timeframe     string       `json:"timeframe"`
	OpenedAt      FlexibleTime `json:"opened_at"`
}

// PositionsResponse - ответ GET /positions/
type PositionsResponse struct {
	ManagedPositions   []ManagedPosition `json:"managed_positions"`
	UnmanagedPositions []ManagedPosition `json:"unmanaged_positions"`
}

// ClosedTrade - закрытая сделка из истории. Неизменяема после получения.
type ClosedTrade struct {
	ID         int          `json:"id"`
	Symbol     string       `json:"symbol"`
	Side       string       `json:"side"`
	EntryPrice float64      `json:"entry_price"`
	ClosePrice float64      `json:"close_price"`
	Pnl        float64      `json:"pnl"`
	Status     string       `json:"status"`
	Timeframe  string       `json:"timeframe"`
	OpenedAt   FlexibleTime `json:"opened_at"`
	ClosedAt   FlexibleTime `json:"closed_at"`
}

// Event - запись системного лога бэкенда
type Event struct {
	ID        int          `json:"id"`
	Level     string       `json:"level"`
	Message   string       `json:"message"`
	CreatedAt FlexibleTime `json:"created_at"`
}

// Settings - полный набор настроек агента.
// На проводе это плоский JSON объект; типизация и валидация
// значений выполняются по схеме в internal/settings.
type Settings map[string]any

// Clone возвращает неглубокую копию (значения-списки копируются)
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		if list, ok := v.([]string); ok {
			out[k] = append([]string(nil), list...)
			continue
		}
		out[k] = v
	}

	return out
}

// Indicators - индикаторы кандидата сканера
type Indicators struct {
	RSI float64 `json:"RSI"`
	ADX float64 `json:"ADX"`
}

// Candidate - символ, найденный сканером как потенциальная возможность
type Candidate struct {
	Symbol      string       `json:"symbol"`
	Source      string       `json:"source"`
	Timeframe   string       `json:"timeframe"`
	Indicators  Indicators   `json:"indicators"`
	LastUpdated FlexibleTime `json:"last_updated"`
}

// Preset - именованный набор параметров стратегии
type Preset struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	MaShort       *int     `json:"ma_short,omitempty"`
	MaLong        *int     `json:"ma_long,omitempty"`
	RsiPeriod     *int     `json:"rsi_period,omitempty"`
	RsiOverbought *int     `json:"rsi_overbought,omitempty"`
	RsiOversold   *int     `json:"rsi_oversold,omitempty"`
	RiskPercent   *float64 `json:"RISK_PER_TRADE_PERCENT,omitempty"`
}

// AnalysisRequest - запрос на разовый AI анализ
type AnalysisRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// AnalysisData - рыночные данные, приложенные к рекомендации
type AnalysisData struct {
	Price float64 `json:"price"`
}

// AnalysisResult - рекомендация AI по символу
type AnalysisResult struct {
	Symbol         string       `json:"symbol"`
	Recommendation string       `json:"recommendation"`
	Reason         string       `json:"reason"`
	Timeframe      string       `json:"timeframe"`
	Data           AnalysisData `json:"data"`
}

// OpenPositionRequest - запрос открытия позиции по рекомендации
type OpenPositionRequest struct {
	Symbol         string  `json:"symbol"`
	Recommendation string  `json:"recommendation"`
	Timeframe      string  `json:"timeframe"`
	Price          float64 `json:"price"`
}

// ActionResponse - типовой ответ мутирующего вызова
type ActionResponse struct {
	Message string `json:"message"`
}

// BulkCloseResponse - ответ массового закрытия на стороне бэкенда
type BulkCloseResponse struct {
	Message string `json:"message"`
	Closed  int    `json:"closed"`
	Failed  int    `json:"failed"`
}

// ScanSummary - сводка прогона сканера
type ScanSummary struct {
	TotalScanned       int `json:"total_scanned"`
	OpportunitiesFound int `json:"opportunities_found"`
	DataErrors         int `json:"data_errors"`
}

// ScanDetail - одна строка результата сканирования
type ScanDetail struct {
	Type    string          `json:"type"` // info, success, opportunity, error, critical
	Symbol  string          `json:"symbol"`
	Message string          `json:"message"`
	Data    *AnalysisResult `json:"data,omitempty"`
}

// ScanResult - полный результат прогона сканера
type ScanResult struct {
	Summary ScanSummary  `json:"summary"`
	Details []ScanDetail `json:"details"`
}

// BacktestRequest - запрос запуска бэктеста
type BacktestRequest struct {
	Symbol    string `json:"symbol"`
	Interval  string `json:"interval"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`
	Preset    Preset `json:"preset"`
}

// BacktestTrade - сделка, сгенерированная бэктестом
type BacktestTrade struct {
	Symbol     string       `json:"symbol"`
	Side       string       `json:"side"`
	EntryPrice float64      `json:"entry_price"`
	ExitPrice  float64      `json:"exit_price"`
	Pnl        float64      `json:"pnl"`
	OpenedAt   FlexibleTime `json:"opened_at"`
	ClosedAt   FlexibleTime `json:"closed_at"`
}

// BacktestResult - статистика и сделки бэктеста
type BacktestResult struct {
	Stats  Stats           `json:"stats"`
	Trades []BacktestTrade `json:"trades"`
}

// Candle - OHLCV свеча для графика
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// TokenResponse - ответ POST /auth/token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
