package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"agent_console/pkg/models"
	"agent_console/pkg/services/httpmiddleware"
)

const (
	// Таймаут одиночного запроса. Без него зависший poll навсегда
	// заблокировал бы правило "не более одного запроса в полёте".
	defaultRequestTimeout = 15 * time.Second

	dashboardStatsEndpoint    = "/dashboard/stats"
	dashboardEventsEndpoint   = "/dashboard/events"
	settingsEndpoint          = "/settings/"
	positionsEndpoint         = "/positions/"
	analysisNewEndpoint       = "/analysis/new"
	scannerCandidatesEndpoint = "/scanner/candidates"
	interactiveScanEndpoint   = "/scanner/run-interactive-scan"
	proactiveScanEndpoint     = "/scanner/run-proactive-scan"
	presetsEndpoint           = "/presets/"
	backtestRunEndpoint       = "/backtest/run"
	chartsOhlcvEndpoint       = "/charts/ohlcv"
)

// Client - клиент JSON API торгового агента.
// Каждому аутентифицированному запросу добавляется bearer токен
// (через транспортный middleware); 401 с любого endpoint'а
// передаётся в onUnauthorized ровно один раз на ошибку.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	onUnauthorized func()
	timeout        time.Duration
}

// New создаёт клиент агента. tokenSource читается на каждом запросе,
// пустой токен означает публичный вызов.
func New(baseURL string, tokenSource httpmiddleware.TokenSource, logger *slog.Logger) *Client {
	httpClient := &http.Client{
		Transport: httpmiddleware.Wrap(
			httpmiddleware.DefaultTransport(),
			httpmiddleware.RequestGetBodySetter,
			httpmiddleware.BearerAuth(tokenSource),
			httpmiddleware.Logger(logger, -1),
		),
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		timeout:    defaultRequestTimeout,
	}
}

// SetUnauthorizedHandler регистрирует обработчик 401 (session teardown).
func (c *Client) SetUnauthorizedHandler(f func()) {
	c.onUnauthorized = f
}

// call выполняет запрос и декодирует JSON ответ в out.
// out == nil означает fire-and-forget: тело игнорируется.
// 2xx ответ без JSON content type так же разрешается без значения.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}

		return &AuthError{}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	// Не-JSON 2xx считается пустым ответом (fire-and-forget действия)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// readDetail достаёт поле "detail" из тела ошибки бэкенда
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return ""
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}

	return payload.Detail
}

// symbolPath экранирует символ для подстановки в путь.
// Символы вида "BTC/USDT" содержат '/', бэкенд ожидает один сегмент.
func symbolPath(symbol string) string {
	return url.PathEscape(symbol)
}

// === Dashboard ===

// DashboardStats возвращает статистику, график и историю сделок
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardData, error) {
	var data models.DashboardData
	if err := c.call(ctx, http.MethodGet, dashboardStatsEndpoint, nil, &data); err != nil {
		return nil, err
	}

	return &data, nil
}

// Events возвращает последние системные события бэкенда
func (c *Client) Events(ctx context.Context, limit int) ([]models.Event, error) {
	path := dashboardEventsEndpoint
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var events []models.Event
	if err := c.call(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}

	return events, nil
}

// === Settings ===

// Settings возвращает полный набор настроек агента
func (c *Client) Settings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	if err := c.call(ctx, http.MethodGet, settingsEndpoint, nil, &settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SaveSettings заменяет настройки агента целиком (не diff)
func (c *Client) SaveSettings(ctx context.Context, settings models.Settings) (*models.ActionResponse, error) {
	var resp models.ActionResponse
	if err := c.call(ctx, http.MethodPut, settingsEndpoint, settings, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// === Positions ===

// Positions возвращает все управляемые позиции
func (c *Client) Positions(ctx context.Context) ([]models.ManagedPosition, error) {
	var resp models.PositionsResponse
	if err := c.call(ctx, http.MethodGet, positionsEndpoint, nil, &resp); err != nil {
		return nil, err
	}

	return resp.ManagedPositions, nil
}

// OpenPosition открывает позицию по рекомендации анализа
func (c *Client) OpenPosition(ctx context.Context, req models.OpenPositionRequest) (*models.ActionResponse, error) {
	var resp models.ActionResponse
	if err := c.call(ctx, http.MethodPost, positionsEndpoint+"open", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// ClosePosition закрывает одну позицию
func (c *Client) ClosePosition(ctx context.Context, symbol string) (*models.ActionResponse, error) {
	var resp models.ActionResponse
	if err := c.call(ctx, http.MethodPost, positionsEndpoint+symbolPath(symbol)+"/close", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// CloseAllPositions закрывает все позиции на стороне бэкенда
func (c *Client) CloseAllPositions(ctx context.Context) (*models.BulkCloseResponse, error) {
	return c.bulkClose(ctx, "close-all")
}

// CloseProfitablePositions закрывает все позиции в плюсе
func (c *Client) CloseProfitablePositions(ctx context.Context) (*models.BulkCloseResponse, error) {
	return c.bulkClose(ctx, "close-profitable")
}

// CloseLosingPositions закрывает все позиции в минусе
func (c *Client) CloseLosingPositions(ctx context.Context) (*models.BulkCloseResponse, error) {
	return c.bulkClose(ctx, "close-losing")
}

func (c *Client) bulkClose(ctx context.Context, action string) (*models.BulkCloseResponse, error) {
	var resp models.BulkCloseResponse
	if err := c.call(ctx, http.MethodPost, positionsEndpoint+action, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// RefreshPnl запускает пересчёт PNL позиции
func (c *Client) RefreshPnl(ctx context.Context, symbol string) (*models.ActionResponse, error) {
	var resp models.ActionResponse
	if err := c.call(ctx, http.MethodPost, positionsEndpoint+symbolPath(symbol)+"/refresh-pnl", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// ReanalyzePosition запрашивает у AI переоценку позиции (TUT/KAPAT)
func (c *Client) ReanalyzePosition(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := c.call(ctx, http.MethodPost, positionsEndpoint+symbolPath(symbol)+"/reanalyze", nil, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ReanalyzeAllPositions запускает переоценку всех позиций
func (c *Client) ReanalyzeAllPositions(ctx context.Context) (*models.ActionResponse, error) {
	var resp models.ActionResponse
	if err := c.call(ctx, http.MethodPost, positionsEndpoint+"reanalyze-all", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// === Analysis ===

// NewAnalysis запускает разовый AI анализ символа
func (c *Client) NewAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := c.call(ctx, http.MethodPost, analysisNewEndpoint, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// === Scanner ===

// RunInteractiveScan сканирует рынок и возвращает кандидатов без AI анализа
func (c *Client) RunInteractiveScan(ctx context.Context) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := c.call(ctx, http.MethodPost, interactiveScanEndpoint, nil, &candidates); err != nil {
		return nil, err
	}

	return candidates, nil
}

// RunProactiveScan запускает полный проактивный прогон сканера
func (c *Client) RunProactiveScan(ctx context.Context) (*models.ScanResult, error) {
	var result models.ScanResult
	if err := c.call(ctx, http.MethodPost, proactiveScanEndpoint, nil, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Candidates возвращает сохранённых кандидатов сканера
func (c *Client) Candidates(ctx context.Context) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := c.call(ctx, http.MethodGet, scannerCandidatesEndpoint, nil, &candidates); err != nil {
		return nil, err
	}

	return candidates, nil
}

// RefreshCandidate обновляет индикаторы одного кандидата
func (c *Client) RefreshCandidate(ctx context.Context, symbol string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := c.call(ctx, http.MethodPost, scannerCandidatesEndpoint+"/"+symbolPath(symbol)+"/refresh", nil, &candidate); err != nil {
		return nil, err
	}

	return &candidate, nil
}

// === Presets ===

// Presets возвращает все пресеты стратегий
func (c *Client) Presets(ctx context.Context) ([]models.Preset, error) {
	var presets []models.Preset
	if err := c.call(ctx, http.MethodGet, presetsEndpoint, nil, &presets); err != nil {
		return nil, err
	}

	return presets, nil
}

// SavePreset сохраняет новый пресет
func (c *Client) SavePreset(ctx context.Context, preset models.Preset) (*models.Preset, error) {
	var saved models.Preset
	if err := c.call(ctx, http.MethodPost, presetsEndpoint, preset, &saved); err != nil {
		return nil, err
	}

	return &saved, nil
}

// DeletePreset удаляет пресет (бэкенд отвечает 204 без тела)
func (c *Client) DeletePreset(ctx context.Context, presetID int) error {
	return c.call(ctx, http.MethodDelete, presetsEndpoint+strconv.Itoa(presetID), nil, nil)
}

// === Backtest ===

// RunBacktest запускает бэктест и дожидается результата
func (c *Client) RunBacktest(ctx context.Context, req models.BacktestRequest) (*models.BacktestResult, error) {
	var result models.BacktestResult
	if err := c.call(ctx, http.MethodPost, backtestRunEndpoint, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// === Charts ===

// OHLCV возвращает свечи для графика символа
func (c *Client) OHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("timeframe", timeframe)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var candles []models.Candle
	if err := c.call(ctx, http.MethodGet, chartsOhlcvEndpoint+"?"+query.Encode(), nil, &candles); err != nil {
		return nil, err
	}

	return candles, nil
}
