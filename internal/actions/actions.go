package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agent_console/internal/notify"
	"agent_console/internal/poller"
	"agent_console/internal/settings"
	"agent_console/internal/state"
	"agent_console/pkg/models"
	"agent_console/pkg/services/agent"
)

// ErrBusy - по сущности уже выполняется действие
var ErrBusy = errors.New("another action is already running for this entity")

// Service - слой операторских действий. Реализует протокол мутаций:
// busy-флаг на сущность, вызов бэкенда, toast об исходе, внеочередная
// сверка после успеха. Локальное состояние до подтверждения сервера
// не мутируется - откатывать нечего.
type Service struct {
	client *agent.Client
	store  *state.Store
	toasts *notify.Center
	editor *settings.Editor
	logger *slog.Logger

	dashboardPoller *poller.Poller
	scannerPoller   *poller.Poller

	saveSnapshot func(state.Snapshot)
}

func New(client *agent.Client, store *state.Store, toasts *notify.Center, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		toasts: toasts,
		logger: logger,
	}
}

// AttachPollers связывает сервис с poller'ами (поздняя связка:
// fetch-функции poller'ов сами приходят из этого сервиса)
func (s *Service) AttachPollers(dashboard, scanner *poller.Poller) {
	s.dashboardPoller = dashboard
	s.scannerPoller = scanner
}

// SetEditor связывает сервис с редактором настроек
func (s *Service) SetEditor(editor *settings.Editor) {
	s.editor = editor
}

// SetSnapshotSaver регистрирует кэш последнего закоммиченного снапшота
// (переживает рестарт, показывается до первой успешной сверки)
func (s *Service) SetSnapshotSaver(f func(state.Snapshot)) {
	s.saveSnapshot = f
}

// === Батчи сверки (FetchFunc для poller'ов) ===

// FetchDashboardBatch выполняет один батч дашборда: четыре независимых
// чтения запускаются одновременно, коммит - всё или ничего. Частичный
// успех не применяется, чтобы не показать пару stats/positions,
// никогда не существовавшую на сервере вместе.
func (s *Service) FetchDashboardBatch(ctx context.Context) (func(), error) {
	var (
		dashboard *models.DashboardData
		positions []models.ManagedPosition
		conf      models.Settings
		events    []models.Event
		errs      [4]error
	)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		dashboard, errs[0] = s.client.DashboardStats(ctx)
	}()
	go func() {
		defer wg.Done()
		positions, errs[1] = s.client.Positions(ctx)
	}()
	go func() {
		defer wg.Done()
		conf, errs[2] = s.client.Settings(ctx)
	}()
	go func() {
		defer wg.Done()
		events, errs[3] = s.client.Events(ctx, 50)
	}()

	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}

	snap := state.Snapshot{
		Dashboard: dashboard,
		Positions: positions,
		Settings:  conf,
		Events:    events,
	}

	return func() {
		s.store.ApplySnapshot(snap)
		if s.saveSnapshot != nil {
			s.saveSnapshot(snap)
		}
	}, nil
}

// FetchScannerBatch обновляет список кандидатов сканера
func (s *Service) FetchScannerBatch(ctx context.Context) (func(), error) {
	candidates, err := s.client.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	return func() { s.store.ReplaceCandidates(candidates) }, nil
}

// === Протокол мутаций ===

// runEntityAction выполняет мутацию по сущности с busy-флагом.
// Флаг привязан к идентификатору сущности, не глобален: параллельные
// действия по разным строкам независимы.
func (s *Service) runEntityAction(ctx context.Context, entityID, pending string, fn func(ctx context.Context) (string, error)) error {
	if !s.store.SetBusy(entityID) {
		s.toasts.Show(fmt.Sprintf("%s: action already in progress", entityID), notify.Warning)
		return ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	if pending != "" {
		s.toasts.Show(pending, notify.Info)
	}

	message, err := fn(ctx)
	if err != nil {
		// Состояние до действия не трогали - откатывать нечего,
		// контролы строки снова доступны после снятия busy.
		s.toasts.Show(err.Error(), notify.Error)

		return err
	}

	s.toasts.Show(message, notify.Success)
	s.refreshDashboard()

	return nil
}

func (s *Service) refreshDashboard() {
	if s.dashboardPoller != nil {
		s.dashboardPoller.ForceRefresh()
	}
}

// RefreshAll запрашивает внеочередную сверку всех поллеров
func (s *Service) RefreshAll() {
	s.refreshDashboard()
	s.refreshScanner()
}

func (s *Service) refreshScanner() {
	if s.scannerPoller != nil {
		s.scannerPoller.ForceRefresh()
	}
}

// === Позиции ===

// OpenPosition открывает позицию по подтверждённой рекомендации
func (s *Service) OpenPosition(ctx context.Context, req models.OpenPositionRequest) error {
	return s.runEntityAction(ctx, "position:"+req.Symbol,
		fmt.Sprintf("Opening %s position for %s...", req.Recommendation, req.Symbol),
		func(ctx context.Context) (string, error) {
			resp, err := s.client.OpenPosition(ctx, req)
			if err != nil {
				return "", err
			}

			return orDefault(resp.Message, "Position opened"), nil
		})
}

// ClosePosition закрывает одну позицию
func (s *Service) ClosePosition(ctx context.Context, symbol string) error {
	return s.runEntityAction(ctx, "position:"+symbol,
		fmt.Sprintf("Closing position %s...", symbol),
		func(ctx context.Context) (string, error) {
			resp, err := s.client.ClosePosition(ctx, symbol)
			if err != nil {
				return "", err
			}

			return orDefault(resp.Message, "Position closed"), nil
		})
}

// RefreshPnl пересчитывает PNL одной позиции
func (s *Service) RefreshPnl(ctx context.Context, symbol string) error {
	return s.runEntityAction(ctx, "pnl:"+symbol, "",
		func(ctx context.Context) (string, error) {
			resp, err := s.client.RefreshPnl(ctx, symbol)
			if err != nil {
				return "", err
			}

			return orDefault(resp.Message, fmt.Sprintf("PNL refresh started for %s", symbol)), nil
		})
}

// ReanalyzePosition запрашивает переоценку позиции у AI.
// Результат показывается в модале, состояние не мутируется.
func (s *Service) ReanalyzePosition(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	entityID := "reanalyze:" + symbol
	if !s.store.SetBusy(entityID) {
		return nil, ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	result, err := s.client.ReanalyzePosition(ctx, symbol)
	if err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return nil, err
	}

	return result, nil
}

// CloseAllPositions закрывает все позиции (bulk на стороне бэкенда)
func (s *Service) CloseAllPositions(ctx context.Context) error {
	return s.bulkCloseAction(ctx, "Closing all positions...", s.client.CloseAllPositions)
}

// CloseProfitablePositions закрывает все позиции в плюсе
func (s *Service) CloseProfitablePositions(ctx context.Context) error {
	return s.bulkCloseAction(ctx, "Closing profitable positions...", s.client.CloseProfitablePositions)
}

// CloseLosingPositions закрывает все позиции в минусе
func (s *Service) CloseLosingPositions(ctx context.Context) error {
	return s.bulkCloseAction(ctx, "Closing losing positions...", s.client.CloseLosingPositions)
}

func (s *Service) bulkCloseAction(ctx context.Context, pending string, call func(ctx context.Context) (*models.BulkCloseResponse, error)) error {
	return s.runEntityAction(ctx, "positions:bulk", pending,
		func(ctx context.Context) (string, error) {
			resp, err := call(ctx)
			if err != nil {
				return "", err
			}
			if resp.Message != "" {
				return resp.Message, nil
			}

			return fmt.Sprintf("Closed %d positions, %d failed", resp.Closed, resp.Failed), nil
		})
}

// ReanalyzeAllPositions запускает переоценку всех открытых позиций
func (s *Service) ReanalyzeAllPositions(ctx context.Context) error {
	return s.runEntityAction(ctx, "positions:bulk", "Re-analyzing all positions...",
		func(ctx context.Context) (string, error) {
			resp, err := s.client.ReanalyzeAllPositions(ctx)
			if err != nil {
				return "", err
			}

			return orDefault(resp.Message, "Re-analysis started for all positions"), nil
		})
}

// === Анализ и сканер ===

// RunAnalysis запускает разовый AI анализ символа
func (s *Service) RunAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	entityID := "analysis:" + req.Symbol
	if !s.store.SetBusy(entityID) {
		return nil, ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	result, err := s.client.NewAnalysis(ctx, req)
	if err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return nil, err
	}

	return result, nil
}

// RunInteractiveScan сканирует рынок и кладёт кандидатов в состояние
func (s *Service) RunInteractiveScan(ctx context.Context) error {
	return s.runEntityAction(ctx, "scanner:interactive", "Scanning the market for opportunities...",
		func(ctx context.Context) (string, error) {
			candidates, err := s.client.RunInteractiveScan(ctx)
			if err != nil {
				return "", err
			}

			s.store.ReplaceCandidates(candidates)

			return fmt.Sprintf("Found %d potential opportunities", len(candidates)), nil
		})
}

// RunProactiveScan запускает полный проактивный прогон
func (s *Service) RunProactiveScan(ctx context.Context) (*models.ScanResult, error) {
	entityID := "scanner:proactive"
	if !s.store.SetBusy(entityID) {
		return nil, ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	s.toasts.Show("Starting proactive scan...", notify.Info)

	result, err := s.client.RunProactiveScan(ctx)
	if err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return nil, err
	}

	s.toasts.Show(fmt.Sprintf("Scan finished: %d scanned, %d opportunities, %d errors",
		result.Summary.TotalScanned, result.Summary.OpportunitiesFound, result.Summary.DataErrors),
		notify.Success)
	s.refreshScanner()

	return result, nil
}

// RefreshCandidate обновляет индикаторы одного кандидата
func (s *Service) RefreshCandidate(ctx context.Context, symbol string) error {
	entityID := "candidate:" + symbol
	if !s.store.SetBusy(entityID) {
		s.toasts.Show(fmt.Sprintf("%s: refresh already in progress", symbol), notify.Warning)
		return ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	candidate, err := s.client.RefreshCandidate(ctx, symbol)
	if err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return err
	}

	s.store.UpdateCandidate(*candidate)

	return nil
}

// BulkResult - итог веерной массовой операции
type BulkResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RefreshAllCandidates обновляет всех кандидатов параллельным веером.
// Частичные отказы терпимы: неудачные записи сохраняют прежнее
// значение, успешные применяются по одной. Пользователь получает
// агрегированный счёт успехов и отказов.
func (s *Service) RefreshAllCandidates(ctx context.Context) (BulkResult, error) {
	candidates := s.store.Candidates()
	if len(candidates) == 0 {
		s.toasts.Show("No scanner candidates to refresh", notify.Info)
		return BulkResult{}, nil
	}

	entityID := "scanner:bulk-refresh"
	if !s.store.SetBusy(entityID) {
		return BulkResult{}, ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	type outcome struct {
		candidate *models.Candidate
		err       error
	}

	results := make([]outcome, len(candidates))

	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for i, candidate := range candidates {
		go func(i int, symbol string) {
			defer wg.Done()

			refreshed, err := s.client.RefreshCandidate(ctx, symbol)
			results[i] = outcome{candidate: refreshed, err: err}
		}(i, candidate.Symbol)
	}
	wg.Wait()

	var result BulkResult
	for i, r := range results {
		if r.err != nil {
			result.Failed++
			s.logger.Warn("Candidate refresh failed",
				slog.String("symbol", candidates[i].Symbol),
				slog.Any("error", r.err))

			continue
		}

		result.Succeeded++
		s.store.UpdateCandidate(*r.candidate)
	}

	severity := notify.Success
	if result.Failed > 0 {
		severity = notify.Warning
	}
	s.toasts.Show(fmt.Sprintf("Refreshed %d candidates, %d failed", result.Succeeded, result.Failed), severity)

	return result, nil
}

// === Настройки ===

// OpenSettings открывает редактор и возвращает черновик
func (s *Service) OpenSettings() (models.Settings, error) {
	draft, err := s.editor.Open(s.store.Settings())
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// SetSetting применяет одну правку к черновику
func (s *Service) SetSetting(key string, value any) error {
	return s.editor.Set(key, value)
}

// CancelSettings закрывает редактор без сохранения: черновик
// отброшен, подтверждённая копия как была
func (s *Service) CancelSettings() {
	s.editor.Cancel()
}

// SaveSettings отправляет черновик целиком на бэкенд. Подтверждённая
// копия заменяется только после успешного ответа; редактор
// закрывается, опрос возобновляется, запускается внеочередная сверка.
func (s *Service) SaveSettings(ctx context.Context) error {
	draft, err := s.editor.Draft()
	if err != nil {
		return err
	}

	if err := settings.ValidateAll(draft); err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return err
	}

	s.toasts.Show("Saving settings...", notify.Info)

	resp, err := s.client.SaveSettings(ctx, draft)
	if err != nil {
		// Редактор остаётся открытым, черновик цел
		s.toasts.Show(err.Error(), notify.Error)

		return err
	}

	confirmed, err := s.editor.Commit()
	if err != nil {
		return err
	}

	s.store.SetSettings(confirmed)
	s.toasts.Show(orDefault(resp.Message, "Settings saved"), notify.Success)
	s.refreshDashboard()

	return nil
}

// === Пресеты ===

// Presets возвращает список пресетов стратегий
func (s *Service) Presets(ctx context.Context) ([]models.Preset, error) {
	return s.client.Presets(ctx)
}

// SavePreset сохраняет новый пресет
func (s *Service) SavePreset(ctx context.Context, preset models.Preset) (*models.Preset, error) {
	saved, err := s.client.SavePreset(ctx, preset)
	if err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return nil, err
	}

	s.toasts.Show(fmt.Sprintf("Preset %q saved", saved.Name), notify.Success)

	return saved, nil
}

// DeletePreset удаляет пресет
func (s *Service) DeletePreset(ctx context.Context, presetID int) error {
	entityID := fmt.Sprintf("preset:%d", presetID)
	if !s.store.SetBusy(entityID) {
		return ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	if err := s.client.DeletePreset(ctx, presetID); err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return err
	}

	s.toasts.Show("Preset deleted", notify.Success)

	return nil
}

// === Бэктест и графики ===

// RunBacktest запускает бэктест, блокирует повторный запуск до конца
func (s *Service) RunBacktest(ctx context.Context, req models.BacktestRequest) (*models.BacktestResult, error) {
	entityID := "backtest"
	if !s.store.SetBusy(entityID) {
		s.toasts.Show("A backtest is already running", notify.Warning)
		return nil, ErrBusy
	}
	defer s.store.ClearBusy(entityID)

	s.toasts.Show(fmt.Sprintf("Running backtest for %s...", req.Symbol), notify.Info)

	result, err := s.client.RunBacktest(ctx, req)
	if err != nil {
		s.toasts.Show(err.Error(), notify.Error)
		return nil, err
	}

	s.toasts.Show(fmt.Sprintf("Backtest finished: %d trades, %.2f total PNL",
		len(result.Trades), result.Stats.TotalPnl), notify.Success)

	return result, nil
}

// OHLCV возвращает свечи для графика
func (s *Service) OHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	return s.client.OHLCV(ctx, symbol, timeframe, limit)
}

func orDefault(message, fallback string) string {
	if message != "" {
		return message
	}

	return fallback
}
