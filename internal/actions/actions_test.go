package actions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"agent_console/internal/notify"
	"agent_console/internal/settings"
	"agent_console/internal/state"
	"agent_console/pkg/models"
	"agent_console/pkg/services/agent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// toastRecorder собирает все показанные уведомления
type toastRecorder struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (r *toastRecorder) Notify(toast notify.Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, toast)
	r.mu.Unlock()
}

func (r *toastRecorder) last(t *testing.T) notify.Toast {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.toasts) == 0 {
		t.Fatal("no toasts shown")
	}

	return r.toasts[len(r.toasts)-1]
}

func newTestService(t *testing.T, handler http.Handler) (*Service, *state.Store, *toastRecorder) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := state.New()
	toasts := notify.NewCenter(testLogger())
	recorder := &toastRecorder{}
	toasts.AddSink(recorder)

	client := agent.New(srv.URL, func() string { return "tok" }, testLogger())
	svc := New(client, store, toasts, testLogger())

	return svc, store, recorder
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func dashboardHandler(failPositions bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.DashboardData{Stats: models.Stats{TotalPnl: 42}})
	})
	mux.HandleFunc("/positions/", func(w http.ResponseWriter, r *http.Request) {
		if failPositions {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"db locked"}`))

			return
		}
		writeJSON(w, models.PositionsResponse{
			ManagedPositions: []models.ManagedPosition{{Symbol: "BTCUSDT"}},
		})
	})
	mux.HandleFunc("/settings/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.Settings{"LEVERAGE": 10.0})
	})
	mux.HandleFunc("/dashboard/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.Event{{ID: 1, Message: "started"}})
	})

	return mux
}

func TestFetchDashboardBatchCommit(t *testing.T) {
	svc, store, _ := newTestService(t, dashboardHandler(false))

	commit, err := svc.FetchDashboardBatch(context.Background())
	if err != nil {
		t.Fatalf("FetchDashboardBatch: %v", err)
	}

	// До commit'а состояние нетронуто
	if store.Dashboard() != nil {
		t.Error("state must not change before commit")
	}

	commit()

	if store.Dashboard() == nil || store.Dashboard().Stats.TotalPnl != 42 {
		t.Error("dashboard must be applied after commit")
	}
	if len(store.Positions()) != 1 {
		t.Error("positions must be applied after commit")
	}
	if store.Settings()["LEVERAGE"] != 10.0 {
		t.Error("settings must be applied after commit")
	}
}

func TestFetchDashboardBatchAllOrNothing(t *testing.T) {
	svc, store, _ := newTestService(t, dashboardHandler(true))

	commit, err := svc.FetchDashboardBatch(context.Background())
	if err == nil {
		t.Fatal("batch with one failed read must fail entirely")
	}
	if commit != nil {
		t.Error("failed batch must not produce a commit")
	}

	var httpErr *agent.HTTPError
	if !errors.As(err, &httpErr) {
		t.Errorf("err = %v, want to carry *HTTPError", err)
	}

	// Три успешных чтения не применились
	if store.Dashboard() != nil || len(store.Settings()) != 0 {
		t.Error("partial batch must not touch state")
	}
}

func TestActionErrorShowsToastAndClearsBusy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/positions/BTCUSDT/close", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail":"exchange unavailable"}`))
	})

	svc, store, recorder := newTestService(t, mux)

	err := svc.ClosePosition(context.Background(), "BTCUSDT")
	if err == nil {
		t.Fatal("action must fail")
	}

	last := recorder.last(t)
	if last.Severity != notify.Error || last.Message != "exchange unavailable" {
		t.Errorf("last toast = %+v, want error with backend detail", last)
	}

	// Busy снят: действие можно повторить сразу
	if store.IsBusy("position:BTCUSDT") {
		t.Error("busy flag must be cleared after failure")
	}
}

func TestEntityBusyBlocksSecondAction(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/positions/BTCUSDT/close", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		writeJSON(w, models.ActionResponse{Message: "closed"})
	})

	svc, store, _ := newTestService(t, mux)

	done := make(chan error, 1)
	go func() {
		done <- svc.ClosePosition(context.Background(), "BTCUSDT")
	}()
	<-started

	// Повторное действие по той же сущности блокируется
	if err := svc.ClosePosition(context.Background(), "BTCUSDT"); !errors.Is(err, ErrBusy) {
		t.Errorf("second action = %v, want ErrBusy", err)
	}

	// Действие по другой сущности независимо
	if store.IsBusy("position:ETHUSDT") {
		t.Error("other entity must not be busy")
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first action failed: %v", err)
	}

	if store.IsBusy("position:BTCUSDT") {
		t.Error("busy flag must be cleared after success")
	}
}

func TestRefreshAllCandidatesPartialTolerance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/scanner/candidates/BTCUSDT/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.Candidate{Symbol: "BTCUSDT", Indicators: models.Indicators{RSI: 71}})
	})
	mux.HandleFunc("/scanner/candidates/ETHUSDT/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"no data"}`))
	})

	svc, store, recorder := newTestService(t, mux)

	store.ReplaceCandidates([]models.Candidate{
		{Symbol: "BTCUSDT", Indicators: models.Indicators{RSI: 50}},
		{Symbol: "ETHUSDT", Indicators: models.Indicators{RSI: 60}},
	})

	result, err := svc.RefreshAllCandidates(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllCandidates: %v", err)
	}

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 succeeded / 1 failed", result)
	}

	candidates := store.Candidates()
	for _, c := range candidates {
		switch c.Symbol {
		case "BTCUSDT":
			if c.Indicators.RSI != 71 {
				t.Errorf("BTC RSI = %v, want refreshed 71", c.Indicators.RSI)
			}
		case "ETHUSDT":
			// Неудачный refresh сохраняет прежнее значение
			if c.Indicators.RSI != 60 {
				t.Errorf("ETH RSI = %v, want untouched 60", c.Indicators.RSI)
			}
		}
	}

	last := recorder.last(t)
	if last.Severity != notify.Warning {
		t.Errorf("aggregate toast severity = %v, want Warning on partial failure", last.Severity)
	}
}

func TestSaveSettingsSuccess(t *testing.T) {
	var gotMethod string
	var gotBody models.Settings

	mux := http.NewServeMux()
	mux.HandleFunc("/settings/", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, models.ActionResponse{Message: "Settings updated"})
	})

	svc, store, recorder := newTestService(t, mux)

	editor := settings.NewEditor(nil, nil)
	svc.SetEditor(editor)

	store.SetSettings(models.Settings{"LEVERAGE": 10.0, "LIVE_TRADING": true})

	if _, err := svc.OpenSettings(); err != nil {
		t.Fatalf("OpenSettings: %v", err)
	}
	if err := svc.SetSetting("LEVERAGE", float64(25)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	// Подтверждённая копия не тронута до сохранения
	if store.Settings()["LEVERAGE"] != 10.0 {
		t.Error("confirmed settings must not change while editing")
	}

	if err := svc.SaveSettings(context.Background()); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	// Бэкенду ушёл полный набор, не diff
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotBody["LEVERAGE"] != float64(25) || gotBody["LIVE_TRADING"] != true {
		t.Errorf("body = %v, want full settings object", gotBody)
	}

	if store.Settings()["LEVERAGE"] != float64(25) {
		t.Error("confirmed settings must be replaced after successful save")
	}
	if editor.IsOpen() {
		t.Error("editor must close after successful save")
	}

	last := recorder.last(t)
	if last.Severity != notify.Success || last.Message != "Settings updated" {
		t.Errorf("last toast = %+v, want success with backend message", last)
	}
}

func TestSaveSettingsFailureKeepsDraft(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/settings/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"write failed"}`))
	})

	svc, store, recorder := newTestService(t, mux)

	editor := settings.NewEditor(nil, nil)
	svc.SetEditor(editor)

	store.SetSettings(models.Settings{"LEVERAGE": 10.0})

	if _, err := svc.OpenSettings(); err != nil {
		t.Fatalf("OpenSettings: %v", err)
	}
	if err := svc.SetSetting("LEVERAGE", float64(25)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	if err := svc.SaveSettings(context.Background()); err == nil {
		t.Fatal("save must fail")
	}

	// Редактор открыт, черновик цел, подтверждённая копия не тронута
	if !editor.IsOpen() {
		t.Error("editor must stay open after failed save")
	}

	draft, err := editor.Draft()
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft["LEVERAGE"] != float64(25) {
		t.Error("draft must survive failed save")
	}
	if store.Settings()["LEVERAGE"] != 10.0 {
		t.Error("confirmed settings must not change on failed save")
	}

	last := recorder.last(t)
	if last.Severity != notify.Error {
		t.Errorf("last toast severity = %v, want Error", last.Severity)
	}
}

func TestInteractiveScanReplacesCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/scanner/run-interactive-scan", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []models.Candidate{{Symbol: "SOLUSDT"}, {Symbol: "BTCUSDT"}})
	})

	svc, store, recorder := newTestService(t, mux)

	store.ReplaceCandidates([]models.Candidate{{Symbol: "OLDUSDT"}})

	if err := svc.RunInteractiveScan(context.Background()); err != nil {
		t.Fatalf("RunInteractiveScan: %v", err)
	}

	candidates := store.Candidates()
	if len(candidates) != 2 || candidates[0].Symbol != "SOLUSDT" {
		t.Errorf("candidates = %v, want replaced set", candidates)
	}

	last := recorder.last(t)
	if last.Severity != notify.Success {
		t.Errorf("toast severity = %v, want Success", last.Severity)
	}
}
