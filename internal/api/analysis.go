package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"agent_console/pkg/models"

	"github.com/gorilla/mux"
)

// HandleNewAnalysis запускает анализ произвольного символа
func (h *Handler) HandleNewAnalysis(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Symbol == "" {
		h.respondError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	result, err := h.actions.RunAnalysis(r.Context(), req)
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Analysis complete", result)
}

// HandleGetPresets возвращает пресеты настроек агента
func (h *Handler) HandleGetPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.actions.Presets(r.Context())
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, presets)
}

// HandleSavePreset создает или обновляет пресет
func (h *Handler) HandleSavePreset(w http.ResponseWriter, r *http.Request) {
	var preset models.Preset
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.actions.SavePreset(r.Context(), preset)
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Preset saved", saved)
}

// HandleDeletePreset удаляет пресет
func (h *Handler) HandleDeletePreset(w http.ResponseWriter, r *http.Request) {
	presetID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid preset id")
		return
	}

	if err := h.actions.DeletePreset(r.Context(), presetID); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Preset deleted", nil)
}

// HandleRunBacktest запускает бэктест стратегии
func (h *Handler) HandleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req models.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Symbol == "" {
		h.respondError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	result, err := h.actions.RunBacktest(r.Context(), req)
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Backtest complete", result)
}

// HandleOHLCV отдает свечи для графика
func (h *Handler) HandleOHLCV(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "1h"
	}

	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	candles, err := h.actions.OHLCV(r.Context(), symbol, timeframe, limit)
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, candles)
}
