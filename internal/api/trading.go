package api

import (
	"encoding/json"
	"net/http"

	"agent_console/pkg/models"

	"github.com/gorilla/mux"
)

// HandleOpenPosition открывает позицию по рекомендации анализа
func (h *Handler) HandleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req models.OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Symbol == "" {
		h.respondError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	if err := h.actions.OpenPosition(r.Context(), req); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Position opened", nil)
}

// HandleClosePosition закрывает позицию по символу
func (h *Handler) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := h.actions.ClosePosition(r.Context(), symbol); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Position closed", nil)
}

// HandleRefreshPnl пересчитывает PnL позиции на стороне агента
func (h *Handler) HandleRefreshPnl(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := h.actions.RefreshPnl(r.Context(), symbol); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "PnL refreshed", nil)
}

// HandleReanalyzePosition запрашивает повторный анализ позиции
func (h *Handler) HandleReanalyzePosition(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	result, err := h.actions.ReanalyzePosition(r.Context(), symbol)
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Reanalysis complete", result)
}

// HandleCloseAll закрывает все управляемые позиции
func (h *Handler) HandleCloseAll(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.CloseAllPositions(r.Context()); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "All positions closed", nil)
}

// HandleCloseProfitable закрывает позиции в плюсе
func (h *Handler) HandleCloseProfitable(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.CloseProfitablePositions(r.Context()); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Profitable positions closed", nil)
}

// HandleCloseLosing закрывает позиции в минусе
func (h *Handler) HandleCloseLosing(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.CloseLosingPositions(r.Context()); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Losing positions closed", nil)
}

// HandleReanalyzeAll запрашивает повторный анализ всех позиций
func (h *Handler) HandleReanalyzeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.ReanalyzeAllPositions(r.Context()); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Reanalysis started", nil)
}
