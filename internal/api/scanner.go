package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleInteractiveScan запускает интерактивное сканирование рынка
func (h *Handler) HandleInteractiveScan(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.RunInteractiveScan(r.Context()); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Scan complete", h.store.Candidates())
}

// HandleProactiveScan запускает проактивный цикл сканера агента
func (h *Handler) HandleProactiveScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.actions.RunProactiveScan(r.Context())
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Proactive scan complete", result)
}

// HandleRefreshCandidate обновляет показатели одного кандидата
func (h *Handler) HandleRefreshCandidate(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := h.actions.RefreshCandidate(r.Context(), symbol); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Candidate refreshed", nil)
}

// HandleRefreshAllCandidates обновляет всех кандидатов параллельно
func (h *Handler) HandleRefreshAllCandidates(w http.ResponseWriter, r *http.Request) {
	result, err := h.actions.RefreshAllCandidates(r.Context())
	if err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Candidates refreshed", result)
}
