package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"agent_console/internal/actions"
	"agent_console/internal/auth"
	"agent_console/internal/notify"
	"agent_console/internal/poller"
	"agent_console/internal/session"
	"agent_console/internal/state"
)

// Handler обрабатывает API запросы консоли
type Handler struct {
	store           *state.Store
	session         *session.Manager
	actions         *actions.Service
	authService     *auth.Service
	toasts          *notify.Center
	dashboardPoller *poller.Poller
	scannerPoller   *poller.Poller
	ws              *WSManager
	logger          *slog.Logger
}

func New(
	store *state.Store,
	sessionMgr *session.Manager,
	actionsSvc *actions.Service,
	authService *auth.Service,
	toasts *notify.Center,
	dashboardPoller *poller.Poller,
	scannerPoller *poller.Poller,
	ws *WSManager,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:           store,
		session:         sessionMgr,
		actions:         actionsSvc,
		authService:     authService,
		toasts:          toasts,
		dashboardPoller: dashboardPoller,
		scannerPoller:   scannerPoller,
		ws:              ws,
		logger:          logger,
	}
}

// Helper функции для JSON ответов

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func (h *Handler) respondSuccess(w http.ResponseWriter, message string, data any) {
	h.respondJSON(w, http.StatusOK, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// respondActionError транслирует ошибку действия в HTTP статус
func (h *Handler) respondActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actions.ErrBusy):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.respondError(w, http.StatusBadGateway, err.Error())
	}
}
