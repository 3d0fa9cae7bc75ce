package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// HandleLogin обрабатывает вход оператора в консоль
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Валидация
	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, err := h.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondSuccess(w, "Login successful", LoginResponse{
		Token:    token,
		Username: req.Username,
	})
}

type BackendLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// HandleBackendLogin выполняет вход в торговый агент от имени консоли
func (h *Handler) HandleBackendLogin(w http.ResponseWriter, r *http.Request) {
	var req BackendLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.session.Login(r.Context(), req.Username, req.Password) {
		h.respondError(w, http.StatusUnauthorized, "Backend login failed")
		return
	}

	// После входа сразу наполняем стейт
	h.dashboardPoller.Tick()
	h.scannerPoller.Tick()

	h.respondSuccess(w, "Backend login successful", h.sessionStatus())
}

// HandleBackendLogout завершает сессию торгового агента
func (h *Handler) HandleBackendLogout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	h.respondSuccess(w, "Backend session closed", h.sessionStatus())
}

// HandleSessionStatus возвращает статус сессии торгового агента
func (h *Handler) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sessionStatus())
}

func (h *Handler) sessionStatus() SessionStatus {
	status := SessionStatus{Authenticated: h.session.Authenticated()}
	if expires := h.session.ExpiresAt(); !expires.IsZero() {
		status.ExpiresAt = expires.UTC().Format(time.RFC3339)
	}

	return status
}
