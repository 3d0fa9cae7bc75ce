package api

import (
	"net/http"

	"agent_console/internal/api/middleware"
	appmiddleware "agent_console/internal/middleware"

	"github.com/gorilla/mux"
)

// SetupRouter настраивает роутинг консоли
func (h *Handler) SetupRouter(webDir string) *mux.Router {
	r := mux.NewRouter()

	// Применяем CORS middleware ко всем маршрутам
	r.Use(appmiddleware.CORS)

	// Публичные маршруты (не требуют аутентификации)
	r.HandleFunc("/api/auth/login", h.HandleLogin).Methods("POST", "OPTIONS")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")

	// WebSocket (токен передается в query)
	r.HandleFunc("/ws", h.HandleWS).Methods("GET")

	// Защищенные маршруты (требуют аутентификации)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(h.authService))

	// Сессия торгового агента
	api.HandleFunc("/session/login", h.HandleBackendLogin).Methods("POST")
	api.HandleFunc("/session/logout", h.HandleBackendLogout).Methods("POST")
	api.HandleFunc("/session", h.HandleSessionStatus).Methods("GET")

	// Состояние и уведомления
	api.HandleFunc("/state", h.HandleGetState).Methods("GET")
	api.HandleFunc("/state/refresh", h.HandleForceRefresh).Methods("POST")
	api.HandleFunc("/toast", h.HandleGetToast).Methods("GET")
	api.HandleFunc("/toast/dismiss", h.HandleDismissToast).Methods("POST")

	// Позиции
	api.HandleFunc("/positions/open", h.HandleOpenPosition).Methods("POST")
	api.HandleFunc("/positions/close-all", h.HandleCloseAll).Methods("POST")
	api.HandleFunc("/positions/close-profitable", h.HandleCloseProfitable).Methods("POST")
	api.HandleFunc("/positions/close-losing", h.HandleCloseLosing).Methods("POST")
	api.HandleFunc("/positions/reanalyze-all", h.HandleReanalyzeAll).Methods("POST")
	api.HandleFunc("/positions/{symbol}/close", h.HandleClosePosition).Methods("POST")
	api.HandleFunc("/positions/{symbol}/refresh-pnl", h.HandleRefreshPnl).Methods("POST")
	api.HandleFunc("/positions/{symbol}/reanalyze", h.HandleReanalyzePosition).Methods("POST")

	// Сканер
	api.HandleFunc("/scanner/scan", h.HandleInteractiveScan).Methods("POST")
	api.HandleFunc("/scanner/proactive", h.HandleProactiveScan).Methods("POST")
	api.HandleFunc("/scanner/candidates/refresh-all", h.HandleRefreshAllCandidates).Methods("POST")
	api.HandleFunc("/scanner/candidates/{symbol}/refresh", h.HandleRefreshCandidate).Methods("POST")

	// Анализ и бэктест
	api.HandleFunc("/analysis", h.HandleNewAnalysis).Methods("POST")
	api.HandleFunc("/backtest", h.HandleRunBacktest).Methods("POST")

	// Настройки (черновик / подтвержденные)
	api.HandleFunc("/settings/edit", h.HandleOpenSettings).Methods("POST")
	api.HandleFunc("/settings/draft", h.HandleSetSetting).Methods("PUT")
	api.HandleFunc("/settings/cancel", h.HandleCancelSettings).Methods("POST")
	api.HandleFunc("/settings/save", h.HandleSaveSettings).Methods("POST")

	// Пресеты
	api.HandleFunc("/presets", h.HandleGetPresets).Methods("GET")
	api.HandleFunc("/presets", h.HandleSavePreset).Methods("POST")
	api.HandleFunc("/presets/{id:[0-9]+}", h.HandleDeletePreset).Methods("DELETE")

	// Графики
	api.HandleFunc("/charts/{symbol}/ohlcv", h.HandleOHLCV).Methods("GET")

	// Статические файлы (должны быть в конце)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(webDir)))

	return r
}

// HandleHealth возвращает статус здоровья сервиса
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondSuccess(w, "OK", map[string]string{
		"status": "healthy",
	})
}

// HandleWS проверяет токен из query и передает соединение менеджеру
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := h.authService.ValidateToken(token); err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	h.ws.HandleWS(w, r)
}
