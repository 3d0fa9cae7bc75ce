package api

import (
	"net/http"
)

// HandleGetState возвращает полный согласованный снимок состояния
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.store.View())
}

// HandleForceRefresh запрашивает внеочередную сверку с агентом
func (h *Handler) HandleForceRefresh(w http.ResponseWriter, r *http.Request) {
	h.dashboardPoller.ForceRefresh()
	h.scannerPoller.ForceRefresh()
	h.respondSuccess(w, "Refresh scheduled", nil)
}

// HandleGetToast возвращает текущее активное уведомление
func (h *Handler) HandleGetToast(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"toast": h.toasts.Current(),
	})
}

// HandleDismissToast скрывает активное уведомление
func (h *Handler) HandleDismissToast(w http.ResponseWriter, r *http.Request) {
	h.toasts.Dismiss()
	h.respondSuccess(w, "Dismissed", nil)
}
