package api

import (
	"encoding/json"
	"net/http"
)

type SetSettingRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// HandleOpenSettings открывает черновик настроек и приостанавливает поллер
func (h *Handler) HandleOpenSettings(w http.ResponseWriter, r *http.Request) {
	draft, err := h.actions.OpenSettings()
	if err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}

	h.respondSuccess(w, "Settings editor opened", draft)
}

// HandleSetSetting меняет одно значение в черновике
func (h *Handler) HandleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req SetSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Key == "" {
		h.respondError(w, http.StatusBadRequest, "Key is required")
		return
	}

	if err := h.actions.SetSetting(req.Key, req.Value); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondSuccess(w, "Draft updated", nil)
}

// HandleCancelSettings отбрасывает черновик и возобновляет поллер
func (h *Handler) HandleCancelSettings(w http.ResponseWriter, r *http.Request) {
	h.actions.CancelSettings()
	h.respondSuccess(w, "Settings editor closed", nil)
}

// HandleSaveSettings сохраняет черновик в агента целиком
func (h *Handler) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.SaveSettings(r.Context()); err != nil {
		h.respondActionError(w, err)
		return
	}

	h.respondSuccess(w, "Settings saved", h.store.Settings())
}
