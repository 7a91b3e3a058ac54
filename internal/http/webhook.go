package http

import (
	"log/slog"
	"net/http"
)

type setWebhookRequest struct {
	URL string `json:"url"`
}

func (h *Handler) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	var current *string
	if u, ok := h.webhooks.URL(); ok {
		current = &u
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhookUrl": current})
}

func (h *Handler) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	var req setWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.webhooks.Set(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("webhook url set", "url", req.URL)
	writeSuccess(w, "Webhook URL set successfully")
}

func (h *Handler) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhooks.Clear()
	slog.Info("webhook url removed")
	writeSuccess(w, "Webhook URL removed")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		slog.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to logout: "+err.Error())
		return
	}
	writeSuccess(w, "Logged out successfully. QR code will appear shortly.")
}
