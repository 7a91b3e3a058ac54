package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/wagate/internal/keys"
)

type generateKeyRequest struct {
	MasterKey string `json:"masterKey"`
}

type revokeKeyRequest struct {
	MasterKey string `json:"masterKey"`
	Key       string `json:"key"`
}

// writeMasterError maps master-key failures to 400/401.
func writeMasterError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, keys.ErrMasterKeyRequired):
		writeError(w, http.StatusBadRequest, "Master key is required")
	case errors.Is(err, keys.ErrInvalidMasterKey):
		writeError(w, http.StatusUnauthorized, "Invalid master key")
	default:
		return false
	}
	return true
}

func (h *Handler) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	var req generateKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	key, err := h.keys.Generate(r.Context(), req.MasterKey)
	if err != nil {
		if writeMasterError(w, err) {
			return
		}
		slog.Error("generate api key failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate API key: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"apiKey":  key,
		"message": "API key generated successfully",
	})
}

func (h *Handler) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	var req revokeKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.keys.CheckMaster(req.MasterKey); err != nil {
		writeMasterError(w, err)
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "Key is required")
		return
	}

	info, err := h.keys.Revoke(r.Context(), req.Key)
	if errors.Is(err, keys.ErrNotFound) {
		writeError(w, http.StatusNotFound, "API key not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"key":     info,
		"message": "API key revoked",
	})
}
