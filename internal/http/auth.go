package http

import (
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/wagate/internal/store"
)

const (
	apiKeyHeader = "x-api-key"
	apiKeyQuery  = "api_key"
)

// extractAPIKey reads the key from the x-api-key header, falling back to the
// api_key query parameter.
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get(apiKeyQuery)
}

// requireKey rejects requests without an active API key, applies the per-key
// rate limit and records usage.
func (h *Handler) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "API key is required")
			return
		}
		if !h.keys.Validate(r.Context(), key) {
			slog.Warn("security.invalid_api_key", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		id := store.HashAPIKey(key)[:store.APIKeyIDLength]
		if h.limiter != nil && !h.limiter.Allow("key:"+id) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if err := h.keys.Touch(r.Context(), key); err != nil {
			slog.Warn("api key touch failed", "id", id, "error", err)
		}

		next(w, r.WithContext(store.WithAPIKeyID(r.Context(), id)))
	}
}
