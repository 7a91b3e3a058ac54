// Package http serves the JSON API, the WebSocket endpoint and the dashboard.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nextlevelbuilder/wagate/internal/config"
	"github.com/nextlevelbuilder/wagate/internal/gateway"
	"github.com/nextlevelbuilder/wagate/internal/keys"
	"github.com/nextlevelbuilder/wagate/internal/tracing"
	"github.com/nextlevelbuilder/wagate/internal/wa"
	"github.com/nextlevelbuilder/wagate/internal/webhook"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

const (
	// DefaultProfilePicTimeout bounds the lookup in client-info.
	DefaultProfilePicTimeout = 5 * time.Second

	profilePicCacheSize = 256
	profilePicCacheTTL  = 10 * time.Minute
)

// Session is the subset of the session controller the API needs.
type Session interface {
	Status() protocol.StatusPayload
	IsReady() bool
	Logout(ctx context.Context) error
	Client() wa.Client
}

// Deps wires the handler to the rest of the gateway.
type Deps struct {
	Config            *config.Config
	Keys              *keys.Service
	Session           Session
	Webhooks          *webhook.Registry
	Limiter           *gateway.RateLimiter // nil disables rate limiting
	WebSocket         http.HandlerFunc     // mounted at /ws when non-nil
	ProfilePicTimeout time.Duration
}

// Handler serves every HTTP route of the gateway.
type Handler struct {
	cfg        *config.Config
	keys       *keys.Service
	session    Session
	webhooks   *webhook.Registry
	limiter    *gateway.RateLimiter
	ws         http.HandlerFunc
	picTimeout time.Duration
	picCache   *expirable.LRU[string, string]
}

// NewHandler builds a handler from deps.
func NewHandler(d Deps) *Handler {
	timeout := d.ProfilePicTimeout
	if timeout <= 0 {
		timeout = DefaultProfilePicTimeout
	}
	return &Handler{
		cfg:        d.Config,
		keys:       d.Keys,
		session:    d.Session,
		webhooks:   d.Webhooks,
		limiter:    d.Limiter,
		ws:         d.WebSocket,
		picTimeout: timeout,
		picCache:   expirable.NewLRU[string, string](profilePicCacheSize, nil, profilePicCacheTTL),
	}
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.handleConfig)
	mux.HandleFunc("POST /api/generate-key", h.handleGenerateKey)
	mux.HandleFunc("POST /api/revoke-key", h.handleRevokeKey)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("GET /api/status", h.requireKey(h.handleStatus))
	mux.HandleFunc("POST /api/send-message", h.requireKey(h.handleSendMessage))
	mux.HandleFunc("POST /api/send-broadcast", h.requireKey(h.handleSendBroadcast))
	mux.HandleFunc("POST /api/send-group-message", h.requireKey(h.handleSendGroupMessage))
	mux.HandleFunc("GET /api/contacts", h.requireKey(h.handleContacts))
	mux.HandleFunc("GET /api/groups", h.requireKey(h.handleGroups))
	mux.HandleFunc("GET /api/client-info", h.requireKey(h.handleClientInfo))
	mux.HandleFunc("GET /api/test-profile-pic", h.requireKey(h.handleTestProfilePic))
	mux.HandleFunc("GET /api/webhook", h.requireKey(h.handleGetWebhook))
	mux.HandleFunc("POST /api/webhook", h.requireKey(h.handleSetWebhook))
	mux.HandleFunc("DELETE /api/webhook", h.requireKey(h.handleDeleteWebhook))
	mux.HandleFunc("POST /api/logout", h.requireKey(h.handleLogout))

	if h.ws != nil {
		mux.HandleFunc("GET /ws", h.ws)
	}
	mux.Handle("GET /", h.staticHandler())
}

// Handler returns the full middleware chain around a fresh mux.
func (h *Handler) Handler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	var next http.Handler = mux
	next = corsMiddleware(h.cfg.CORSOrigin, next)
	next = tracing.Middleware(next)
	next = loggingMiddleware(next)
	next = recoveryMiddleware(next)
	next = requestIDMiddleware(next)
	return next
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"baseUrl":    h.cfg.ResolvedBaseURL(),
		"corsOrigin": h.cfg.CORSOrigin(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "ready": h.session.IsReady()})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

// readyClient returns the client when the session is ready, otherwise it
// writes the not-ready response and returns nil.
func (h *Handler) readyClient(w http.ResponseWriter) wa.Client {
	if !h.session.IsReady() {
		writeError(w, http.StatusBadRequest, "WhatsApp client is not ready")
		return nil
	}
	return h.session.Client()
}
