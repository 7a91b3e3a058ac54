// Package gateway serves the real-time WebSocket channel. Each connection gets
// a status snapshot on connect and then every public session event.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/wagate/internal/bus"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

// StatusSource supplies the session snapshot sent to new subscribers.
type StatusSource interface {
	Status() protocol.StatusPayload
}

// KeyValidator checks API keys when the channel requires one.
type KeyValidator interface {
	Validate(ctx context.Context, key string) bool
}

// Options configures a Server.
type Options struct {
	// RequireKey makes the upgrade demand a valid api_key.
	RequireKey bool
	// AllowedOrigin returns the configured CORS origin; "*" or "" allows any.
	AllowedOrigin func() string
}

// Server manages WebSocket subscribers.
type Server struct {
	events *bus.Broadcaster
	status StatusSource
	keys   KeyValidator
	opts   Options

	upgrader websocket.Upgrader
	router   *MethodRouter
	seq      atomic.Int64

	clients map[string]*Client
	mu      sync.RWMutex
}

// NewServer creates a WebSocket server publishing events from events.
func NewServer(events *bus.Broadcaster, status StatusSource, keys KeyValidator, opts Options) *Server {
	s := &Server{
		events:  events,
		status:  status,
		keys:    keys,
		opts:    opts,
		clients: make(map[string]*Client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = NewMethodRouter(s)
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.opts.AllowedOrigin == nil {
		return true
	}
	allowed := s.opts.AllowedOrigin()
	if allowed == "" || allowed == "*" || allowed == origin {
		return true
	}
	slog.Warn("security.ws_origin_rejected", "origin", origin)
	return false
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.opts.RequireKey {
		key := r.URL.Query().Get("api_key")
		if key == "" {
			key = r.Header.Get("x-api-key")
		}
		if key == "" || s.keys == nil || !s.keys.Validate(r.Context(), key) {
			slog.Warn("security.ws_unauthorized", "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid API key"})
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s)
	s.register(client)
	defer s.unregister(client)

	// Events published while the snapshot is taken wait on gate, so the
	// status frame is always first and no transition after it is missed.
	var gate sync.Mutex
	gate.Lock()
	s.events.Subscribe(client.id, func(ev bus.Event) {
		if protocol.IsInternalEvent(ev.Name) {
			return
		}
		gate.Lock()
		defer gate.Unlock()
		frame := protocol.NewEvent(ev.Name, ev.Payload)
		frame.Seq = s.seq.Add(1)
		client.SendEvent(frame)
	})
	client.SendEvent(protocol.NewEvent(protocol.EventStatus, s.status.Status()))
	gate.Unlock()

	slog.Info("websocket client connected", "client", client.id, "remote", r.RemoteAddr)
	client.Run(r.Context())
	slog.Info("websocket client disconnected", "client", client.id)
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) unregister(c *Client) {
	s.events.Unsubscribe(c.id)
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.Close()
}

// ClientCount returns the number of connected subscribers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// CloseAll disconnects every subscriber.
func (s *Server) CloseAll() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}
