package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/bus"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

type capture struct {
	mu       sync.Mutex
	bodies   []Delivery
	headers  []http.Header
	failures atomic.Int32 // respond 500 this many times first
}

func (c *capture) handler(w http.ResponseWriter, r *http.Request) {
	if c.failures.Load() > 0 {
		c.failures.Add(-1)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	var d Delivery
	json.NewDecoder(r.Body).Decode(&d)
	c.mu.Lock()
	c.bodies = append(c.bodies, d)
	c.headers = append(c.headers, r.Header.Clone())
	c.mu.Unlock()
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startDispatcher(t *testing.T, reg *Registry) *bus.Broadcaster {
	t.Helper()
	b := bus.New()
	d := NewDispatcher(reg, bus.NewDedupeCache(time.Minute, 100, nil), fastRetry, time.Second)
	detach := d.Attach(b)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		detach()
	})
	return b
}

func TestDispatcherDeliversMessages(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	reg := NewRegistry("")
	if err := reg.Set(srv.URL + "/hook"); err != nil {
		t.Fatal(err)
	}
	b := startDispatcher(t, reg)

	msg := protocol.InboundMessagePayload{ID: "M1", From: "15550001111@c.us", Body: "hello"}
	b.Broadcast(bus.Event{Name: protocol.EventReady})
	b.Broadcast(bus.Event{Name: protocol.EventMessage, Payload: msg})
	b.Broadcast(bus.Event{Name: protocol.EventMessage, Payload: msg}) // duplicate

	waitFor(t, func() bool { return c.count() == 1 })
	time.Sleep(50 * time.Millisecond)
	if c.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", c.count())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bodies[0].Event != "message" {
		t.Errorf("event = %q", c.bodies[0].Event)
	}
	data := c.bodies[0].Data.(map[string]any)
	if data["id"] != "M1" || data["body"] != "hello" {
		t.Errorf("data = %v", data)
	}
	h := c.headers[0]
	if h.Get(HeaderEvent) != "message" || h.Get(HeaderDelivery) == "" {
		t.Errorf("headers = %v", h)
	}
}

func TestDispatcherRetriesFailures(t *testing.T) {
	c := &capture{}
	c.failures.Store(2)
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	b := startDispatcher(t, NewRegistry(srv.URL))
	b.Broadcast(bus.Event{Name: protocol.EventMessage, Payload: protocol.InboundMessagePayload{ID: "M2"}})

	waitFor(t, func() bool { return c.count() == 1 })
}

func TestDispatcherNoURL(t *testing.T) {
	reg := NewRegistry("")
	d := NewDispatcher(reg, nil, fastRetry, time.Second)
	d.onEvent(bus.Event{Name: protocol.EventMessage, Payload: protocol.InboundMessagePayload{ID: "x"}})
	if len(d.queue) != 0 {
		t.Error("queued a delivery without a registered url")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("")
	if _, ok := r.URL(); ok {
		t.Fatal("new registry should be empty")
	}
	for _, bad := range []string{"ftp://x", "not a url", "http://"} {
		if err := r.Set(bad); err == nil {
			t.Errorf("Set(%q) accepted", bad)
		}
	}
	if err := r.Set("https://example.com/hook"); err != nil {
		t.Fatal(err)
	}
	if u, ok := r.URL(); !ok || u != "https://example.com/hook" {
		t.Errorf("URL = %q, %v", u, ok)
	}
	r.Clear()
	if _, ok := r.URL(); ok {
		t.Error("Clear did not clear")
	}
}
