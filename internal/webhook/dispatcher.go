package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/wagate/internal/bus"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

const (
	subscriberID = "webhook-dispatcher"
	queueSize    = 100
	userAgent    = "wagate-webhook/1"

	HeaderEvent    = "X-Wagate-Event"
	HeaderDelivery = "X-Wagate-Delivery"
)

// Delivery is the JSON body POSTed to the webhook URL.
type Delivery struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type job struct {
	url  string
	body Delivery
}

// Dispatcher posts inbound message events to the registered webhook.
// Duplicate message IDs are dropped; failures are retried and then logged.
type Dispatcher struct {
	registry *Registry
	dedupe   *bus.DedupeCache
	client   *http.Client

	mu    sync.RWMutex
	retry RetryConfig

	queue chan job
}

// NewDispatcher creates a dispatcher. timeout bounds each HTTP attempt.
func NewDispatcher(registry *Registry, dedupe *bus.DedupeCache, retry RetryConfig, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		dedupe:   dedupe,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
		queue:    make(chan job, queueSize),
	}
}

// SetRetry replaces the retry policy for later deliveries.
func (d *Dispatcher) SetRetry(cfg RetryConfig) {
	d.mu.Lock()
	d.retry = cfg
	d.mu.Unlock()
}

// Attach subscribes the dispatcher to b. It returns a detach function.
func (d *Dispatcher) Attach(b *bus.Broadcaster) func() {
	b.Subscribe(subscriberID, d.onEvent)
	return func() { b.Unsubscribe(subscriberID) }
}

func (d *Dispatcher) onEvent(ev bus.Event) {
	if ev.Name != protocol.EventMessage {
		return
	}
	url, ok := d.registry.URL()
	if !ok {
		return
	}
	if msg, ok := ev.Payload.(protocol.InboundMessagePayload); ok && msg.ID != "" {
		if d.dedupe != nil && d.dedupe.IsDuplicate(msg.ID) {
			slog.Debug("webhook: duplicate message skipped", "id", msg.ID)
			return
		}
	}

	select {
	case d.queue <- job{url: url, body: Delivery{Event: ev.Name, Data: ev.Payload}}:
	default:
		slog.Warn("webhook: queue full, dropping delivery", "event", ev.Name)
	}
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-d.queue:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	payload, err := json.Marshal(j.body)
	if err != nil {
		slog.Error("webhook: marshal failed", "error", err)
		return
	}
	deliveryID := uuid.NewString()

	d.mu.RLock()
	cfg := d.retry
	d.mu.RUnlock()

	attempts, err := executeWithRetry(ctx, cfg, func(attempt int) error {
		return d.post(ctx, j.url, j.body.Event, deliveryID, payload)
	})
	if err != nil {
		slog.Warn("webhook: delivery failed", "delivery", deliveryID, "attempts", attempts, "error", err)
		return
	}
	slog.Debug("webhook: delivered", "delivery", deliveryID, "attempts", attempts)
}

func (d *Dispatcher) post(ctx context.Context, url, event, deliveryID string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderDelivery, deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
