// Package session drives a WhatsApp client through pairing, readiness and
// recovery, and publishes every transition to subscribers.
//
// Lifecycle events from the client are consumed by Run on a single goroutine,
// so state mutations never race each other. Reinitialization goes through one
// timer at a time; an initializing flag shared with Initialize keeps at most one
// connection attempt in flight.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/wagate/internal/bus"
	"github.com/nextlevelbuilder/wagate/internal/clock"
	"github.com/nextlevelbuilder/wagate/internal/tracing"
	"github.com/nextlevelbuilder/wagate/internal/wa"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

const (
	DefaultReinitBase  = 2 * time.Second
	DefaultReinitMax   = 30 * time.Second
	DefaultLogoutDelay = 2 * time.Second
)

// Reasons attached to reinitializing events.
const (
	ReasonDisconnected   = "disconnected"
	ReasonInitializeFail = "initialize_error"
	ReasonLogout         = "logout"
)

var (
	// ErrNotReady is returned for operations that need a ready client.
	ErrNotReady = errors.New("WhatsApp client is not ready")
	// ErrInitializing is returned when a connection attempt is already in flight.
	ErrInitializing = errors.New("client initialization already in progress")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("session controller is shut down")
)

// Publisher receives session events. *bus.Broadcaster satisfies it.
type Publisher interface {
	Broadcast(bus.Event)
}

// Options tunes the controller. Zero durations take the defaults.
type Options struct {
	ReinitBase  time.Duration
	ReinitMax   time.Duration
	LogoutDelay time.Duration

	// RenderQR renders pairing images; nil uses RenderPNG.
	RenderQR QRRenderer
	// QROut, when set, receives a terminal rendering of each pairing code.
	QROut io.Writer
}

// Controller owns the session state of one WhatsApp client.
type Controller struct {
	client wa.Client
	pub    Publisher
	clock  clock.Clock
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	ready        bool
	qr           string
	qrPNG        string
	initializing bool
	reinit       clock.Timer
	reinitGen    uint64
	closed       bool

	// outbox holds events queued under mu; flush publishes them in order.
	outbox  []bus.Event
	flushMu sync.Mutex
}

// New creates a controller. clk may be nil for the wall clock.
func New(client wa.Client, pub Publisher, clk clock.Clock, opts Options) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.ReinitBase <= 0 {
		opts.ReinitBase = DefaultReinitBase
	}
	if opts.ReinitMax <= 0 {
		opts.ReinitMax = DefaultReinitMax
	}
	if opts.LogoutDelay <= 0 {
		opts.LogoutDelay = DefaultLogoutDelay
	}
	if opts.RenderQR == nil {
		opts.RenderQR = RenderPNG
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client: client,
		pub:    pub,
		clock:  clk,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Client returns the underlying driver.
func (c *Controller) Client() wa.Client { return c.client }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		Ready:         c.ready,
		QR:            c.qr,
		QRPng:         c.qrPNG,
		ReinitPending: c.reinit != nil,
	}
}

// Status returns the snapshot in wire form; absent values encode as null.
func (c *Controller) Status() protocol.StatusPayload {
	s := c.Snapshot()
	p := protocol.StatusPayload{Ready: s.Ready}
	if s.QR != "" {
		qr := s.QR
		p.QR = &qr
	}
	if s.QRPng != "" {
		png := s.QRPng
		p.QRPng = &png
	}
	return p
}

// IsReady reports whether the client can send messages.
func (c *Controller) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Initialize starts a connection attempt. It fails with ErrInitializing when an
// attempt is already running. A failed attempt schedules a retry at the base delay.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.initializing {
		c.mu.Unlock()
		return ErrInitializing
	}
	c.initializing = true
	c.state = StateInitializing
	c.mu.Unlock()

	err := c.runInitialize(ctx)

	c.mu.Lock()
	c.initializing = false
	if err != nil {
		c.scheduleLocked(c.opts.ReinitBase, ReasonInitializeFail)
	}
	c.mu.Unlock()
	c.flush()
	return err
}

// Run consumes client events until ctx is cancelled or the stream closes.
func (c *Controller) Run(ctx context.Context) {
	events := c.client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				slog.Info("session: client event stream closed")
				return
			}
			c.handle(ev)
		}
	}
}

// Logout ends the linked session: the client is destroyed, local state reset,
// persisted credentials removed and a fresh initialize scheduled so a new
// pairing code appears.
func (c *Controller) Logout(ctx context.Context) error {
	ctx, span := tracing.Start(ctx, "session.logout")
	var err error
	defer func() { tracing.End(span, err) }()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		err = ErrClosed
		return err
	}
	wasPending := c.reinit != nil
	c.cancelReinitLocked()
	c.mu.Unlock()

	if err = c.client.Destroy(ctx); err != nil {
		// The session is still linked; keep the reconnect that was queued.
		if wasPending {
			c.mu.Lock()
			c.scheduleLocked(c.opts.ReinitBase, ReasonDisconnected)
			c.mu.Unlock()
			c.flush()
		}
		return err
	}

	c.mu.Lock()
	c.ready = false
	c.qr = ""
	c.qrPNG = ""
	c.state = StateAwaitingReinit
	c.mu.Unlock()
	slog.Info("session: logged out")

	if clearErr := c.client.ClearSession(ctx); clearErr != nil {
		slog.Error("session: failed to clear session data", "error", clearErr)
	}

	c.mu.Lock()
	c.scheduleLocked(c.opts.LogoutDelay, ReasonLogout)
	c.mu.Unlock()
	c.flush()
	return nil
}

// Shutdown cancels pending work and tears the client down.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelReinitLocked()
	c.mu.Unlock()
	c.cancel()
	return c.client.Destroy(ctx)
}

// --- Event handling ---

func (c *Controller) handle(ev wa.Event) {
	switch ev.Type {
	case wa.EventQR:
		c.onQR(ev.QR)
	case wa.EventAuthenticated:
		c.mu.Lock()
		c.state = StateAuthenticated
		c.emitLocked(protocol.EventAuthenticated, protocol.MessagePayload{Message: "WhatsApp client authenticated"})
		c.mu.Unlock()
		slog.Info("session: authenticated")
	case wa.EventReady:
		c.mu.Lock()
		c.ready = true
		c.qr = ""
		c.qrPNG = ""
		c.state = StateReady
		c.cancelReinitLocked()
		c.emitLocked(protocol.EventReady, protocol.MessagePayload{Message: "WhatsApp client is ready!"})
		c.mu.Unlock()
		slog.Info("session: ready")
	case wa.EventAuthFailure:
		slog.Error("session: authentication failed", "reason", ev.Reason)
		c.mu.Lock()
		c.emitLocked(protocol.EventAuthFailure, protocol.MessagePayload{Message: "Authentication failed: " + ev.Reason})
		c.mu.Unlock()
	case wa.EventDisconnected:
		c.onDisconnected(ev.Reason)
	case wa.EventMessage:
		if ev.Message == nil {
			return
		}
		m := ev.Message
		c.mu.Lock()
		c.emitLocked(protocol.EventMessage, protocol.InboundMessagePayload{
			ID:        m.ID,
			From:      m.From,
			Chat:      m.Chat,
			Body:      m.Body,
			PushName:  m.PushName,
			IsGroup:   m.IsGroup,
			Timestamp: m.Timestamp.Unix(),
		})
		c.mu.Unlock()
	default:
		slog.Debug("session: ignoring client event", "type", ev.Type)
	}
	c.flush()
}

func (c *Controller) onQR(code string) {
	slog.Info("session: pairing code received, scan it with the WhatsApp app")
	if c.opts.QROut != nil {
		PrintTerminal(c.opts.QROut, code)
	}

	png, err := c.opts.RenderQR(code)
	if err != nil {
		slog.Error("session: failed to render pairing image", "error", err)
		png = ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	c.qr = code
	c.qrPNG = png
	c.state = StateAwaitingPairing
	c.emitLocked(protocol.EventQR, protocol.QRPayload{Text: code, PNG: png})
}

func (c *Controller) onDisconnected(reason string) {
	slog.Warn("session: client disconnected", "reason", reason)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	c.qr = ""
	c.qrPNG = ""
	c.state = StateAwaitingReinit
	c.emitLocked(protocol.EventSessionTimeout, protocol.MessagePayload{
		Message: "Session timed out. Please scan QR code again.",
	})
	if !c.scheduleLocked(c.opts.ReinitBase, ReasonDisconnected) {
		slog.Debug("session: reinitialization already pending")
	}
}

// --- Reinitialization ---

// scheduleLocked arms the reinit timer unless one is already pending.
// Must be called with c.mu held.
func (c *Controller) scheduleLocked(delay time.Duration, reason string) bool {
	if c.reinit != nil || c.closed {
		return false
	}
	if delay > c.opts.ReinitMax {
		delay = c.opts.ReinitMax
	}
	slog.Info("session: scheduling client reinitialization", "delay", delay, "reason", reason)
	c.emitLocked(protocol.EventReinitializing, protocol.ReinitPayload{
		Message: "Reconnecting to WhatsApp...",
		Reason:  reason,
	})
	c.state = StateAwaitingReinit

	c.reinitGen++
	gen := c.reinitGen
	c.reinit = c.clock.AfterFunc(delay, func() { c.fire(gen, delay) })
	return true
}

// fire runs when the reinit timer armed as generation gen elapses.
func (c *Controller) fire(gen uint64, delay time.Duration) {
	c.mu.Lock()
	if gen != c.reinitGen || c.reinit == nil {
		// Cancelled after the timer had already fired.
		c.mu.Unlock()
		return
	}
	c.reinit = nil
	if c.closed || c.initializing {
		c.mu.Unlock()
		return
	}
	c.initializing = true
	c.state = StateInitializing
	c.mu.Unlock()

	err := c.runInitialize(c.ctx)

	c.mu.Lock()
	c.initializing = false
	if err != nil {
		c.scheduleLocked(nextDelay(delay, c.opts.ReinitMax), ReasonInitializeFail)
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) runInitialize(ctx context.Context) error {
	ctx, span := tracing.Start(ctx, "session.initialize")
	err := c.client.Initialize(ctx)
	if err != nil {
		slog.Error("session: initialize failed", "error", err)
	}
	span.SetAttributes(attribute.Bool("session.initialize.ok", err == nil))
	tracing.End(span, err)
	return err
}

// cancelReinitLocked stops a pending reinit timer. Must be called with c.mu held.
func (c *Controller) cancelReinitLocked() {
	if c.reinit != nil {
		c.reinit.Stop()
		c.reinit = nil
		c.reinitGen++
	}
}

// nextDelay doubles d, capped at max.
func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

// --- Publishing ---

// emitLocked queues an event. Must be called with c.mu held.
func (c *Controller) emitLocked(name string, payload any) {
	c.outbox = append(c.outbox, bus.Event{Name: name, Payload: payload})
}

// flush publishes queued events outside c.mu, preserving queue order.
func (c *Controller) flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	pending := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, ev := range pending {
		c.pub.Broadcast(ev)
	}
}
