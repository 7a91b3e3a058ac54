// Package meow implements the WhatsApp driver on top of the whatsmeow
// multi-device protocol library.
package meow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

const eventBuffer = 64

// Options configures the driver.
type Options struct {
	Store StoreConfig
	// SessionDir and CacheDir are removed by ClearSession.
	SessionDir string
	CacheDir   string
}

// Client is a wa.Client backed by whatsmeow.
type Client struct {
	opts Options
	log  slogLogger

	mu        sync.Mutex
	db        *sql.DB
	container *sqlstore.Container
	wm        *whatsmeow.Client
	handlerID uint32
	qrCancel  context.CancelFunc

	// stale is set when the connection ended; the next Initialize rebuilds
	// the whatsmeow client.
	stale atomic.Bool

	events chan wa.Event
	done   chan struct{}
	once   sync.Once
}

var _ wa.Client = (*Client)(nil)

// New creates a driver. No connection is made until Initialize.
func New(opts Options) *Client {
	return &Client{
		opts:   opts,
		log:    newLogger("client"),
		events: make(chan wa.Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) Events() <-chan wa.Event { return c.events }

// Initialize connects to WhatsApp. Without stored credentials a pairing code
// stream is opened first and each code is emitted as a qr event.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wm != nil && c.stale.Load() {
		c.teardownLocked()
	}
	if c.wm == nil {
		if err := c.setupLocked(ctx); err != nil {
			return err
		}
	}
	if c.wm.IsConnected() {
		return nil
	}

	if c.wm.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		qrCh, err := c.wm.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("open pairing channel: %w", err)
		}
		c.qrCancel = cancel
		go c.pumpQR(qrCh)
	}

	if err := c.wm.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *Client) setupLocked(ctx context.Context) error {
	if c.container == nil {
		container, db, err := openContainer(ctx, c.opts.Store, newLogger("store"))
		if err != nil {
			return err
		}
		c.container, c.db = container, db
	}
	device, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}

	wm := whatsmeow.NewClient(device, c.log)
	wm.EnableAutoReconnect = false
	c.handlerID = wm.AddEventHandler(c.onEvent)
	c.wm = wm
	c.stale.Store(false)
	return nil
}

// teardownLocked disconnects and forgets the whatsmeow client. The device
// store stays open.
func (c *Client) teardownLocked() {
	if c.qrCancel != nil {
		c.qrCancel()
		c.qrCancel = nil
	}
	if c.wm != nil {
		c.wm.RemoveEventHandler(c.handlerID)
		c.wm.Disconnect()
		c.wm = nil
	}
}

func (c *Client) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.emit(wa.Event{Type: wa.EventQR, QR: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
		case whatsmeow.QRChannelTimeout.Event:
			c.emit(wa.Event{Type: wa.EventDisconnected, Reason: "qr_timeout"})
		case whatsmeow.QRChannelEventError:
			c.emit(wa.Event{Type: wa.EventAuthFailure, Reason: fmt.Sprint(item.Error)})
		default:
			c.emit(wa.Event{Type: wa.EventAuthFailure, Reason: item.Event})
		}
	}
}

func (c *Client) onEvent(raw any) {
	ev, ok := translate(raw)
	if !ok {
		return
	}
	if ev.Type == wa.EventDisconnected {
		c.stale.Store(true)
	}
	c.emit(ev)
}

// emit delivers ev in order. It blocks while the consumer is behind and gives
// up once the client is closed.
func (c *Client) emit(ev wa.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Destroy disconnects and releases the device store.
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	if c.db != nil {
		err := c.db.Close()
		c.db, c.container = nil, nil
		if err != nil {
			return fmt.Errorf("close device store: %w", err)
		}
	}
	return nil
}

// Close stops event delivery for good. Call after the last Destroy.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ClearSession deletes stored devices and the on-disk session and cache trees.
func (c *Client) ClearSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	container, db := c.container, c.db
	if container == nil {
		var err error
		container, db, err = openContainer(ctx, c.opts.Store, newLogger("store"))
		if err != nil {
			errs = append(errs, err)
		} else {
			defer db.Close()
		}
	}
	if container != nil {
		devices, err := container.GetAllDevices(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list devices: %w", err))
		}
		for _, d := range devices {
			if err := d.Delete(ctx); err != nil {
				errs = append(errs, fmt.Errorf("delete device: %w", err))
			}
		}
	}

	for _, dir := range []string{c.opts.SessionDir, c.opts.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		} else {
			slog.Info("whatsmeow: removed session data", "path", dir)
		}
	}
	return errors.Join(errs...)
}

// connected returns the live whatsmeow client.
func (c *Client) connected() (*whatsmeow.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wm == nil || !c.wm.IsConnected() {
		return nil, wa.ErrNotInitialized
	}
	return c.wm, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID string, content wa.Content) error {
	wm, err := c.connected()
	if err != nil {
		return err
	}
	to, err := toJID(chatID)
	if err != nil {
		return err
	}

	msg, err := buildMessage(ctx, wm, content)
	if err != nil {
		return err
	}
	if _, err := wm.SendMessage(ctx, to, msg); err != nil {
		return err
	}
	if msg.AudioMessage != nil && content.Text != "" {
		_, err = wm.SendMessage(ctx, to, textMessage(content.Text))
	}
	return err
}

func (c *Client) GetContacts(ctx context.Context) ([]wa.Contact, error) {
	wm, err := c.connected()
	if err != nil {
		return nil, err
	}
	all, err := wm.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]wa.Contact, 0, len(all))
	for jid, info := range all {
		out = append(out, wa.Contact{
			ID:          fromJID(jid),
			Number:      jid.User,
			Name:        info.FullName,
			PushName:    info.PushName,
			ShortName:   info.FirstName,
			IsBusiness:  info.BusinessName != "",
			IsMyContact: info.Found,
			IsGroup:     jid.Server == types.GroupServer,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetChats lists joined groups. whatsmeow keeps no one-to-one chat list.
func (c *Client) GetChats(ctx context.Context) ([]wa.Chat, error) {
	wm, err := c.connected()
	if err != nil {
		return nil, err
	}
	groups, err := wm.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]wa.Chat, 0, len(groups))
	for _, g := range groups {
		out = append(out, wa.Chat{
			ID:           fromJID(g.JID),
			Name:         g.Name,
			Subject:      g.Name,
			IsGroup:      true,
			Participants: len(g.Participants),
		})
	}
	return out, nil
}

func (c *Client) GetProfilePicURL(ctx context.Context, id string) (string, error) {
	wm, err := c.connected()
	if err != nil {
		return "", err
	}
	jid, err := toJID(id)
	if err != nil {
		return "", err
	}
	pic, err := wm.GetProfilePictureInfo(ctx, jid, &whatsmeow.GetProfilePictureParams{})
	if err != nil {
		return "", err
	}
	if pic == nil {
		return "", nil
	}
	return pic.URL, nil
}

func (c *Client) Info() *wa.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wm == nil || c.wm.Store == nil || c.wm.Store.ID == nil {
		return nil
	}
	return &wa.Info{
		WID:      fromJID(*c.wm.Store.ID),
		PushName: c.wm.Store.PushName,
		Platform: c.wm.Store.Platform,
	}
}
