// Package watest provides an in-memory wa.Client for tests.
package watest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

// Sent records one SendMessage call.
type Sent struct {
	ChatID  string
	Content wa.Content
}

// Client is a scriptable fake driver. Events pushed with Emit are delivered in
// order on the Events channel.
type Client struct {
	mu sync.Mutex

	events chan wa.Event

	InitErr        error
	DestroyErr     error
	SendErr        map[string]error
	Contacts       []wa.Contact
	Chats          []wa.Chat
	ProfilePic     string
	ProfilePicErr  error
	ProfilePicWait chan struct{}
	AccountInfo    *wa.Info

	// OnInitialize runs inside Initialize while the call is in flight.
	OnInitialize func()

	initCalls    int
	destroyCalls int
	clearCalls   int
	sent         []Sent
}

// New returns a fake with a buffered event channel.
func New() *Client {
	return &Client{events: make(chan wa.Event, 64), SendErr: make(map[string]error)}
}

// Emit queues an event for the consumer.
func (c *Client) Emit(ev wa.Event) { c.events <- ev }

func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	c.initCalls++
	hook := c.OnInitialize
	err := c.InitErr
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyCalls++
	return c.DestroyErr
}

func (c *Client) ClearSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCalls++
	return nil
}

func (c *Client) SendMessage(ctx context.Context, chatID string, content wa.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.SendErr[chatID]; ok {
		return err
	}
	c.sent = append(c.sent, Sent{ChatID: chatID, Content: content})
	return nil
}

func (c *Client) GetContacts(ctx context.Context) ([]wa.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Contacts, nil
}

func (c *Client) GetChats(ctx context.Context) ([]wa.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Chats, nil
}

func (c *Client) GetProfilePicURL(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	wait, pic, err := c.ProfilePicWait, c.ProfilePic, c.ProfilePicErr
	c.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return "", fmt.Errorf("profile picture: %w", ctx.Err())
		}
	}
	return pic, err
}

func (c *Client) Info() *wa.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.AccountInfo
}

func (c *Client) Events() <-chan wa.Event { return c.events }

// SetInitErr changes the error returned by later Initialize calls.
func (c *Client) SetInitErr(err error) {
	c.mu.Lock()
	c.InitErr = err
	c.mu.Unlock()
}

// InitCalls returns how many times Initialize ran.
func (c *Client) InitCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initCalls
}

// DestroyCalls returns how many times Destroy ran.
func (c *Client) DestroyCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyCalls
}

// ClearCalls returns how many times ClearSession ran.
func (c *Client) ClearCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearCalls
}

// Sent returns a copy of successful sends in call order.
func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}
