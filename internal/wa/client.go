// Package wa defines the contract between the gateway and a WhatsApp client driver.
//
// A driver owns the protocol connection. It exposes a small set of blocking
// operations and reports lifecycle changes on a single ordered event channel,
// which the session controller consumes from one goroutine.
package wa

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnsupported is returned by drivers for operations they cannot perform.
	ErrUnsupported = errors.New("operation not supported by this driver")
	// ErrNotInitialized is returned when an operation needs a live connection.
	ErrNotInitialized = errors.New("client is not initialized")
)

// EventType identifies a lifecycle or message event emitted by a driver.
type EventType string

const (
	EventQR            EventType = "qr"
	EventAuthenticated EventType = "authenticated"
	EventReady         EventType = "ready"
	EventAuthFailure   EventType = "auth_failure"
	EventDisconnected  EventType = "disconnected"
	EventMessage       EventType = "message"
)

// Event is one item on a driver's event stream. Only the field matching Type is set.
type Event struct {
	Type EventType
	// QR carries the pairing code text for EventQR.
	QR string
	// Reason carries a driver-specific cause for EventAuthFailure and EventDisconnected.
	Reason string
	// Message is set for EventMessage.
	Message *InboundMessage
}

// InboundMessage is a received chat message.
type InboundMessage struct {
	ID        string
	From      string
	Chat      string
	Body      string
	PushName  string
	IsGroup   bool
	Timestamp time.Time
}

// Media is an attachment sent alongside a caption.
type Media struct {
	MimeType string
	Data     []byte
	Filename string
}

// Content is an outgoing message. When Media is set, Text becomes its caption.
type Content struct {
	Text  string
	Media *Media
}

// Contact is one entry of the account's address book.
type Contact struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Name        string `json:"name,omitempty"`
	PushName    string `json:"pushname,omitempty"`
	ShortName   string `json:"shortName,omitempty"`
	IsBusiness  bool   `json:"isBusiness"`
	IsMyContact bool   `json:"isMyContact"`
	IsGroup     bool   `json:"isGroup"`
}

// Chat is one conversation known to the account.
type Chat struct {
	ID           string
	Name         string
	Subject      string
	IsGroup      bool
	Participants int
	UnreadCount  int
}

// Info describes the linked account. WID keeps whatever shape the driver
// produced; use FormatWID and WIDString to read it.
type Info struct {
	WID      any
	PushName string
	Platform string
}

// Client is a WhatsApp driver.
type Client interface {
	// Initialize starts a connection attempt. It returns once the driver is
	// either waiting for pairing or connected; later progress arrives as events.
	Initialize(ctx context.Context) error
	// Destroy closes the connection and releases driver resources.
	Destroy(ctx context.Context) error
	// ClearSession deletes persisted credentials so the next Initialize pairs anew.
	ClearSession(ctx context.Context) error

	SendMessage(ctx context.Context, chatID string, content Content) error
	GetContacts(ctx context.Context) ([]Contact, error)
	GetChats(ctx context.Context) ([]Chat, error)
	GetProfilePicURL(ctx context.Context, id string) (string, error)

	// Info returns the linked account, or nil before the client is ready.
	Info() *Info
	// Events returns the driver's ordered event stream.
	Events() <-chan Event
}

const (
	contactSuffix = "@c.us"
	groupSuffix   = "@g.us"
)

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContactChatID turns a phone number in any formatting into a contact chat ID.
func ContactChatID(number string) string {
	return DigitsOnly(number) + contactSuffix
}

// GroupChatID appends the group suffix unless the identifier already carries it.
func GroupChatID(groupID string) string {
	if strings.Contains(groupID, groupSuffix) {
		return groupID
	}
	return groupID + groupSuffix
}

// IsGroupChatID reports whether id addresses a group.
func IsGroupChatID(id string) bool {
	return strings.HasSuffix(id, groupSuffix)
}

// SplitChatID returns the user part and the domain of a chat ID.
func SplitChatID(id string) (user, domain string) {
	if i := strings.LastIndexByte(id, '@'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}
