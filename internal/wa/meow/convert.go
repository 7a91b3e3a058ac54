package meow

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

// toJID converts a gateway chat ID ("123@c.us", "abc@g.us") to a whatsmeow JID.
func toJID(chatID string) (types.JID, error) {
	user, domain := wa.SplitChatID(chatID)
	switch domain {
	case "", "c.us", types.DefaultUserServer:
		digits := wa.DigitsOnly(user)
		if digits == "" {
			return types.JID{}, fmt.Errorf("invalid chat id %q", chatID)
		}
		return types.NewJID(digits, types.DefaultUserServer), nil
	case types.GroupServer:
		if user == "" {
			return types.JID{}, fmt.Errorf("invalid group id %q", chatID)
		}
		return types.NewJID(user, types.GroupServer), nil
	default:
		return types.ParseJID(chatID)
	}
}

// fromJID renders a JID in the gateway's chat ID form.
func fromJID(j types.JID) string {
	j = j.ToNonAD()
	switch j.Server {
	case types.DefaultUserServer:
		return j.User + "@c.us"
	case types.GroupServer:
		return j.User + "@g.us"
	default:
		return j.String()
	}
}

// messageText extracts the human-readable body of a message.
func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	switch {
	case m.GetConversation() != "":
		return m.GetConversation()
	case m.GetExtendedTextMessage() != nil:
		return m.GetExtendedTextMessage().GetText()
	case m.GetImageMessage() != nil:
		return m.GetImageMessage().GetCaption()
	case m.GetVideoMessage() != nil:
		return m.GetVideoMessage().GetCaption()
	case m.GetDocumentMessage() != nil:
		return m.GetDocumentMessage().GetCaption()
	}
	return ""
}

// inbound converts a received message. Own messages and status broadcasts
// yield nil.
func inbound(evt *events.Message) *wa.InboundMessage {
	if evt.Info.IsFromMe || evt.Info.Chat.Server == types.BroadcastServer {
		return nil
	}
	return &wa.InboundMessage{
		ID:        evt.Info.ID,
		From:      fromJID(evt.Info.Sender),
		Chat:      fromJID(evt.Info.Chat),
		Body:      messageText(evt.Message),
		PushName:  evt.Info.PushName,
		IsGroup:   evt.Info.IsGroup,
		Timestamp: evt.Info.Timestamp,
	}
}

// translate maps a whatsmeow event to a gateway event. ok is false for events
// the gateway does not surface.
func translate(raw any) (ev wa.Event, ok bool) {
	switch e := raw.(type) {
	case *events.PairSuccess:
		return wa.Event{Type: wa.EventAuthenticated}, true
	case *events.Connected:
		return wa.Event{Type: wa.EventReady}, true
	case *events.LoggedOut:
		return wa.Event{Type: wa.EventDisconnected, Reason: "logged_out: " + e.Reason.String()}, true
	case *events.StreamReplaced:
		return wa.Event{Type: wa.EventDisconnected, Reason: "stream_replaced"}, true
	case *events.Disconnected:
		return wa.Event{Type: wa.EventDisconnected, Reason: "connection_lost"}, true
	case *events.ConnectFailure:
		return wa.Event{Type: wa.EventAuthFailure, Reason: connectFailureReason(e)}, true
	case *events.TemporaryBan:
		return wa.Event{Type: wa.EventAuthFailure, Reason: e.String()}, true
	case *events.Message:
		msg := inbound(e)
		if msg == nil {
			return wa.Event{}, false
		}
		return wa.Event{Type: wa.EventMessage, Message: msg}, true
	}
	return wa.Event{}, false
}

func connectFailureReason(e *events.ConnectFailure) string {
	parts := []string{e.Reason.String()}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}
