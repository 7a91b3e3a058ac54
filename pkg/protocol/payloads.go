package protocol

// QRPayload carries a pairing code. PNG is a data URL and is omitted
// when image rendering failed.
type QRPayload struct {
	Text string `json:"text"`
	PNG  string `json:"png,omitempty"`
}

// MessagePayload is the body of ready/authenticated/auth_failure/session_timeout.
type MessagePayload struct {
	Message string `json:"message"`
}

// ReinitPayload is the body of the reinitializing event.
type ReinitPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// StatusPayload is the session snapshot. Absent pairing data encodes as null.
type StatusPayload struct {
	Ready bool    `json:"ready"`
	QR    *string `json:"qr"`
	QRPng *string `json:"qrPng"`
}

// PingPayload answers the ping method.
type PingPayload struct {
	Protocol    int   `json:"protocol"`
	TS          int64 `json:"ts"`
	Clients     int   `json:"clients"`     // connected WebSocket clients
	Subscribers int   `json:"subscribers"` // event bus subscribers, webhook dispatcher included
}

// InboundMessagePayload describes a received message for webhook delivery.
type InboundMessagePayload struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Chat      string `json:"chat"`
	Body      string `json:"body"`
	PushName  string `json:"pushName,omitempty"`
	IsGroup   bool   `json:"isGroup"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}
