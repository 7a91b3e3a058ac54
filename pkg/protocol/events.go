package protocol

// WebSocket event names pushed from server to client.
const (
	EventStatus         = "status"
	EventQR             = "qr"
	EventReady          = "ready"
	EventAuthenticated  = "authenticated"
	EventAuthFailure    = "auth_failure"
	EventSessionTimeout = "session_timeout"
	EventReinitializing = "reinitializing"

	// Inbound message events (internal, not forwarded to WS clients).
	EventMessage = "message"
)

// Request methods accepted on the WebSocket.
const (
	MethodStatus = "status"
	MethodPing   = "ping"
)

// internalEvents are routed through the bus but never pushed to WS clients.
var internalEvents = map[string]bool{
	EventMessage: true,
}

// IsInternalEvent reports whether an event stays inside the process.
func IsInternalEvent(name string) bool {
	return internalEvents[name]
}
