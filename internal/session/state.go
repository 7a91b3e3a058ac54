package session

// State is the controller's position in the client lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAwaitingPairing
	StateAuthenticated
	StateReady
	StateAwaitingReinit
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateAwaitingReinit:
		return "awaiting_reinit"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	State State
	Ready bool
	// QR is the current pairing code, empty when none is pending.
	QR string
	// QRPng is the pairing code rendered as a PNG data URL, empty when absent
	// or when rendering failed.
	QRPng string
	// ReinitPending reports whether a reinitialization timer is armed.
	ReinitPending bool
}
