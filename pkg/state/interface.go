package state

import "github.com/google/uuid"

// Registry is the source of truth for who is online. Implementations must be
// safe for concurrent use; lookups after a registration must observe it.
type Registry interface {
	// --- Connection Lifecycle ---
	Register(connID uuid.UUID, name, ipAddr string) User
	// Unregister removes the mapping for connID; no-op if absent.
	Unregister(connID uuid.UUID)
	LookupByConnection(connID uuid.UUID) (User, bool)
	// LookupByName resolves a display name to a connection. Names are not
	// unique; resolution is deterministic (last registration wins).
	LookupByName(name string) (uuid.UUID, bool)
	// ListOnlineNames returns a sorted, de-duplicated snapshot of all
	// registered display names.
	ListOnlineNames() []string
}

// SessionTable tracks active private-chat pairings keyed by the canonical
// pair key, independent of which participant initiated.
type SessionTable interface {
	// Create opens a session for the pair, or returns the existing one.
	// Exactly one session exists per pair even under concurrent creates
	// from both participants.
	Create(from, to string) (Session, bool)
	Exists(a, b string) bool
	Get(a, b string) (Session, bool)
	// MarkActive promotes the session once the non-initiator has sent.
	MarkActive(from, to string)
	// Close removes the session; reports whether one was present.
	Close(a, b string) bool
	// CloseAllFor removes and returns every session name participates in.
	CloseAllFor(name string) []Session
}
