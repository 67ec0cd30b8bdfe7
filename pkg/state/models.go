package state

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User binds a display name to one live transport connection. Names are
// client-supplied and not guaranteed unique across connections.
type User struct {
	Name         string
	ConnectionID uuid.UUID
	IPAddress    string
	RegisteredAt time.Time
}

// Message is the chat payload exchanged with clients. An empty To means a
// public message addressed to the whole room.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Content string `json:"content"`
}

// SessionState tracks the lifecycle of a private chat pairing. A session
// that is not in the table is implicitly non-existent; closing removes it.
type SessionState int

const (
	SessionInitiated SessionState = iota // opened, peer has not replied yet
	SessionActive                        // both sides have sent at least once
)

// Session is an ephemeral one-to-one private chat between two named users.
type Session struct {
	Key          string
	ParticipantA string // lexicographically smaller name
	ParticipantB string
	Initiator    string
	State        SessionState
	CreatedAt    time.Time
}

// Peer returns the other participant of the session.
func (s Session) Peer(name string) string {
	if s.ParticipantA == name {
		return s.ParticipantB
	}
	return s.ParticipantA
}

// Involves reports whether name participates in the session.
func (s Session) Involves(name string) bool {
	return s.ParticipantA == name || s.ParticipantB == name
}

// PairKey derives the canonical identifier for an unordered pair of names:
// the lexicographically smaller name first, joined with "-". Both argument
// orders of the same pair map to the same key.
func PairKey(a, b string) string {
	if strings.Compare(a, b) < 0 {
		return a + "-" + b
	}
	return b + "-" + a
}
