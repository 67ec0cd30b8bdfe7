package statemanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AhmedEhabH/Come2Chat/pkg/state"
)

// PrivateSessionTable tracks active one-to-one chat sessions keyed by the
// canonical pair key, so both participants resolve to the same session no
// matter who created it.
type PrivateSessionTable struct {
	sessions map[string]state.Session

	mu     sync.RWMutex
	logger *slog.Logger
}

func NewPrivateSessionTable(logger *slog.Logger) *PrivateSessionTable {
	return &PrivateSessionTable{
		sessions: make(map[string]state.Session),
		logger:   logger.With(slog.String("component", "private_session_table")),
	}
}

// compile-time check to ensure PrivateSessionTable implements SessionTable.
var _ state.SessionTable = (*PrivateSessionTable)(nil)

// Create opens a session between from and to, recording from as the
// initiator. If a session for the pair already exists it is returned
// unchanged with alreadyExisted set; concurrent creates from both sides
// yield exactly one session.
func (t *PrivateSessionTable) Create(from, to string) (state.Session, bool) {
	key := state.PairKey(from, to)

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.sessions[key]; ok {
		return existing, true
	}

	a, b := from, to
	if a > b {
		a, b = b, a
	}
	session := state.Session{
		Key:          key,
		ParticipantA: a,
		ParticipantB: b,
		Initiator:    from,
		State:        state.SessionInitiated,
		CreatedAt:    time.Now(),
	}
	t.sessions[key] = session

	t.logger.Debug("Private session created", slog.String("key", key), slog.String("initiator", from))
	return session, false
}

func (t *PrivateSessionTable) Exists(a, b string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[state.PairKey(a, b)]
	return ok
}

func (t *PrivateSessionTable) Get(a, b string) (state.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	session, ok := t.sessions[state.PairKey(a, b)]
	return session, ok
}

// MarkActive promotes the session to active once the non-initiator has sent
// a message. A send from the initiator leaves the state unchanged.
func (t *PrivateSessionTable) MarkActive(from, to string) {
	key := state.PairKey(from, to)

	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[key]
	if !ok || session.State != state.SessionInitiated || session.Initiator == from {
		return
	}
	session.State = state.SessionActive
	t.sessions[key] = session

	t.logger.Debug("Private session active", slog.String("key", key))
}

// Close removes the session for the pair. Idempotent; reports whether a
// session was actually removed.
func (t *PrivateSessionTable) Close(a, b string) bool {
	key := state.PairKey(a, b)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[key]; !ok {
		return false
	}
	delete(t.sessions, key)

	t.logger.Debug("Private session closed", slog.String("key", key))
	return true
}

// CloseAllFor removes every session name participates in and returns them,
// so the caller can notify the remaining peers. Used on disconnect.
func (t *PrivateSessionTable) CloseAllFor(name string) []state.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var closed []state.Session
	for key, session := range t.sessions {
		if session.Involves(name) {
			closed = append(closed, session)
			delete(t.sessions, key)
		}
	}
	if len(closed) > 0 {
		t.logger.Debug("Closed private sessions on departure",
			slog.String("name", name), slog.Int("count", len(closed)))
	}
	return closed
}
