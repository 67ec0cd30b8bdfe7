package statemanager

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AhmedEhabH/Come2Chat/pkg/state"
	"github.com/google/uuid"
)

// ConnectionRegistry is the in-memory mapping between live connections and
// the display names registered on them, plus a name->connection reverse
// index for private-message routing.
type ConnectionRegistry struct {
	users  map[uuid.UUID]state.User
	byName map[string]uuid.UUID

	mu     sync.RWMutex
	logger *slog.Logger
}

func NewConnectionRegistry(logger *slog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		users:  make(map[uuid.UUID]state.User),
		byName: make(map[string]uuid.UUID),
		logger: logger.With(slog.String("component", "connection_registry")),
	}
}

// compile-time check to ensure ConnectionRegistry implements Registry.
var _ state.Registry = (*ConnectionRegistry)(nil)

// Register inserts or overwrites the user mapped to connID. Duplicate display
// names are accepted; the reverse index always points at the most recent
// registration for a name.
func (r *ConnectionRegistry) Register(connID uuid.UUID, name, ipAddr string) state.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.users[connID]; ok && prev.Name != name {
		r.dropNameIndex(prev.Name, connID)
	}

	user := state.User{
		Name:         name,
		ConnectionID: connID,
		IPAddress:    ipAddr,
		RegisteredAt: time.Now(),
	}
	r.users[connID] = user
	r.byName[name] = connID

	r.logger.Debug("User registered", slog.String("name", name), slog.String("connID", connID.String()))
	return user
}

// Unregister removes the mapping for connID. Calling it for an unknown
// connection is a no-op.
func (r *ConnectionRegistry) Unregister(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[connID]
	if !ok {
		return
	}
	delete(r.users, connID)
	r.dropNameIndex(user.Name, connID)

	r.logger.Debug("User unregistered", slog.String("name", user.Name), slog.String("connID", connID.String()))
}

// dropNameIndex repoints the reverse index for name to the most recently
// registered surviving connection sharing it, or removes the entry. The
// departing connection is excluded from the scan: on a re-registration its
// stale record is still in the map at this point. Caller must hold the
// write lock.
func (r *ConnectionRegistry) dropNameIndex(name string, gone uuid.UUID) {
	if r.byName[name] != gone {
		return
	}
	delete(r.byName, name)

	var latest state.User
	found := false
	for _, u := range r.users {
		if u.ConnectionID == gone || u.Name != name {
			continue
		}
		if !found || u.RegisteredAt.After(latest.RegisteredAt) {
			latest = u
			found = true
		}
	}
	if found {
		r.byName[name] = latest.ConnectionID
	}
}

func (r *ConnectionRegistry) LookupByConnection(connID uuid.UUID) (state.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[connID]
	return user, ok
}

// LookupByName resolves a display name to a connection. When several
// connections registered the same name the last registration wins.
func (r *ConnectionRegistry) LookupByName(name string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byName[name]
	return connID, ok
}

// ListOnlineNames returns a sorted snapshot of the registered display names,
// with duplicates collapsed. Sorting keeps the presence payload stable
// within a snapshot.
func (r *ConnectionRegistry) ListOnlineNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.users))
	names := make([]string, 0, len(r.users))
	for _, u := range r.users {
		if _, dup := seen[u.Name]; dup {
			continue
		}
		seen[u.Name] = struct{}{}
		names = append(names, u.Name)
	}
	sort.Strings(names)
	return names
}
