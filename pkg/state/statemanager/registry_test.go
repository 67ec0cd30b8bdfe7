package statemanager_test

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AhmedEhabH/Come2Chat/pkg/state/statemanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *statemanager.ConnectionRegistry {
	return statemanager.NewConnectionRegistry(newTestLogger())
}

func TestRegisterAndLookup(t *testing.T) {
	r := newTestRegistry()
	connID := uuid.New()

	user := r.Register(connID, "john", "127.0.0.1")
	require.Equal(t, "john", user.Name)
	require.Equal(t, connID, user.ConnectionID)

	byConn, found := r.LookupByConnection(connID)
	require.True(t, found)
	require.Equal(t, "john", byConn.Name)

	byName, found := r.LookupByName("john")
	require.True(t, found)
	require.Equal(t, connID, byName)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	connID := uuid.New()
	r.Register(connID, "john", "127.0.0.1")

	r.Unregister(connID)
	_, found := r.LookupByConnection(connID)
	require.False(t, found)
	_, found = r.LookupByName("john")
	require.False(t, found)

	// A second unregister of the same connection is a no-op, not an error.
	r.Unregister(connID)
	r.Unregister(uuid.New())
}

func TestDuplicateNamesLastRegistrationWins(t *testing.T) {
	r := newTestRegistry()
	first := uuid.New()
	second := uuid.New()

	r.Register(first, "john", "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure timestamps are different
	r.Register(second, "john", "2.2.2.2")

	connID, found := r.LookupByName("john")
	require.True(t, found)
	require.Equal(t, second, connID, "most recent registration should win")

	// Both connections stay registered independently.
	_, found = r.LookupByConnection(first)
	require.True(t, found)

	// Dropping the winner repoints the name to the surviving connection.
	r.Unregister(second)
	connID, found = r.LookupByName("john")
	require.True(t, found)
	require.Equal(t, first, connID)
}

func TestReRegisterWithNewName(t *testing.T) {
	r := newTestRegistry()
	connID := uuid.New()

	r.Register(connID, "john", "127.0.0.1")
	r.Register(connID, "johnny", "127.0.0.1")

	_, found := r.LookupByName("john")
	require.False(t, found, "old name should no longer resolve")

	resolved, found := r.LookupByName("johnny")
	require.True(t, found)
	require.Equal(t, connID, resolved)
	require.Equal(t, []string{"johnny"}, r.ListOnlineNames())
}

func TestReRegisterDoesNotLeaveStaleNameRoute(t *testing.T) {
	r := newTestRegistry()
	renamed := uuid.New()
	other := uuid.New()

	r.Register(other, "john", "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure timestamps are different
	r.Register(renamed, "john", "2.2.2.2")
	r.Register(renamed, "johnny", "2.2.2.2")

	// The old name must never route to the renamed connection; it falls
	// back to the other connection still holding it.
	resolved, found := r.LookupByName("john")
	require.True(t, found)
	require.Equal(t, other, resolved)

	user, found := r.LookupByConnection(renamed)
	require.True(t, found)
	require.Equal(t, "johnny", user.Name)
}

func TestListOnlineNamesSortedAndDeduplicated(t *testing.T) {
	r := newTestRegistry()
	r.Register(uuid.New(), "zoe", "1.1.1.1")
	r.Register(uuid.New(), "david", "2.2.2.2")
	r.Register(uuid.New(), "david", "3.3.3.3")
	r.Register(uuid.New(), "john", "4.4.4.4")

	require.Equal(t, []string{"david", "john", "zoe"}, r.ListOnlineNames())
}

func TestOnlineNamesTrackLifecycle(t *testing.T) {
	r := newTestRegistry()
	john := uuid.New()
	david := uuid.New()

	r.Register(john, "john", "1.1.1.1")
	r.Register(david, "david", "2.2.2.2")
	require.Equal(t, []string{"david", "john"}, r.ListOnlineNames())

	r.Unregister(david)
	require.Equal(t, []string{"john"}, r.ListOnlineNames())

	r.Unregister(john)
	require.Empty(t, r.ListOnlineNames())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	numGoroutines := 100
	var wg sync.WaitGroup

	ids := make([]uuid.UUID, numGoroutines)
	for i := range ids {
		ids[i] = uuid.New()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(ids[i], fmt.Sprintf("user%d", i%10), "127.0.0.1")
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.LookupByName(fmt.Sprintf("user%d", i%10))
			r.ListOnlineNames()
		}(i)
	}
	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Unregister(ids[i])
		}(i)
	}
	wg.Wait()

	require.Empty(t, r.ListOnlineNames())
}
