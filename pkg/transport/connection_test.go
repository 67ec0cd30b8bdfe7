package transport_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AhmedEhabH/Come2Chat/pkg/transport"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// newIdleConnection builds a connection whose pumps are never started, which
// is enough to exercise the queueing behavior of Send.
func newIdleConnection(buffer int) *transport.Connection {
	var wg sync.WaitGroup
	return transport.NewConnection(
		context.Background(), &wg, nil,
		transport.ConnectionConfig{SendBuffer: buffer},
		nil, nil, newTestLogger(),
	)
}

func TestSendNeverBlocksWhenBufferIsFull(t *testing.T) {
	conn := newIdleConnection(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Second and third sends overflow the buffer and must be dropped,
		// not block the caller.
		conn.Send([]byte("one"))
		conn.Send([]byte("two"))
		conn.Send([]byte("three"))
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Send blocked on a full outbound buffer")
	}
}

func TestCloseBeforeRunBalancesWaitGroup(t *testing.T) {
	var wg sync.WaitGroup
	conn := transport.NewConnection(
		context.Background(), &wg, nil,
		transport.ConnectionConfig{SendBuffer: 1},
		nil, nil, newTestLogger(),
	)

	// Closing a connection whose pumps never started must not panic the
	// waitgroup; the shutdown path closes connections in exactly this state.
	conn.Close(nil)
	conn.Close(nil) // close is once-only

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("waitgroup not released by Close")
	}

	select {
	case <-conn.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Done not closed after Close")
	}
}

func TestConnectionIDsAreUnique(t *testing.T) {
	a := newIdleConnection(1)
	b := newIdleConnection(1)
	require.NotEqual(t, a.ID(), b.ID())
}
