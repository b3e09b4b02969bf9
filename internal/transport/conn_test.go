package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/protocol"
)

type stubDispatcher struct {
	calls int
}

func (s *stubDispatcher) Dispatch(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	s.calls++
	return protocol.Envelope{Type: env.Type, Status: protocol.StatusOK, RequestID: env.RequestID}
}

func testConnLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnServeDispatchesAndWritesResponse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	disp := &stubDispatcher{}
	c := newConn(server, ConnConfig{RateLimitPerSec: 100}, disp, testConnLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.serve(ctx)
		close(done)
	}()

	require.NoError(t, protocol.WriteEnvelope(client, protocol.Envelope{Type: "ACCOUNT.LOGOUT", RequestID: "r1"}))

	reader := protocol.NewReader(client, 0)
	resp, err := reader.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, "ACCOUNT.LOGOUT", resp.Type)
	assert.Equal(t, protocol.StatusOK, resp.Status)

	client.Close()
	<-done
	assert.Equal(t, 1, disp.calls)
}

func TestConnServeStopsOnContextCancellation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	disp := &stubDispatcher{}
	c := newConn(server, ConnConfig{RateLimitPerSec: 100}, disp, testConnLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.serve(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after context cancellation")
	}
}

func TestConnServeClosesOnSustainedRateLimitAbuse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	disp := &stubDispatcher{}
	c := newConn(server, ConnConfig{RateLimitPerSec: 1}, disp, testConnLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.serve(ctx)
		close(done)
	}()

	// Drain responses so the server's synchronous writes never block.
	go func() { _, _ = io.Copy(io.Discard, client) }()

	// Keep sending until the server closes the connection: frames arriving
	// during a cooldown are dropped without counting, so the violations that
	// close the connection accumulate about one per second.
	go func() {
		for {
			if err := protocol.WriteEnvelope(client, protocol.Envelope{Type: "ACCOUNT.LOGOUT"}); err != nil {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("connection was not closed for sustained rate-limit abuse")
	}
}
