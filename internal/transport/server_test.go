package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/protocol"
)

func (s *Server) boundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func TestServerListenAndServeRoundTrip(t *testing.T) {
	disp := &stubDispatcher{}
	srv := &Server{
		Addr:   "127.0.0.1:0",
		Config: ConnConfig{RateLimitPerSec: 100},
		Disp:   disp,
		Logger: testConnLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(ctx) }()

	var addr net.Addr
	for i := 0; i < 40; i++ {
		if addr = srv.boundAddr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, addr, "server never bound its listener")

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteEnvelope(conn, protocol.Envelope{Type: "ACCOUNT.LOGOUT", RequestID: "r1"}))
	reader := protocol.NewReader(conn, 0)
	resp, err := reader.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Status)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after context cancellation")
	}
}
