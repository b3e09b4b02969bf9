package clientshim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgegames/platform/internal/protocol"
)

// fakeServer reads one envelope off conn and writes resp back.
func fakeServer(t *testing.T, conn net.Conn, handle func(protocol.Envelope) protocol.Envelope) {
	t.Helper()
	go func() {
		reader := protocol.NewReader(conn, 0)
		env, err := reader.ReadEnvelope()
		if err != nil {
			return
		}
		_ = protocol.WriteEnvelope(conn, handle(env))
	}()
}

func TestClientCallDecodesSuccessResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	fakeServer(t, serverConn, func(env protocol.Envelope) protocol.Envelope {
		return protocol.OK(env.Type, env.RequestID, map[string]string{"ok": "yes"})
	})

	c := &Client{conn: clientConn, reader: protocol.NewReader(clientConn, 0)}

	var out map[string]string
	err := c.Call(context.Background(), protocol.TypeListGame, struct{}{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "yes", out["ok"])
}

func TestClientCallSurfacesErrorResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	fakeServer(t, serverConn, func(env protocol.Envelope) protocol.Envelope {
		return protocol.Err(env.Type, env.RequestID, protocol.CodeAuth, "bad credentials")
	})

	c := &Client{conn: clientConn, reader: protocol.NewReader(clientConn, 0)}

	err := c.Call(context.Background(), protocol.TypeLoginPlayer, struct{}{}, nil)
	require.Error(t, err)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, protocol.CodeAuth, respErr.Code)
}

func TestClientSetTokenAttachesTokenToRequest(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	seen := make(chan string, 1)
	go func() {
		reader := protocol.NewReader(serverConn, 0)
		env, err := reader.ReadEnvelope()
		if err != nil {
			return
		}
		seen <- env.Token
		_ = protocol.WriteEnvelope(serverConn, protocol.OK(env.Type, env.RequestID, struct{}{}))
	}()

	c := &Client{conn: clientConn, reader: protocol.NewReader(clientConn, 0)}
	c.SetToken("tok-123")

	require.NoError(t, c.Call(context.Background(), protocol.TypeListRooms, struct{}{}, nil))

	select {
	case tok := <-seen:
		assert.Equal(t, "tok-123", tok)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the request")
	}
}
