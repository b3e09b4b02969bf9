// Package clientshim implements the small contract any compliant client
// must satisfy to interoperate with the control plane: chunked package
// download, local version tracking, and subprocess launch of a downloaded
// game's client process with a provisioned, secret-bearing environment.
package clientshim

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/forgegames/platform/internal/protocol"
)

// ResponseError reports a server-side error response: a non-"ok" status
// envelope decoded back into a Go error at the call site.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("control plane error %d: %s", e.Code, e.Message)
}

// Client is a thin synchronous wrapper around one control-plane connection:
// every call writes one request envelope and blocks for its matching
// response, mirroring the request/response pairing the reference client's
// send_request helper performs over a raw socket.
type Client struct {
	conn   net.Conn
	reader *protocol.Reader
	token  string
}

// Dial opens a TCP connection to addr and wraps it as a Client.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, protocol.NewInternal("dial control plane", err)
	}
	return &Client{conn: conn, reader: protocol.NewReader(conn, 0)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetToken attaches a session token to every subsequent Call.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Call sends a request envelope of the given type and decodes the response
// payload into out (which may be nil if the caller doesn't need it).
func (c *Client) Call(ctx context.Context, reqType string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return protocol.NewInternal("encode request payload", err)
	}

	env := protocol.Envelope{Type: reqType, Payload: raw, Token: c.token}
	if err := protocol.WriteEnvelope(c.conn, env); err != nil {
		return protocol.NewInternal("write request", err)
	}

	resp, err := c.reader.ReadEnvelope()
	if err != nil {
		return protocol.NewInternal("read response", err)
	}
	if resp.Status == protocol.StatusError {
		return &ResponseError{Code: resp.Code, Message: resp.Message}
	}
	if out != nil {
		if err := resp.DecodePayload(out); err != nil {
			return protocol.NewInternal("decode response payload", err)
		}
	}
	return nil
}
