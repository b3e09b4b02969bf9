package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	env := Envelope{Type: "ACCOUNT.LOGIN_PLAYER", RequestID: "r1"}
	require.NoError(t, WriteEnvelope(&buf, env))

	reader := NewReader(&buf, 0)
	got, err := reader.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, env.Type, got.Type)
	assert.Equal(t, env.RequestID, got.RequestID)
}

func TestReadEnvelopeEOF(t *testing.T) {
	reader := NewReader(strings.NewReader(""), 0)
	_, err := reader.ReadEnvelope()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadEnvelopeMalformedIsDropped(t *testing.T) {
	reader := NewReader(strings.NewReader("not json\n"), 0)
	_, err := reader.ReadEnvelope()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadEnvelopeSkipsBlankKeepAliveLines(t *testing.T) {
	input := "\n\n" + `{"type":"ACCOUNT.LOGOUT"}` + "\n"
	reader := NewReader(strings.NewReader(input), 0)
	env, err := reader.ReadEnvelope()
	require.NoError(t, err)
	assert.Equal(t, "ACCOUNT.LOGOUT", env.Type)
}

func TestOversizeLineDiscardedWithoutTearingDownStream(t *testing.T) {
	oversize := strings.Repeat("a", 100)
	good := `{"type":"ACCOUNT.LOGOUT"}`
	input := oversize + "\n" + good + "\n"

	reader := NewReader(strings.NewReader(input), 50)
	env, err := reader.ReadEnvelope()
	require.NoError(t, err, "the oversize line must be discarded, not surfaced as an error")
	assert.Equal(t, "ACCOUNT.LOGOUT", env.Type)
}
