package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplateSubstitutesKnownPlaceholders(t *testing.T) {
	ctx := map[string]string{"port": "20001", "room_id": "room-1"}
	out, err := renderTemplate("./snake-server --port {port} --room {room_id}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "./snake-server --port 20001 --room room-1", out)
}

func TestRenderTemplateFailsOnMissingValue(t *testing.T) {
	_, err := renderTemplate("./snake-server --secret {client_token}", map[string]string{})
	assert.Error(t, err)
}

func TestSplitCommandTokenizesOnWhitespace(t *testing.T) {
	got := splitCommand("./snake-server --port 20001 --room room-1")
	assert.Equal(t, []string{"./snake-server", "--port", "20001", "--room", "room-1"}, got)
}

func TestSplitCommandCollapsesRepeatedWhitespace(t *testing.T) {
	got := splitCommand("./snake-server   --port  20001")
	assert.Equal(t, []string{"./snake-server", "--port", "20001"}, got)
}
