package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStateGlyph(t *testing.T) {
	assert.Equal(t, "●", Connected.Glyph())
	assert.Equal(t, "○", Connecting.Glyph())
	assert.Equal(t, "○", Disconnected.Glyph())
}

func TestStatusEventJSON(t *testing.T) {
	ev := NewStatusEvent(Connecting, 3, "abc", "http://rover.local")

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "connecting", decoded["state"])
	assert.Equal(t, "○", decoded["glyph"])
	assert.EqualValues(t, 3, decoded["generation"])
}
