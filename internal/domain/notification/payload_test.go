package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadString(t *testing.T) {
	p := Payload{"name": "  Sam  ", "count": 3}

	assert.Equal(t, "Sam", p.String("name"))
	assert.Equal(t, "", p.String("count"))
	assert.Equal(t, "", p.String("missing"))
}

func TestPayloadBool(t *testing.T) {
	p := Payload{
		"flag":    true,
		"textual": "true",
		"off":     "false",
		"junk":    "yes",
		"number":  1,
	}

	value, ok := p.Bool("flag")
	assert.True(t, ok)
	assert.True(t, value)

	value, ok = p.Bool("textual")
	assert.True(t, ok)
	assert.True(t, value)

	value, ok = p.Bool("off")
	assert.True(t, ok)
	assert.False(t, value)

	_, ok = p.Bool("junk")
	assert.False(t, ok)
	_, ok = p.Bool("number")
	assert.False(t, ok)
	_, ok = p.Bool("missing")
	assert.False(t, ok)
}

func TestPayloadClone(t *testing.T) {
	original := Payload{"a": 1}
	clone := original.Clone()
	clone["b"] = 2

	assert.NotContains(t, original, "b")
}

func TestPayloadScan(t *testing.T) {
	var p Payload
	require.NoError(t, p.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), p["a"])

	require.NoError(t, p.Scan(nil))
	assert.NotNil(t, p)
	assert.Empty(t, p)

	assert.Error(t, p.Scan(42))
}

func TestParseChannels(t *testing.T) {
	got := ParseChannels([]string{"email", "sms", "whatsapp", ""})
	assert.Equal(t, []Channel{ChannelEmail, ChannelWhatsApp}, got)
}
