package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent(t *testing.T) {
	e, err := NewEvent(MessagesChangedEvent, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "Event{Type: messages_changed, Payload.Size: 2}", e.String())

	var buf bytes.Buffer
	require.NoError(t, EncodeEvent(&buf, e))
	assert.JSONEq(t, `{"type":"messages_changed","payload":{}}`, buf.String())

	var decoded Event
	require.NoError(t, DecodeEvent(&buf, &decoded))
	assert.Equal(t, *e, decoded)

	assert.Error(t, DecodeEvent(bytes.NewBufferString("{"), &decoded))
}
