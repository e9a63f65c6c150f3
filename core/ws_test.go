package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnManagerSend(t *testing.T) {
	f := setUpWSFixture(t)
	defer f.tearDown()

	f.connectClients(3)

	e, err := NewEvent(MessagesChangedEvent, struct{}{})
	require.NoError(t, err)
	f.cm.Send(e)

	for i, client := range f.clients {
		client.SetReadDeadline(time.Now().Add(baseTimeout))
		format, b, err := client.ReadMessage()
		require.NoError(t, err, "client %d", i)
		assert.Equal(t, websocket.TextMessage, format)

		var got Event
		require.NoError(t, DecodeEvent(bytes.NewReader(b), &got))
		assert.Equal(t, MessagesChangedEvent, got.Type)
		assert.JSONEq(t, "{}", string(got.Payload))
	}
}

func TestConnManagerDisconnect(t *testing.T) {
	f := setUpWSFixture(t)
	defer f.tearDown()

	closed := make(chan int, 2)
	f.cm.OnConnectionClosed(func(id int) {
		closed <- id
	})
	f.connectClients(2)

	// client going away
	f.clients[0].WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	require.Eventually(t, func() bool {
		return f.cm.Len() == 1
	}, baseTimeout, baseTimeout/20, "connection was not removed after client close")

	// server closing everything
	f.cm.Close(f.ctx)
	assert.Equal(t, 0, f.cm.Len())

	f.clients[1].SetReadDeadline(time.Now().Add(baseTimeout))
	_, _, err := f.clients[1].ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Eventually(t, func() bool {
		return len(closed) == 2
	}, baseTimeout, baseTimeout/20, "OnConnectionClosed was not called for every connection")
}
