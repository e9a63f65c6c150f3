package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	t        *testing.T
	ctx      context.Context
	cm       *ConnManager
	server   *httptest.Server
	clients  []*websocket.Conn
	wg       sync.WaitGroup
	tearDown func()
}

func setUpWSFixture(t *testing.T) *wsFixture {
	ctx, cancel := context.WithCancel(context.Background())
	f := &wsFixture{t: t, ctx: ctx}
	f.cm = NewConnManager(ctx, &f.wg, discardLogger)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.cm.Connect(w, r)
	}))
	f.tearDown = func() {
		for _, c := range f.clients {
			c.Close()
		}
		f.server.Close()
		cancel()
		f.wg.Wait()
	}
	return f
}

func getWSURLFromHTTPURL(url string) string {
	return "ws" + strings.TrimPrefix(url, "http")
}

func (f *wsFixture) connectClients(n int) {
	for i := 0; i < n; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(getWSURLFromHTTPURL(f.server.URL), nil)
		require.NoError(f.t, err)
		f.clients = append(f.clients, conn)
	}
	require.Eventually(f.t, func() bool {
		return f.cm.Len() == len(f.clients)
	}, baseTimeout, baseTimeout/20, "Timeout waiting for connection to be added to the manager")
}
