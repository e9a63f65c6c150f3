package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// ConnManager holds the websocket connections of board viewers
// and pushes change events to all of them.
type ConnManager struct {
	conns   map[int]*Conn
	nextID  int
	mu      sync.RWMutex
	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger

	onConnectionOpened func(int)
	onConnectionClosed func(int)

	upgrader        websocket.Upgrader
	WriteStreamSize int
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ManagerOption func(*ConnManager)

// WithCheckOrigin decides which upgrade requests are accepted. By default
// every origin is.
func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func NewConnManager(context context.Context, wg *sync.WaitGroup, logger *slog.Logger, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		connWg:             wg,
		conns:              make(map[int]*Conn),
		logger:             logger,
		context:            context,
		upgrader:           defaultUpgrader,
		WriteStreamSize:    16,
		onConnectionOpened: func(int) {},
		onConnectionClosed: func(int) {},
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ConnManager) OnConnectionOpened(f func(int)) {
	m.onConnectionOpened = f
}

func (m *ConnManager) OnConnectionClosed(f func(int)) {
	m.onConnectionClosed = f
}

// Len returns the number of open connections.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Connect upgrades the request and starts the connection's read and write loops.
func (m *ConnManager) Connect(w http.ResponseWriter, r *http.Request) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied to the client
		return fmt.Errorf("Upgrade: %w", err)
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	wsConn := &Conn{
		id:          id,
		conn:        conn,
		context:     m.context,
		writeStream: make(chan *Event, m.WriteStreamSize),
		ticker:      time.NewTicker(pingPeriod),
		logger:      m.logger.With(slog.Int("connection", id)),
		notifyDisconnect: func() {
			m.disconnect(id)
		},
	}
	m.conns[id] = wsConn
	m.mu.Unlock()

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.readLoop()
	}()
	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.writeLoop()
	}()

	m.onConnectionOpened(id)
	return nil
}

func (m *ConnManager) disconnect(id int) {
	m.mu.Lock()
	conn, ok := m.conns[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	conn.close()
	delete(m.conns, id)
	m.mu.Unlock()

	m.onConnectionClosed(id)
}

// Send queues e on every connection. A connection whose write stream is
// full is dropped; the client reconnects and refetches.
func (m *ConnManager) Send(e *Event) {
	m.mu.RLock()
	var slow []int
	for id, conn := range m.conns {
		select {
		case conn.writeStream <- e:
		default:
			slow = append(slow, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range slow {
		m.logger.Warn(fmt.Sprintf("dropping slow connection %d", id))
		m.disconnect(id)
	}
}

// Close disconnects every connection.
func (m *ConnManager) Close(ctx context.Context) {
	m.mu.RLock()
	ids := make([]int, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.disconnect(id)
	}
}
