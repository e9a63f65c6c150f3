// Package client is a MessageStore that talks to a board server over HTTP,
// with change notifications pushed over a websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/putto11262002/board/core"
	"github.com/putto11262002/board/pkg/router"
)

var _ core.MessageStore = (*Store)(nil)

type Store struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *slog.Logger
	now     core.Clock

	minBackoff time.Duration
	maxBackoff time.Duration
}

type Option func(*Store)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.http = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithClock(now core.Clock) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithReconnectBackoff bounds the wait between websocket reconnect attempts.
// The wait doubles after each failed attempt, starting at first.
func WithReconnectBackoff(first, limit time.Duration) Option {
	return func(s *Store) {
		s.minBackoff = first
		s.maxBackoff = limit
	}
}

// New returns a store for the board server at addr, e.g. http://127.0.0.1:8080.
func New(addr string, opts ...Option) (*Store, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	s := &Store{
		baseURL:    u,
		http:       http.DefaultClient,
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
		now:        time.Now,
		minBackoff: 250 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) QueryAll(ctx context.Context) ([]core.Message, error) {
	res, err := s.do(ctx, http.MethodGet, "api/messages", nil)
	if err != nil {
		return nil, core.NewStoreError("QueryAll", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, responseError("QueryAll", res)
	}
	messages := []core.Message{}
	if err := json.NewDecoder(res.Body).Decode(&messages); err != nil {
		return nil, core.NewStoreError("QueryAll", fmt.Errorf("decode body: %w", err))
	}
	return messages, nil
}

// Create builds the message locally, so its ID and timestamp are the
// caller's, and posts it to the server.
func (s *Store) Create(ctx context.Context, title, entry string) (core.Message, error) {
	m, err := core.NewMessage(title, entry, s.now())
	if err != nil {
		return core.Message{}, err
	}
	body, err := json.Marshal(m)
	if err != nil {
		return core.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	res, err := s.do(ctx, http.MethodPost, "api/messages", bytes.NewReader(body))
	if err != nil {
		return core.Message{}, core.NewStoreError("Create", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		return core.Message{}, responseError("Create", res)
	}
	var created core.Message
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return core.Message{}, core.NewStoreError("Create", fmt.Errorf("decode body: %w", err))
	}
	return created, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.do(ctx, http.MethodDelete, "api/messages/"+url.PathEscape(id), nil)
	if err != nil {
		return core.NewStoreError("Delete", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		return responseError("Delete", res)
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.http.Do(req)
}

// responseError turns a non-success response into an error. A 400 carrying
// the blank entry message is reported as core.ErrEmptyEntry and a 409 as
// core.ErrMessageExists. Anything else
// means the store could not serve the call.
func responseError(op string, res *http.Response) error {
	var apiErr router.JsonError
	if err := json.NewDecoder(res.Body).Decode(&apiErr); err != nil || apiErr.Err == "" {
		apiErr = router.NewJsonError(res.StatusCode, http.StatusText(res.StatusCode))
	}
	if res.StatusCode == http.StatusConflict {
		return core.ErrMessageExists
	}
	if res.StatusCode == http.StatusBadRequest {
		if apiErr.Err == core.ErrEmptyEntry.Error() {
			return core.ErrEmptyEntry
		}
		return fmt.Errorf("%s: %w", op, apiErr)
	}
	return core.NewStoreError(op, fmt.Errorf("status %d: %w", res.StatusCode, apiErr))
}

func (s *Store) wsURL() string {
	u := s.baseURL.JoinPath("ws")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// Subscribe dials the server's websocket and calls onChange for every
// change event. If the connection drops it is redialed with backoff, and
// onChange is called once after each reconnect for the changes that might
// have been missed. The first dial must succeed.
func (s *Store) Subscribe(onChange func()) (core.Subscription, error) {
	conn, _, err := s.dialer.Dial(s.wsURL(), nil)
	if err != nil {
		return nil, core.NewStoreError("Subscribe", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{store: s, onChange: onChange, cancel: cancel, conn: conn}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		sub.run(ctx)
	}()
	return sub, nil
}

type subscription struct {
	store    *Store
	onChange func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn
	once sync.Once
}

// Unsubscribe closes the websocket and waits for the reader to exit.
// It must not be called from inside onChange.
func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.cancel()
		sub.mu.Lock()
		if sub.conn != nil {
			sub.conn.Close()
		}
		sub.mu.Unlock()
		sub.wg.Wait()
	})
}

func (sub *subscription) run(ctx context.Context) {
	logger := sub.store.logger
	for {
		sub.mu.Lock()
		conn := sub.conn
		sub.mu.Unlock()

		err := sub.read(conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Warn(fmt.Sprintf("change feed lost, reconnecting: %v", err))

		conn, err = sub.redial(ctx)
		if err != nil {
			return
		}
		sub.mu.Lock()
		if ctx.Err() != nil {
			sub.mu.Unlock()
			conn.Close()
			return
		}
		sub.conn = conn
		sub.mu.Unlock()

		logger.Info("change feed reconnected")
		sub.onChange()
	}
}

// read delivers events from conn until it fails.
func (sub *subscription) read(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var e core.Event
		if err := core.DecodeEvent(bytes.NewReader(data), &e); err != nil {
			sub.store.logger.Warn(err.Error())
			continue
		}
		if e.Type == core.MessagesChangedEvent {
			sub.onChange()
		}
	}
}

// redial retries until it connects or ctx is done.
func (sub *subscription) redial(ctx context.Context) (*websocket.Conn, error) {
	wait := sub.store.minBackoff
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		conn, _, err := sub.store.dialer.DialContext(ctx, sub.store.wsURL(), nil)
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		sub.store.logger.Debug(fmt.Sprintf("redial failed, next attempt in %s: %v", wait, err))
		wait = min(wait*2, sub.store.maxBackoff)
	}
}
