package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// MessageListController keeps an ordered view of every message in a MessageStore.
// The view is rebuilt from a full QueryAll on start, on every change notification
// and after every Remove. It is never patched in place.
type MessageListController struct {
	store  MessageStore
	logger *slog.Logger

	onPublish func([]Message)
	onError   func(error)

	mu   sync.RWMutex
	view []Message
	// applied is the token of the refresh that produced view.
	applied uint64
	issued  atomic.Uint64

	// publishMu keeps publisher calls in the same order as view replacements.
	publishMu sync.Mutex

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	sub         Subscription
	changes     chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type ControllerOption func(*MessageListController)

// WithPublisher sets the function that receives every new view.
// It is called with a copy of the view and may call View, but must not
// trigger another refresh or call Stop from inside the call: Stop waits for
// the refresh that is running the publisher.
func WithPublisher(f func([]Message)) ControllerOption {
	return func(c *MessageListController) {
		c.onPublish = f
	}
}

// WithErrorHandler sets the function that is told about refreshes that failed.
// A failed refresh leaves the current view in place.
func WithErrorHandler(f func(error)) ControllerOption {
	return func(c *MessageListController) {
		c.onError = f
	}
}

func NewMessageListController(store MessageStore, logger *slog.Logger, opts ...ControllerOption) *MessageListController {
	c := &MessageListController{
		store:     store,
		logger:    logger,
		onPublish: func([]Message) {},
		onError:   func(error) {},
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Start subscribes to the store and loads the initial view.
// The subscription is opened before the first fetch so no change can fall between the two.
// Start may only be called once.
func (c *MessageListController) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	sub, err := c.store.Subscribe(c.notify)
	if err != nil {
		cancel()
		c.stopped = true
		c.lifecycleMu.Unlock()
		return fmt.Errorf("Subscribe: %w", err)
	}
	c.sub = sub
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(loopCtx)
	}()
	c.lifecycleMu.Unlock()

	c.Refresh(ctx)
	return nil
}

// Stop releases the subscription and waits for an in-flight notification
// refresh to finish. It is safe to call more than once, but not from the
// publisher or error handler.
func (c *MessageListController) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if !c.started || c.stopped {
		return
	}
	c.stopped = true
	c.sub.Unsubscribe()
	close(c.done)
	c.cancel()
	c.wg.Wait()
}

// notify is the store callback. It never blocks: if a refresh is already
// queued the signal is folded into it.
func (c *MessageListController) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *MessageListController) loop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-c.changes:
			c.Refresh(ctx)
		}
	}
}

// Refresh reloads every message, orders it and replaces the view.
// If the store fails the last good view is kept and the error is reported
// to the error handler. A refresh that completes after a later-issued one
// is discarded.
func (c *MessageListController) Refresh(ctx context.Context) {
	token := c.issued.Add(1)

	messages, err := c.store.QueryAll(ctx)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("refresh failed, keeping last view: %v", err))
		c.onError(fmt.Errorf("QueryAll: %w", err))
		return
	}
	sorted := SortMessages(messages)

	c.mu.Lock()
	if token < c.applied {
		c.mu.Unlock()
		c.logger.Debug(fmt.Sprintf("discarding stale refresh %d, already at %d", token, c.applied))
		return
	}
	c.applied = token
	c.view = sorted
	c.publishMu.Lock()
	c.mu.Unlock()
	defer c.publishMu.Unlock()

	c.logger.Debug(fmt.Sprintf("view refreshed: %d messages", len(sorted)))
	c.onPublish(slices.Clone(sorted))
}

// Submit creates a message. The view is not touched here; it catches up
// when the store's change notification arrives.
func (c *MessageListController) Submit(ctx context.Context, title, entry string) (Message, error) {
	m, err := c.store.Create(ctx, title, entry)
	if err != nil {
		return Message{}, fmt.Errorf("Create: %w", err)
	}
	return m, nil
}

// Remove deletes a message and refreshes the view without waiting for the notification.
func (c *MessageListController) Remove(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	c.Refresh(ctx)
	return nil
}

// View returns a copy of the current view, newest first.
func (c *MessageListController) View() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.view)
}
