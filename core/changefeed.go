package core

import (
	"errors"
	"sync"
)

var ErrFeedClosed = errors.New("change feed closed")

// ChangeFeed fans a "something changed" signal out to every subscriber.
// Callbacks run on the notifying goroutine and must not block.
type ChangeFeed struct {
	mu     sync.RWMutex
	subs   map[int]func()
	nextID int
	closed bool
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[int]func())}
}

func (f *ChangeFeed) Subscribe(onChange func()) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = onChange
	return &feedSubscription{feed: f, id: id}, nil
}

// Notify calls every registered callback once.
func (f *ChangeFeed) Notify() {
	f.mu.RLock()
	callbacks := make([]func(), 0, len(f.subs))
	for _, cb := range f.subs {
		callbacks = append(callbacks, cb)
	}
	f.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Len returns the number of live subscriptions.
func (f *ChangeFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close drops every subscription. Later calls to Subscribe fail with ErrFeedClosed.
func (f *ChangeFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	clear(f.subs)
}

func (f *ChangeFeed) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

type feedSubscription struct {
	feed *ChangeFeed
	id   int
	once sync.Once
}

func (s *feedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s.id)
	})
}
