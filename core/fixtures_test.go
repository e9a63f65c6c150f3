package core

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var discardLogger = slog.New(slog.DiscardHandler)

// fakeClock hands out strictly increasing instants, one second apart.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2021, time.March, 4, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type StoreFixture struct {
	ctx      context.Context
	feed     *ChangeFeed
	clock    *fakeClock
	tearDown func()
	t        *testing.T
}

type SQLiteFixture struct {
	*StoreFixture
	db    *sql.DB
	store *SQLiteMessageStore
}

func NewSQLiteFixture(t *testing.T) *SQLiteFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db, "../migrations"); err != nil {
		t.Fatal(err)
	}

	feed := NewChangeFeed()
	clock := newFakeClock()
	return &SQLiteFixture{
		StoreFixture: &StoreFixture{
			ctx:   ctx,
			feed:  feed,
			clock: clock,
			t:     t,
			tearDown: func() {
				cancel()
				feed.Close()
				db.Close()
			},
		},
		db:    db,
		store: NewSQLiteMessageStore(db, feed, WithClock(clock.Now)),
	}
}

type BadgerFixture struct {
	*StoreFixture
	db    *badger.DB
	store *BadgerMessageStore
}

func NewBadgerFixture(t *testing.T) *BadgerFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	if err != nil {
		t.Fatal(err)
	}

	feed := NewChangeFeed()
	clock := newFakeClock()
	return &BadgerFixture{
		StoreFixture: &StoreFixture{
			ctx:   ctx,
			feed:  feed,
			clock: clock,
			t:     t,
			tearDown: func() {
				cancel()
				feed.Close()
				db.Close()
			},
		},
		db:    db,
		store: NewBadgerMessageStore(db, feed, discardLogger, WithClock(clock.Now)),
	}
}
