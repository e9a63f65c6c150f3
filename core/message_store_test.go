package core

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savingStore interface {
	MessageStore
	Save(ctx context.Context, m Message) (Message, error)
}

type storeFactory func(t *testing.T) (savingStore, *StoreFixture)

func sqliteFactory(t *testing.T) (savingStore, *StoreFixture) {
	f := NewSQLiteFixture(t)
	return f.store, f.StoreFixture
}

func badgerFactory(t *testing.T) (savingStore, *StoreFixture) {
	f := NewBadgerFixture(t)
	return f.store, f.StoreFixture
}

func TestSQLiteMessageStore(t *testing.T) {
	testMessageStore(t, sqliteFactory)
}

func TestBadgerMessageStore(t *testing.T) {
	testMessageStore(t, badgerFactory)
}

func testMessageStore(t *testing.T, newStore storeFactory) {
	t.Run("create and query", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		created, err := store.Create(f.ctx, "A", "hello")
		require.Nil(t, err)
		require.NotEmpty(t, created.ID)
		assert.NotEmpty(t, created.CreatedAt)
		assert.NotZero(t, created.CreatedAtUnix)
		assert.NotEmpty(t, created.UpdatedAt)

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, created, messages[0])
	})

	t.Run("query empty store", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		assert.NotNil(t, messages)
		assert.Empty(t, messages)
	})

	t.Run("query returns insertion order", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		var want []string
		for _, entry := range []string{"one", "two", "three"} {
			m, err := store.Create(f.ctx, "", entry)
			require.Nil(t, err)
			want = append(want, m.ID)
		}

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		assert.Equal(t, want, ids(messages))
	})

	t.Run("blank entry is not written", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()
		var notified atomic.Int32
		_, err := store.Subscribe(func() { notified.Add(1) })
		require.Nil(t, err)

		for _, entry := range []string{"", "   ", "\n"} {
			_, err := store.Create(f.ctx, "title", entry)
			assert.ErrorIs(t, err, ErrEmptyEntry)
		}

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		assert.Empty(t, messages)
		assert.Zero(t, notified.Load())
	})

	t.Run("save keeps client stamps", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		m := Message{ID: "client-id", Title: "t", Entry: "e", CreatedAt: "03/04/2021 - 1:00:00 pm"}
		saved, err := store.Save(f.ctx, m)
		require.Nil(t, err)
		assert.NotEmpty(t, saved.UpdatedAt)

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "client-id", messages[0].ID)
		assert.Equal(t, m.CreatedAt, messages[0].CreatedAt)
		assert.Zero(t, messages[0].CreatedAtUnix)
	})

	t.Run("save existing id is rejected", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		m := Message{ID: "dup", Title: "orig", Entry: "first"}
		_, err := store.Save(f.ctx, m)
		require.Nil(t, err)

		var notified atomic.Int32
		_, err = store.Subscribe(func() { notified.Add(1) })
		require.Nil(t, err)

		m.Title = "other"
		m.Entry = "second"
		_, err = store.Save(f.ctx, m)
		assert.ErrorIs(t, err, ErrMessageExists)
		assert.False(t, IsStoreUnavailable(err))

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "orig", messages[0].Title)
		assert.Equal(t, "first", messages[0].Entry)
		assert.Zero(t, notified.Load())
	})

	t.Run("save without id", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		_, err := store.Save(f.ctx, Message{Entry: "e"})
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("delete", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		a, err := store.Create(f.ctx, "A", "hello")
		require.Nil(t, err)
		b, err := store.Create(f.ctx, "B", "world")
		require.Nil(t, err)

		require.Nil(t, store.Delete(f.ctx, a.ID))

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		assert.Equal(t, []string{b.ID}, ids(messages))
	})

	t.Run("delete unknown id is a no-op", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()
		a, err := store.Create(f.ctx, "A", "hello")
		require.Nil(t, err)

		var notified atomic.Int32
		_, err = store.Subscribe(func() { notified.Add(1) })
		require.Nil(t, err)

		assert.Nil(t, store.Delete(f.ctx, "missing"))

		messages, err := store.QueryAll(f.ctx)
		require.Nil(t, err)
		assert.Equal(t, []string{a.ID}, ids(messages))
		assert.Zero(t, notified.Load())
	})

	t.Run("mutations notify subscribers", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()

		var notified atomic.Int32
		sub, err := store.Subscribe(func() { notified.Add(1) })
		require.Nil(t, err)

		m, err := store.Create(f.ctx, "", "hello")
		require.Nil(t, err)
		assert.Equal(t, int32(1), notified.Load())

		require.Nil(t, store.Delete(f.ctx, m.ID))
		assert.Equal(t, int32(2), notified.Load())

		sub.Unsubscribe()
		_, err = store.Create(f.ctx, "", "again")
		require.Nil(t, err)
		assert.Equal(t, int32(2), notified.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		store, f := newStore(t)
		defer f.tearDown()
		_, err := store.Create(f.ctx, "", "hello")
		require.Nil(t, err)

		ctx, cancel := context.WithCancel(f.ctx)
		cancel()
		_, err = store.QueryAll(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsStoreUnavailable(err))
	})
}
