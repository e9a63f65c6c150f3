package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix      = "msg:"
	messageIndexPrefix = "idx:msg:"
)

// BadgerMessageStore keeps messages in BadgerDB.
// Records live under "msg:{inserted_at_padded}:{id}" so a prefix scan returns
// them in insertion order. "idx:msg:{id}" points at the record key so
// lookups by ID do not need a scan.
type BadgerMessageStore struct {
	db     *badger.DB
	feed   *ChangeFeed
	logger *slog.Logger
	now    Clock
}

func NewBadgerMessageStore(db *badger.DB, feed *ChangeFeed, logger *slog.Logger, opts ...StoreOption) *BadgerMessageStore {
	o := newStoreOptions(opts)
	return &BadgerMessageStore{
		db:     db,
		feed:   feed,
		logger: logger,
		now:    o.now,
	}
}

func messageKey(insertedAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, insertedAt.UnixNano(), id))
}

func messageIndexKey(id string) []byte {
	return []byte(messageIndexPrefix + id)
}

func (s *BadgerMessageStore) QueryAll(ctx context.Context) ([]Message, error) {
	messages := make([]Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var m Message
				if err := json.Unmarshal(v, &m); err != nil {
					s.logger.Error(fmt.Sprintf("skipping undecodable record %s: %v", item.Key(), err))
					return nil
				}
				messages = append(messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, NewStoreError("QueryAll", err)
	}
	return messages, nil
}

func (s *BadgerMessageStore) Create(ctx context.Context, title, entry string) (Message, error) {
	m, err := NewMessage(title, entry, s.now())
	if err != nil {
		return Message{}, err
	}
	return s.Save(ctx, m)
}

// Save writes a message built by the caller.
// An ID that is already stored is rejected with ErrMessageExists.
func (s *BadgerMessageStore) Save(ctx context.Context, m Message) (Message, error) {
	if isBlank(m.Entry) {
		return Message{}, ErrEmptyEntry
	}
	if m.ID == "" {
		return Message{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	now := s.now()
	m.UpdatedAt = now.UTC().Format(time.RFC3339)

	b, err := json.Marshal(m)
	if err != nil {
		return Message{}, fmt.Errorf("json.Marshal: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key, err := s.lookup(txn, m.ID)
		if err != nil {
			return err
		}
		if key != nil {
			return ErrMessageExists
		}
		key = messageKey(now, m.ID)
		if err := txn.Set(messageIndexKey(m.ID), key); err != nil {
			return err
		}
		return txn.Set(key, b)
	})
	if errors.Is(err, ErrMessageExists) {
		return Message{}, err
	}
	if err != nil {
		return Message{}, NewStoreError("Save", err)
	}

	s.feed.Notify()
	return m, nil
}

func (s *BadgerMessageStore) Delete(ctx context.Context, id string) error {
	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key, err := s.lookup(txn, id)
		if err != nil || key == nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		removed = true
		return txn.Delete(messageIndexKey(id))
	})
	if err != nil {
		return NewStoreError("Delete", err)
	}
	if removed {
		s.feed.Notify()
	}
	return nil
}

func (s *BadgerMessageStore) Subscribe(onChange func()) (Subscription, error) {
	return s.feed.Subscribe(onChange)
}

// lookup returns the record key for id, or nil if there is none.
func (s *BadgerMessageStore) lookup(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(messageIndexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
