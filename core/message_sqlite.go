package core

import (
	"context"
	"database/sql"
	"time"
)

type storeOptions struct {
	now Clock
}

type StoreOption func(*storeOptions)

// WithClock sets the clock used to stamp created and updated messages.
func WithClock(now Clock) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type SQLiteMessageStore struct {
	db   *sql.DB
	feed *ChangeFeed
	now  Clock
}

func NewSQLiteMessageStore(db *sql.DB, feed *ChangeFeed, opts ...StoreOption) *SQLiteMessageStore {
	o := newStoreOptions(opts)
	return &SQLiteMessageStore{
		db:   db,
		feed: feed,
		now:  o.now,
	}
}

func (s *SQLiteMessageStore) QueryAll(ctx context.Context) ([]Message, error) {
	query := `
	SELECT id, title, entry, created_at, created_at_unix, updated_at
	FROM messages
	ORDER BY rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if rows != nil {
			rows.Close()
		}
		return nil, ctxErr
	}
	if err != nil {
		return nil, NewStoreError("QueryAll", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			m                           Message
			title, createdAt, updatedAt sql.NullString
		)
		if err := rows.Scan(&m.ID, &title, &m.Entry, &createdAt, &m.CreatedAtUnix, &updatedAt); err != nil {
			return nil, NewStoreError("QueryAll", err)
		}
		m.Title = title.String
		m.CreatedAt = createdAt.String
		m.UpdatedAt = updatedAt.String
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, NewStoreError("QueryAll", err)
	}
	return messages, nil
}

func (s *SQLiteMessageStore) Create(ctx context.Context, title, entry string) (Message, error) {
	m, err := NewMessage(title, entry, s.now())
	if err != nil {
		return Message{}, err
	}
	return s.Save(ctx, m)
}

// Save writes a message built by the caller, keeping its ID and creation stamps.
// An ID that is already stored is rejected with ErrMessageExists.
func (s *SQLiteMessageStore) Save(ctx context.Context, m Message) (Message, error) {
	if isBlank(m.Entry) {
		return Message{}, ErrEmptyEntry
	}
	if m.ID == "" {
		return Message{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	m.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	query := `
	INSERT INTO messages (id, title, entry, created_at, created_at_unix, updated_at)
	VALUES (@id, @title, @entry, @created_at, @created_at_unix, @updated_at)
	ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		sql.Named("id", m.ID),
		sql.Named("title", nullString(m.Title)),
		sql.Named("entry", m.Entry),
		sql.Named("created_at", nullString(m.CreatedAt)),
		sql.Named("created_at_unix", m.CreatedAtUnix),
		sql.Named("updated_at", m.UpdatedAt),
	)
	if err != nil {
		return Message{}, NewStoreError("Save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Message{}, NewStoreError("Save", err)
	}
	if n == 0 {
		return Message{}, ErrMessageExists
	}

	s.feed.Notify()
	return m, nil
}

func (s *SQLiteMessageStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM messages WHERE id = @id`
	res, err := s.db.ExecContext(ctx, query, sql.Named("id", id))
	if err != nil {
		return NewStoreError("Delete", err)
	}
	// nothing removed, nothing to announce
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	s.feed.Notify()
	return nil
}

func (s *SQLiteMessageStore) Subscribe(onChange func()) (Subscription, error) {
	return s.feed.Subscribe(onChange)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
