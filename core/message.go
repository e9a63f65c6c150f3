package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a single anonymous board post.
// Apart from UpdatedAt, which is maintained by the store, a message never
// changes after it is created.
type Message struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Entry string `json:"entry"`
	// CreatedAt is the display timestamp captured when the message was created.
	// It is formatted with CreatedAtLayout.
	CreatedAt string `json:"created_at,omitempty"`
	// CreatedAtUnix is the creation instant in milliseconds since the epoch.
	// Records written before it existed carry zero and are ordered by CreatedAt.
	CreatedAtUnix int64  `json:"created_at_unix,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

var (
	// ErrEmptyEntry is returned when a message is created with an empty or whitespace-only entry.
	ErrEmptyEntry = &ValidationError{Field: "entry", Reason: "must not be blank"}
	// ErrStoreUnavailable is matched by every error caused by the
	// backing store or transport failing.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMessageExists is returned when a message is saved under an ID that is already taken.
	// Messages are never rewritten once stored.
	ErrMessageExists = errors.New("message already exists")
	// ErrAlreadyStarted is returned when a controller is started twice.
	ErrAlreadyStarted = errors.New("controller already started")
)

// MessageCreateInput represents the input for creating a message.
type MessageCreateInput struct {
	Title string `json:"title"`
	Entry string `json:"entry" validate:"notblank"`
}

// Validate validates the message input.
func (m *MessageCreateInput) Validate() error {
	if err := validate.Struct(m); err != nil {
		return ErrEmptyEntry
	}
	return nil
}

// NewMessage builds a message with a fresh ID, stamped with now.
// It returns ErrEmptyEntry if entry is blank.
func NewMessage(title, entry string, now time.Time) (Message, error) {
	input := MessageCreateInput{Title: title, Entry: entry}
	if err := input.Validate(); err != nil {
		return Message{}, err
	}
	return Message{
		ID:            uuid.New().String(),
		Title:         title,
		Entry:         entry,
		CreatedAt:     FormatCreatedAt(now),
		CreatedAtUnix: now.UnixMilli(),
	}, nil
}

// Subscription is a handle to a change notification registration.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

type MessageStore interface {
	// QueryAll returns every stored message in the store's own order.
	QueryAll(ctx context.Context) ([]Message, error)

	// Create stores a new message with a generated ID and creation timestamp.
	// If the entry is blank, nothing is written and ErrEmptyEntry is returned.
	Create(ctx context.Context, title, entry string) (Message, error)

	// Delete removes the message with the given ID. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Subscribe registers onChange to be called once per mutation of the store,
	// whoever made it. Delivery is at least once and carries no payload.
	Subscribe(onChange func()) (Subscription, error)
}

// Clock returns the current time. Stores stamp new messages with it.
type Clock func() time.Time

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
