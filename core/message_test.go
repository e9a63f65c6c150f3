package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2021, time.March, 4, 9, 30, 0, 0, time.Local)

	t.Run("valid message", func(t *testing.T) {
		m, err := NewMessage("A", "hello", now)
		require.Nil(t, err)
		_, err = uuid.Parse(m.ID)
		assert.Nil(t, err)
		assert.Equal(t, "A", m.Title)
		assert.Equal(t, "hello", m.Entry)
		assert.Equal(t, "03/04/2021 - 9:30:00 am", m.CreatedAt)
		assert.Equal(t, now.UnixMilli(), m.CreatedAtUnix)
		assert.Empty(t, m.UpdatedAt)
	})

	t.Run("title is optional", func(t *testing.T) {
		m, err := NewMessage("", "hello", now)
		require.Nil(t, err)
		assert.Empty(t, m.Title)
	})

	t.Run("ids are unique", func(t *testing.T) {
		a, _ := NewMessage("", "hello", now)
		b, _ := NewMessage("", "hello", now)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("blank entry", func(t *testing.T) {
		for _, entry := range []string{"", " ", "\n\t  "} {
			_, err := NewMessage("title", entry, now)
			assert.ErrorIs(t, err, ErrEmptyEntry, "entry %q", entry)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		}
	})
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewStoreError("QueryAll", cause)

	assert.True(t, IsStoreUnavailable(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "QueryAll")
	assert.False(t, IsStoreUnavailable(cause))
}
