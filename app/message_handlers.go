package board

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/putto11262002/board/core"
	"github.com/putto11262002/board/pkg/router"
)

// MessageStore is what the HTTP API needs from storage: the core store plus
// Save for records whose ID and timestamps were generated by the client.
type MessageStore interface {
	core.MessageStore
	Save(ctx context.Context, m core.Message) (core.Message, error)
}

type MessageHandler struct {
	store MessageStore
	now   core.Clock
}

func NewMessageHandler(store MessageStore) *MessageHandler {
	return &MessageHandler{store: store, now: time.Now}
}

type CreateMessagePayload struct {
	// ID is optional. When it is set the message is stored as given and an
	// ID that is already taken is refused, otherwise the server generates the
	// ID and timestamps.
	ID            string `json:"id"`
	Title         string `json:"title"`
	Entry         string `json:"entry" validate:"notblank"`
	CreatedAt     string `json:"created_at"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

func (h *MessageHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	messages, err := h.store.QueryAll(r.Context())
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(messages)
}

// BoardHandler returns every message newest first.
func (h *MessageHandler) BoardHandler(w http.ResponseWriter, r *http.Request) error {
	messages, err := h.store.QueryAll(r.Context())
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(core.SortMessages(messages))
}

func (h *MessageHandler) CreateMessageHandler(w http.ResponseWriter, r *http.Request) error {
	var payload CreateMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return router.BadRequest("invalid json")
	}
	r.Body.Close()

	if err := validate.Struct(payload); err != nil {
		return router.BadRequest(validationMessage(err))
	}

	var (
		message core.Message
		err     error
	)
	if payload.ID == "" {
		message, err = h.store.Create(r.Context(), payload.Title, payload.Entry)
	} else {
		message = core.Message{
			ID:            payload.ID,
			Title:         payload.Title,
			Entry:         payload.Entry,
			CreatedAt:     payload.CreatedAt,
			CreatedAtUnix: payload.CreatedAtUnix,
		}
		if message.CreatedAt == "" && message.CreatedAtUnix == 0 {
			now := h.now()
			message.CreatedAt = core.FormatCreatedAt(now)
			message.CreatedAtUnix = now.UnixMilli()
		}
		message, err = h.store.Save(r.Context(), message)
	}
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(message)
}

func (h *MessageHandler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) error {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func registerErrorMappers(r *router.Router) {
	r.RegisterErrorMapper(core.ErrEmptyEntry, func(err error) router.JsonError {
		return router.BadRequest(core.ErrEmptyEntry.Error())
	})
	r.RegisterErrorMapper(core.ErrMessageExists, func(err error) router.JsonError {
		return router.NewJsonError(http.StatusConflict, core.ErrMessageExists.Error())
	})
	r.RegisterErrorMapper(core.ErrStoreUnavailable, func(err error) router.JsonError {
		return router.NewJsonError(http.StatusServiceUnavailable, core.ErrStoreUnavailable.Error())
	})
}
