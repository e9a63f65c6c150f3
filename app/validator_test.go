package board

import (
	"errors"
	"testing"

	"github.com/putto11262002/board/core"
	"github.com/stretchr/testify/assert"
)

func TestValidationMessage(t *testing.T) {
	t.Run("blank entry", func(t *testing.T) {
		err := validate.Struct(CreateMessagePayload{Entry: " "})
		assert.Equal(t, core.ErrEmptyEntry.Error(), validationMessage(err))
	})

	t.Run("other tags are translated", func(t *testing.T) {
		err := validate.Struct(struct {
			Name string `validate:"required"`
			Kind string `validate:"oneof=a b"`
		}{Kind: "c"})
		msg := validationMessage(err)
		assert.Contains(t, msg, "name is a required field")
		assert.Contains(t, msg, "kind must be one of [a b]")
		assert.NotContains(t, msg, core.ErrEmptyEntry.Error())
	})

	t.Run("not a validation error", func(t *testing.T) {
		assert.Equal(t, "boom", validationMessage(errors.New("boom")))
	})
}
