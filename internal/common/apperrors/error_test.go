package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("derivation keeps the chain", func(t *testing.T) {
		ErrBase := New("base error")
		assert.Equal(t, "base error", ErrBase.Error())
		assert.Equal(t, "msg", ErrBase.New("msg").Error())
		assert.ErrorIs(t, ErrBase, ErrBase)

		ErrFirstLevel := ErrBase.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBase)
		assert.NotErrorIs(t, ErrBase, ErrFirstLevel)

		ErrOther := New("another error")
		ErrOtherMsg := ErrOther.Msg("another error msg")
		wrapped := ErrFirstLevel.Err(ErrOtherMsg)
		assert.Equal(t, "first level", wrapped.Error())
		assert.ErrorIs(t, wrapped, ErrBase)
		assert.ErrorIs(t, wrapped, ErrFirstLevel)
		assert.ErrorIs(t, wrapped, ErrOther)
		assert.ErrorIs(t, wrapped, ErrOtherMsg)
	})

	t.Run("wraps foreign errors", func(t *testing.T) {
		ErrBase := New("base error")
		err := errors.New("error")
		wrapped := ErrBase.MsgErr("msg", err)
		assert.Equal(t, "msg", wrapped.Error())
		assert.ErrorIs(t, wrapped, ErrBase)
		assert.ErrorIs(t, wrapped, err)

		goErr := fmt.Errorf("go error")
		assert.ErrorIs(t, ErrBase.Err(goErr), goErr)
	})

	t.Run("status code and user message are inherited", func(t *testing.T) {
		ErrAuth := New("auth error").SetStatusCode(http.StatusUnauthorized).SetUserMessage("Please sign in again.")
		derived := ErrAuth.New("token expired")
		assert.Equal(t, http.StatusUnauthorized, derived.StatusCode())
		assert.Equal(t, "Please sign in again.", derived.UserMessage())
		assert.Equal(t, "token expired", derived.Error())

		plain := New("plain")
		assert.Equal(t, "plain", plain.UserMessage())
	})

	t.Run("ErrorAll expands wrapped errors", func(t *testing.T) {
		ErrBase := New("request failed").SetExpandError(true)
		err := ErrBase.Err(errors.New("connection refused"))
		assert.Equal(t, "request failed; connection refused", err.ErrorAll())
		assert.Equal(t, "request failed", ErrBase.Err(errors.New("x")).SetExpandError(false).ErrorAll())
	})

	t.Run("StatusCodeOf", func(t *testing.T) {
		ErrConflict := New("conflict").SetStatusCode(http.StatusConflict)
		assert.Equal(t, http.StatusConflict, StatusCodeOf(fmt.Errorf("wrapped: %w", ErrConflict)))
		assert.Equal(t, 0, StatusCodeOf(errors.New("plain")))
	})
}
