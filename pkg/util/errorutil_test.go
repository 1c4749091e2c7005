package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error is unwrapped", func(t *testing.T) {
		err := fmt.Errorf("login: %w", NewAccountLocked())
		de := ToDomainError(err)
		require.Equal(t, CodeAccountLocked, de.Code)
		require.Equal(t, http.StatusLocked, de.HTTPStatus)
	})

	t.Run("unknown error hides cause", func(t *testing.T) {
		cause := errors.New("pq: relation users does not exist")
		de := ToDomainError(cause)
		require.Equal(t, CodeInternal, de.Code)
		require.Equal(t, "internal server error", de.Message)
		require.ErrorIs(t, de, cause)
	})
}

func TestAccountLockedDoesNotLeakAttempts(t *testing.T) {
	de := ToDomainError(NewAccountLocked())
	require.Empty(t, de.Details)
	require.NotContains(t, de.Message, "remaining")
}

func TestIsCode(t *testing.T) {
	require.True(t, IsCode(NewTokenExpired("token expired"), CodeTokenExpired))
	require.False(t, IsCode(NewTokenInvalid("bad"), CodeTokenExpired))
	require.False(t, IsCode(errors.New("plain"), CodeTokenExpired))
}
