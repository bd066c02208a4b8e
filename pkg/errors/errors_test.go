package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrNotFound)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	wrapped := fmt.Errorf("handler: %w", ErrForbidden)
	require.Equal(t, "FORBIDDEN", FromError(wrapped).Code)

	plain := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, plain.Code)
	require.Contains(t, plain.Error(), "boom")
}

func TestIsMatchesByCode(t *testing.T) {
	withCause := ErrGatewayUnavailable.WithInternal(errors.New("connection refused"))
	require.ErrorIs(t, withCause, ErrGatewayUnavailable)

	renamed := ErrNotFound.WithMessage("route /nope not found")
	require.ErrorIs(t, renamed, ErrNotFound)

	require.NotErrorIs(t, ErrNotFound, ErrForbidden)
	require.NotErrorIs(t, errors.New("boom"), ErrNotFound)
}

func TestUnwrapExposesInternal(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	appErr := Wrap(cause, "gateway call failed")

	require.ErrorIs(t, appErr, cause)
	require.Equal(t, "INTERNAL_ERROR", appErr.Code)
}

func TestNewForbiddenPermission(t *testing.T) {
	appErr := NewForbiddenPermission("user.delete")
	require.Contains(t, appErr.Message, "user.delete")
	require.Equal(t, 403, appErr.StatusCode)
}
