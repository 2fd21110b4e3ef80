package activities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/qaforge/automesh/internal/models"
)

func TestWrapActivityError_RoundTrip(t *testing.T) {
	tests := []struct {
		in        *models.ActivityError
		kind      models.ErrorKind
		retryable bool
	}{
		{models.NewTransientError("server hiccup"), models.ErrorKindTransient, true},
		{models.NewRateLimitError("429"), models.ErrorKindRateLimit, true},
		{models.NewContextOverflowError("too long"), models.ErrorKindContextOverflow, false},
		{models.NewFatalError("bad key"), models.ErrorKindFatal, false},
	}

	for _, tt := range tests {
		wrapped := WrapActivityError(tt.in)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, wrapped, &appErr, "kind %s", tt.kind)
		assert.Equal(t, tt.kind.String(), appErr.Type())
		assert.Equal(t, !tt.retryable, appErr.NonRetryable())
		assert.Equal(t, tt.kind, ErrorKindFromFailure(wrapped))
	}
}

func TestErrorKindFromFailure_UnknownDefaultsToTransient(t *testing.T) {
	assert.Equal(t, models.ErrorKindTransient, ErrorKindFromFailure(errors.New("plain error")))
	assert.Equal(t, models.ErrorKindTransient,
		ErrorKindFromFailure(temporal.NewApplicationError("odd", "SomethingElse")))
}
