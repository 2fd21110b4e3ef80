package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/qaforge/automesh/internal/models"
)

// WrapActivityError converts a classified ActivityError into a Temporal
// ApplicationError so the error kind travels through the failure's Type field
// and retryability is enforced by the server.
func WrapActivityError(err *models.ActivityError) error {
	return temporal.NewApplicationErrorWithOptions(
		err.Message,
		err.Kind.String(),
		temporal.ApplicationErrorOptions{
			NonRetryable: !err.Retryable,
			Details:      []interface{}{err.Details},
		},
	)
}

// ErrorKindFromFailure recovers the ErrorKind from an error returned by an
// activity execution. Unrecognized errors default to Transient.
func ErrorKindFromFailure(err error) models.ErrorKind {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case models.ErrorKindRateLimit.String():
			return models.ErrorKindRateLimit
		case models.ErrorKindContextOverflow.String():
			return models.ErrorKindContextOverflow
		case models.ErrorKindToolFailure.String():
			return models.ErrorKindToolFailure
		case models.ErrorKindFatal.String():
			return models.ErrorKindFatal
		}
	}
	return models.ErrorKindTransient
}
