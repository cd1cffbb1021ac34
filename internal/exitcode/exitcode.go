// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"context"
	"errors"

	"github.com/nhle/taskflow/internal/api"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, not found).
	UserError = 1

	// AuthError indicates a missing or rejected session.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// FromError maps an error returned by a command to its exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case api.IsAuthError(err):
		return AuthError
	case api.IsValidationError(err), api.IsNotFound(err):
		return UserError
	case api.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		return BackendError
	default:
		return UserError
	}
}
