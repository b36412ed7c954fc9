package cli

import (
	"errors"

	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/services/transition"
)

// Exit codes for CLI commands.
// These codes follow Unix conventions and provide consistent error reporting
// across all CLI commands.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitError indicates a general error occurred.
	// Use for: Database errors, network errors, unexpected failures,
	// or any error that doesn't fit the specific categories below.
	ExitError = 1

	// ExitUsage indicates incorrect command usage.
	// Use for: Missing required flags, invalid flag combinations,
	// or when the user needs to provide different arguments.
	ExitUsage = 2

	// ExitNotFound indicates a requested resource was not found.
	// Use for: Entity not found, unknown board kind.
	ExitNotFound = 3

	// ExitDataErr indicates invalid or malformed data.
	// Use for: Undeclared stages in a request or a pipeline.
	ExitDataErr = 4

	// ExitValidation indicates a validation error.
	// Use for: Blank titles, transitions rejected by policy.
	ExitValidation = 5

	// ExitConflict indicates the board changed under the command.
	// Use for: Stale origin stage, a commit already in flight. Retrying
	// after reloading the board usually succeeds.
	ExitConflict = 6

	// ExitUnavailable indicates the backend rejected the write and the
	// move was rolled back.
	ExitUnavailable = 7
)

// ExitCodeFor maps an error returned by a command to its exit code
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrUsage),
		errors.Is(err, transition.ErrInvalidTenantID):
		return ExitUsage
	case errors.Is(err, models.ErrStaleState),
		errors.Is(err, models.ErrSessionConflict):
		return ExitConflict
	case errors.Is(err, models.ErrEntityNotFound),
		errors.Is(err, ErrUnknownKind):
		return ExitNotFound
	case errors.Is(err, models.ErrUnknownStage):
		return ExitDataErr
	case errors.Is(err, models.ErrInvalidEntity),
		errors.Is(err, models.ErrIllegalTransition):
		return ExitValidation
	case errors.Is(err, models.ErrTransitionFailed):
		return ExitUnavailable
	default:
		return ExitError
	}
}
