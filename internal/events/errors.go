package events

import (
	"errors"
	"os"
	"syscall"
)

// ErrorCode represents daemon-related error types.
type ErrorCode int

const (
	ErrSocketNotFound ErrorCode = iota
	ErrSocketPermission
	ErrDaemonNotRunning
	ErrConnectionRefused
)

// DaemonError is a daemon connection failure with a hint for the user.
type DaemonError struct {
	Code    ErrorCode
	Message string
	Hint    string
	Err     error
}

// Error implements the error interface.
func (e *DaemonError) Error() string {
	if e.Hint != "" {
		return e.Message + ". " + e.Hint
	}
	return e.Message
}

// Unwrap returns the underlying dial error
func (e *DaemonError) Unwrap() error {
	return e.Err
}

// ClassifyDaemonError maps dial errors to a DaemonError.
func ClassifyDaemonError(err error) *DaemonError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return &DaemonError{
			Code:    ErrSocketNotFound,
			Message: "Socket file not found",
			Hint:    "Start the daemon: esteira daemon",
			Err:     err,
		}
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		return &DaemonError{
			Code:    ErrSocketPermission,
			Message: "Permission denied",
			Hint:    "Check permissions of the data directory (chmod 700)",
			Err:     err,
		}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &DaemonError{
			Code:    ErrConnectionRefused,
			Message: "Connection refused",
			Hint:    "The daemon may have crashed. Restart it: esteira daemon",
			Err:     err,
		}
	}

	return &DaemonError{
		Code:    ErrDaemonNotRunning,
		Message: "Daemon not running",
		Hint:    "Start the daemon: esteira daemon",
		Err:     err,
	}
}
