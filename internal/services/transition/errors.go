package transition

import "errors"

// Transition request validation errors
var (
	ErrInvalidEntityID = errors.New("invalid entity ID")
	ErrInvalidTenantID = errors.New("invalid tenant ID")
	ErrNilPersister    = errors.New("persister is required")
)
