package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrWorkspaceRequired indicates a request arrived without tenant scope.
	ErrWorkspaceRequired = errors.New("workspace id required")
	// ErrInvalidAPIKey indicates API key authentication failure.
	ErrInvalidAPIKey = errors.New("invalid api key")
)
