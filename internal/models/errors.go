package models

import "errors"

// Error kinds shared by repositories, services and handlers. Wrap them with
// fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrStorage         = errors.New("storage error")
	ErrUnavailable     = errors.New("service unavailable")
)
