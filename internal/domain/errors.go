package domain

import "errors"

// Store adapters return these; callers classify with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
