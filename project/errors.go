package project

import "errors"

var (
	// ErrDuplicate is returned when adding a named object whose name is
	// already taken within its collection.
	ErrDuplicate = errors.New("duplicate name")

	// ErrNotFound is returned when a named object is absent from its
	// collection.
	ErrNotFound = errors.New("not found")
)
