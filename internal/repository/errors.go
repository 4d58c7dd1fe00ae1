package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrCorruptRow is returned when a stored row holds a value outside the
	// domain, such as an unknown booking status or user role.
	ErrCorruptRow = errors.New("stored row holds an unknown value")
)
