package site

import "errors"

var (
	// ErrForbidden signals a viewer lacking the rights for an operation.
	ErrForbidden    = errors.New("forbidden")
	ErrReservedPath = errors.New("reserved path")
	ErrNoLayout     = errors.New("layout not found")
)
