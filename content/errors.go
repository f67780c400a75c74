package content

import "errors"

var (
	// ErrPlaceholderNotFound signals a slot that the page layout does not declare.
	ErrPlaceholderNotFound = errors.New("placeholder not found")
	ErrPageNotFound        = errors.New("page not found")
	ErrStaticNotFound      = errors.New("static placeholder not found")
	ErrInvalidPath         = errors.New("invalid path")
)
