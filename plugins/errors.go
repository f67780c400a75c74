package plugins

import "errors"

var (
	ErrUnknownPlugin    = errors.New("unknown plugin type")
	ErrDuplicatePlugin  = errors.New("plugin type already registered")
	ErrUnknownProcessor = errors.New("unknown processor")
)
