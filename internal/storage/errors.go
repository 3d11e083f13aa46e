package storage

import "errors"

// Common storage errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrInvalidRecord = errors.New("invalid record")
)
