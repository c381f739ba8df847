package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("record already exists")
)
