// Package errors holds the sentinel errors shared by the storage
// repositories and mapped to HTTP statuses in the API layer.
package errors

import "errors"

var (
	// ErrNotFound indicates the requested entity is not persisted.
	ErrNotFound = errors.New("entity not found")

	// ErrEmptyKey rejects storage operations addressed by an empty key.
	ErrEmptyKey = errors.New("empty storage key")

	// ErrInvalidData indicates a payload that does not decode into the
	// expected type.
	ErrInvalidData = errors.New("invalid data type")
)
