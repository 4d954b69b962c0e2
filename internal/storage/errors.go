package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrKeyExists    = errors.New("object already exists")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds maximum size")
	ErrAccessDenied = errors.New("access denied")
)

// StorageError records which backend and operation failed for which key.
// Match causes with errors.Is against the sentinels above, or use the
// Is* helpers.
type StorageError struct {
	Backend string // ProviderLocal or ProviderR2
	Op      string // "put", "stat", "delete"
	Key     string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsKeyExists(err error) bool    { return errors.Is(err, ErrKeyExists) }
func IsInvalidKey(err error) bool   { return errors.Is(err, ErrInvalidKey) }
func IsTooLarge(err error) bool     { return errors.Is(err, ErrTooLarge) }
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }
