package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateFavourite is returned by Add when the id is already a favourite.
	ErrDuplicateFavourite = errors.New("already a favourite")
	// ErrNotReady is returned for mutations issued before Rehydrate.
	ErrNotReady = errors.New("store not rehydrated")
	// ErrAlreadyReady is returned by a second Rehydrate call.
	ErrAlreadyReady = errors.New("store already rehydrated")
	// ErrAddCancelled is returned when the add was dismissed while its
	// enrichment was in flight; the store is left untouched.
	ErrAddCancelled = errors.New("add cancelled")
)

// ValidationError is a rejected favourite candidate.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError is a failed read or write of the durable blob. It never
// undoes an in-memory change.
type PersistenceError struct {
	Op  string // "read", "decode" or "write"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
