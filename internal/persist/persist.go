// Package persist holds the durable blob backends used by the favourites
// store. An Adapter stores one opaque blob per key; it knows nothing about
// what the blob contains.
package persist

import (
	"context"
	"errors"
)

// Adapter reads and writes whole blobs under a key. Read reports ok=false
// when nothing has been written under key yet.
type Adapter interface {
	Read(ctx context.Context, key string) (blob []byte, ok bool, err error)
	Write(ctx context.Context, key string, blob []byte) error
}

// ErrEmptyKey is returned for an empty storage key.
var ErrEmptyKey = errors.New("persist: empty key")
