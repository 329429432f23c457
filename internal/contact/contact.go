// Package contact supplies the read-only contact list favourites are
// picked from.
package contact

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jeanpaul/favourites/internal/types"
)

var (
	// ErrPermissionDenied means access to the contact list was refused.
	ErrPermissionDenied = errors.New("contacts: permission denied")
	// ErrProvider covers any other failure of the underlying provider.
	ErrProvider = errors.New("contacts: provider error")
)

// Source lists contacts in a stable order.
type Source interface {
	ListContacts(ctx context.Context) ([]types.Contact, error)
}

// Loader turns Source failures into an empty contact list. Each kind of
// failure is logged once; a later success resets that.
type Loader struct {
	src Source
	log *slog.Logger

	mu       sync.Mutex
	reported map[error]bool
	lastErr  error
}

func NewLoader(src Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, log: logger, reported: map[error]bool{}}
}

// Load returns the current contacts, or nil if the source failed.
func (l *Loader) Load(ctx context.Context) []types.Contact {
	contacts, err := l.src.ListContacts(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lastErr = err
		kind := classify(err)
		if !l.reported[kind] {
			l.reported[kind] = true
			l.log.Warn("contacts: unavailable, showing none", "kind", kind.Error(), "err", err)
		}
		return nil
	}
	l.lastErr = nil
	clear(l.reported)
	return contacts
}

// Err is the failure from the most recent Load, if any.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func classify(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return ErrPermissionDenied
	}
	return ErrProvider
}

// Static is a fixed in-memory Source.
type Static []types.Contact

func (s Static) ListContacts(ctx context.Context) ([]types.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]types.Contact, len(s))
	copy(out, s)
	return out, nil
}

// Denied is a Source that always refuses access.
type Denied struct{}

func (Denied) ListContacts(context.Context) ([]types.Contact, error) {
	return nil, ErrPermissionDenied
}
