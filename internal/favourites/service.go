// Package favourites is the API the user interface talks to: it joins the
// contact list with the favourites store and runs the add workflow.
package favourites

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jeanpaul/favourites/internal/contact"
	"github.com/jeanpaul/favourites/internal/projection"
	"github.com/jeanpaul/favourites/internal/store"
	"github.com/jeanpaul/favourites/internal/types"
)

// Store is the part of *store.Store the service needs.
type Store interface {
	Rehydrate(ctx context.Context) error
	Add(ctx context.Context, c store.Candidate) (types.Favourite, error)
	Remove(id string) error
	IsFavourite(id string) bool
	Get(id string) (types.Favourite, bool)
	IDs() map[string]struct{}
}

// Result is the pass/fail outcome shown to the user. Err keeps the precise
// failure for logs.
type Result struct {
	OK        bool
	Favourite types.Favourite
	Err       error
}

type Service struct {
	store    Store
	contacts *contact.Loader
	log      *slog.Logger

	mu   sync.RWMutex
	list []types.Contact

	flowMu sync.Mutex
	gen    uint64
	flow   *AddFlow
}

func New(st Store, contacts *contact.Loader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, contacts: contacts, log: logger}
}

// Start rehydrates the store and loads contacts. It must complete before any
// other call.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.Rehydrate(ctx); err != nil && !errors.Is(err, store.ErrAlreadyReady) {
		return err
	}
	s.RefreshContacts(ctx)
	return nil
}

// RefreshContacts reloads the contact list. A failing source yields an
// empty list.
func (s *Service) RefreshContacts(ctx context.Context) []types.Contact {
	var list []types.Contact
	if s.contacts != nil {
		list = s.contacts.Load(ctx)
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
	return list
}

// Contacts returns the last loaded contact list.
func (s *Service) Contacts() []types.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list
}

// ContactsErr is the reason the contact list is empty, if it failed to load.
func (s *Service) ContactsErr() error {
	if s.contacts == nil {
		return nil
	}
	return s.contacts.Err()
}

// ListFiltered is the contact list, or only favourited contacts when
// onlyFavourites is set, in contact order.
func (s *Service) ListFiltered(onlyFavourites bool) []types.Contact {
	return projection.Filter(s.Contacts(), s.store.IDs(), onlyFavourites)
}

func (s *Service) IsFavourite(id string) bool {
	return s.store.IsFavourite(id)
}

func (s *Service) Favourite(id string) (types.Favourite, bool) {
	return s.store.Get(id)
}

// AddFavourite favourites c with message. The favourite's name is c's full
// name at this moment.
func (s *Service) AddFavourite(ctx context.Context, c types.Contact, message string) Result {
	fav, err := s.store.Add(ctx, store.Candidate{ID: c.ID, Name: c.FullName(), Message: message})
	if err != nil {
		s.logFailure("add", c.ID, err)
		return Result{Err: err}
	}
	return Result{OK: true, Favourite: fav}
}

// RemoveFavourite unfavourites id. Removing a contact that is not a
// favourite succeeds.
func (s *Service) RemoveFavourite(id string) Result {
	if err := s.store.Remove(id); err != nil {
		s.logFailure("remove", id, err)
		return Result{Err: err}
	}
	return Result{OK: true}
}

func (s *Service) logFailure(op, id string, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		s.log.Info("favourites: rejected", "op", op, "id", id, "field", ve.Field, "reason", ve.Reason)
	case errors.Is(err, store.ErrDuplicateFavourite):
		s.log.Info("favourites: duplicate", "op", op, "id", id)
	case errors.Is(err, store.ErrAddCancelled):
		s.log.Debug("favourites: add dismissed", "id", id)
	default:
		s.log.Error("favourites: failed", "op", op, "id", id, "err", err)
	}
}
