// Package store holds the user's favourite contacts.
//
// A Store starts empty and unusable; Rehydrate loads the last persisted
// collection and makes it Ready. Every Add and Remove after that commits to
// memory first and then hands a full snapshot to a background writer. The
// in-memory collection is authoritative for the running process: a failed
// write is reported but never undone.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jeanpaul/favourites/internal/enrich"
	"github.com/jeanpaul/favourites/internal/persist"
	"github.com/jeanpaul/favourites/internal/schema"
	"github.com/jeanpaul/favourites/internal/types"
)

// DefaultKey is the storage key the collection is persisted under.
const DefaultKey = "favourites"

// Candidate is a contact the user wants to favourite.
type Candidate struct {
	ID      string
	Name    string
	Message string
}

type EventKind int

const (
	EventRehydrated EventKind = iota
	EventAdded
	EventRemoved
	EventPersistFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRehydrated:
		return "rehydrated"
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventPersistFailed:
		return "persist_failed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to subscribers after a committed change, after
// rehydration, and when persistence fails.
type Event struct {
	Kind      EventKind
	ID        string
	Favourite types.Favourite // EventAdded
	Count     int             // collection size after the event
	Err       error           // EventPersistFailed
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithEnrichTimeout bounds each gender lookup.
func WithEnrichTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.enrichTimeout = d
		}
	}
}

// WithWriteTimeout bounds each persistence write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type Store struct {
	adapter       persist.Adapter
	enricher      enrich.Service
	key           string
	log           *slog.Logger
	enrichTimeout time.Duration
	writeTimeout  time.Duration

	mu    sync.RWMutex
	ready bool
	list  []types.Favourite
	index map[string]struct{}

	// notifyMu is held across a mutation and its event delivery so
	// subscribers see events in commit order. Lock order: notifyMu, then mu.
	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]func(Event)
	nextSub  int

	w *writer
}

func New(adapter persist.Adapter, enricher enrich.Service, opts ...Option) *Store {
	s := &Store{
		adapter:       adapter,
		enricher:      enricher,
		key:           DefaultKey,
		log:           slog.Default(),
		enrichTimeout: enrich.DefaultTimeout,
		writeTimeout:  5 * time.Second,
		list:          []types.Favourite{},
		index:         map[string]struct{}{},
		subs:          map[int]func(Event){},
	}
	for _, o := range opts {
		o(s)
	}
	s.w = newWriter(adapter, s.key, s.writeTimeout, s.persistFailed)
	return s
}

// Rehydrate loads the persisted collection and moves the store to Ready. A
// missing blob means first run. A blob that cannot be read or decoded is
// reported and replaced by an empty collection; start-up never fails on it.
func (s *Store) Rehydrate(ctx context.Context) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return ErrAlreadyReady
	}

	list, perr := s.load(ctx)
	s.list = list
	s.index = make(map[string]struct{}, len(list))
	for _, f := range list {
		s.index[f.ID] = struct{}{}
	}
	s.ready = true
	s.w.start()
	s.mu.Unlock()

	if perr != nil {
		s.log.Error("store: rehydrate failed, starting empty", "key", s.key, "err", perr)
		s.emit(Event{Kind: EventPersistFailed, Err: perr})
	} else {
		s.log.Info("store: rehydrated", "key", s.key, "count", len(list))
	}
	s.emit(Event{Kind: EventRehydrated, Count: len(list)})
	return nil
}

func (s *Store) load(ctx context.Context) ([]types.Favourite, error) {
	empty := []types.Favourite{}
	blob, ok, err := s.adapter.Read(ctx, s.key)
	if err != nil {
		return empty, &PersistenceError{Op: "read", Key: s.key, Err: err}
	}
	if !ok {
		return empty, nil
	}
	list, err := Decode(blob)
	if err != nil {
		return empty, &PersistenceError{Op: "decode", Key: s.key, Err: err}
	}
	return list, nil
}

// Encode serializes a collection the way it is persisted: a JSON array in
// insertion order. A nil collection encodes as an empty array.
func Encode(list []types.Favourite) ([]byte, error) {
	if list == nil {
		list = []types.Favourite{}
	}
	return json.Marshal(list)
}

// Decode parses a persisted blob. Unknown gender labels become unknown and a
// repeated id keeps its first record.
func Decode(blob []byte) ([]types.Favourite, error) {
	if err := schema.ValidateFavourites(blob); err != nil {
		return nil, err
	}
	var raw []types.Favourite
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Favourite, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, f := range raw {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		f.Gender = types.ParseGender(string(f.Gender))
		out = append(out, f)
	}
	return out, nil
}

// Add validates c, resolves a gender for the first token of its name and
// commits the new favourite. Enrichment failure never blocks the add; the
// record just gets GenderUnknown. If ctx is cancelled before the commit the
// result is discarded and ErrAddCancelled returned. The returned favourite
// reflects the in-memory commit; persistence happens in the background.
func (s *Store) Add(ctx context.Context, c Candidate) (types.Favourite, error) {
	if !s.Ready() {
		return types.Favourite{}, ErrNotReady
	}
	if err := ValidateMessage(c.Message); err != nil {
		return types.Favourite{}, err
	}
	if c.ID == "" {
		return types.Favourite{}, &ValidationError{Field: "id", Reason: "id is required"}
	}
	if s.IsFavourite(c.ID) {
		return types.Favourite{}, fmt.Errorf("%w: %s", ErrDuplicateFavourite, c.ID)
	}

	out := enrich.Resolve(ctx, s.enricher, enrich.FirstName(c.Name), s.enrichTimeout)
	if out.Degraded {
		s.log.Warn("store: enrichment degraded, using unknown", "id", c.ID, "err", out.Err)
	}
	fav := types.Favourite{ID: c.ID, Name: c.Name, Message: c.Message, Gender: out.Gender}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		s.log.Debug("store: discarding add after cancel", "id", c.ID)
		return types.Favourite{}, fmt.Errorf("%w: %v", ErrAddCancelled, err)
	}
	if _, dup := s.index[c.ID]; dup {
		s.mu.Unlock()
		return types.Favourite{}, fmt.Errorf("%w: %s", ErrDuplicateFavourite, c.ID)
	}
	s.list = append(s.list, fav)
	s.index[c.ID] = struct{}{}
	count := len(s.list)
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info("store: favourite added", "id", fav.ID, "gender", fav.Gender)
	s.emit(Event{Kind: EventAdded, ID: fav.ID, Favourite: fav, Count: count})
	return fav, nil
}

// Remove deletes the favourite with id. Removing an id that is not a
// favourite does nothing.
func (s *Store) Remove(id string) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	next := make([]types.Favourite, 0, len(s.list)-1)
	for _, f := range s.list {
		if f.ID != id {
			next = append(next, f)
		}
	}
	s.list = next
	delete(s.index, id)
	count := len(s.list)
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info("store: favourite removed", "id", id)
	s.emit(Event{Kind: EventRemoved, ID: id, Count: count})
	return nil
}

// persistLocked snapshots the collection for the writer. Caller holds mu,
// which keeps snapshots in commit order.
func (s *Store) persistLocked() {
	blob, err := Encode(s.list)
	if err != nil {
		s.log.Error("store: encode failed", "err", err)
		return
	}
	if !s.w.enqueue(blob) {
		s.log.Warn("store: closed, change not persisted", "key", s.key)
	}
}

func (s *Store) persistFailed(err error) {
	s.log.Error("store: persist failed", "key", s.key, "err", err)
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.emit(Event{Kind: EventPersistFailed, Err: err})
}

func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) IsFavourite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *Store) Get(id string) (types.Favourite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.index[id]; !ok {
		return types.Favourite{}, false
	}
	for _, f := range s.list {
		if f.ID == id {
			return f, true
		}
	}
	return types.Favourite{}, false
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []types.Favourite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Favourite, len(s.list))
	copy(out, s.list)
	return out
}

// IDs returns the set of favourite ids.
func (s *Store) IDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.index))
	for id := range s.index {
		out[id] = struct{}{}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Subscribe registers fn for store events and returns a function that
// removes it. fn runs on the goroutine that made the change (the writer
// goroutine for EventPersistFailed), after the change is visible to readers.
// It may read the store but must not call Add, Remove, Rehydrate or Flush.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// emit runs subscribers in registration order. Caller holds notifyMu.
func (s *Store) emit(e Event) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Flush waits for every change made before the call to reach the adapter
// (or fail to).
func (s *Store) Flush(ctx context.Context) error {
	return s.w.flush(ctx)
}

// Close flushes pending writes and stops the writer. Changes made after
// Close stay in memory only.
func (s *Store) Close(ctx context.Context) error {
	return s.w.close(ctx)
}
