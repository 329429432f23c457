package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/favourites/internal/enrich"
	"github.com/jeanpaul/favourites/internal/persist"
	"github.com/jeanpaul/favourites/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingAdapter wraps an in-memory adapter and can fail or slow writes.
type recordingAdapter struct {
	*persist.Memory
	failWrites atomic.Bool
	failReads  atomic.Bool
	writeDelay time.Duration
	writes     atomic.Int32
	inflight   atomic.Int32
	overlapped atomic.Bool
}

func newRecordingAdapter() *recordingAdapter {
	return &recordingAdapter{Memory: persist.NewMemory()}
}

func (a *recordingAdapter) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if a.failReads.Load() {
		return nil, false, errors.New("disk on fire")
	}
	return a.Memory.Read(ctx, key)
}

func (a *recordingAdapter) Write(ctx context.Context, key string, blob []byte) error {
	if a.inflight.Add(1) > 1 {
		a.overlapped.Store(true)
	}
	defer a.inflight.Add(-1)
	a.writes.Add(1)
	if a.writeDelay > 0 {
		time.Sleep(a.writeDelay)
	}
	if a.failWrites.Load() {
		return errors.New("disk full")
	}
	return a.Memory.Write(ctx, key, blob)
}

// countingEnricher answers from a fixed table and counts calls.
type countingEnricher struct {
	labels map[string]types.Gender
	calls  atomic.Int32
}

func (e *countingEnricher) ResolveGender(ctx context.Context, name string) (types.Gender, error) {
	e.calls.Add(1)
	if g, ok := e.labels[name]; ok {
		return g, nil
	}
	return types.GenderUnknown, nil
}

func newReadyStore(t *testing.T, a persist.Adapter, e enrich.Service) *Store {
	t.Helper()
	s := New(a, e, WithLogger(quiet))
	require.NoError(t, s.Rehydrate(context.Background()))
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func cand(id, name, msg string) Candidate {
	return Candidate{ID: id, Name: name, Message: msg}
}

func TestAddResolvesGenderFromFirstName(t *testing.T) {
	e := &countingEnricher{labels: map[string]types.Gender{"Ann": types.GenderFemale}}
	s := newReadyStore(t, persist.NewMemory(), e)

	fav, err := s.Add(context.Background(), cand("1", "Ann Lee", "hello"))
	require.NoError(t, err)
	assert.Equal(t, types.Favourite{ID: "1", Name: "Ann Lee", Message: "hello", Gender: types.GenderFemale}, fav)

	got, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, fav, got)
	assert.True(t, s.IsFavourite("1"))
	assert.False(t, s.IsFavourite("2"))
}

func TestAddDuplicateFails(t *testing.T) {
	e := &countingEnricher{}
	s := newReadyStore(t, persist.NewMemory(), e)
	ctx := context.Background()

	_, err := s.Add(ctx, cand("1", "Ann Lee", "first"))
	require.NoError(t, err)
	before := s.List()

	_, err = s.Add(ctx, cand("1", "Ann Lee", "second"))
	assert.ErrorIs(t, err, ErrDuplicateFavourite)
	assert.Equal(t, before, s.List())
	assert.Equal(t, int32(1), e.calls.Load(), "duplicate rejected before enrichment")
}

func TestConcurrentAddSameIDCommitsOnce(t *testing.T) {
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)
	e := enrich.Func(func(ctx context.Context, name string) (types.Gender, error) {
		entered.Done()
		<-release
		return types.GenderMale, nil
	})
	s := newReadyStore(t, persist.NewMemory(), e)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			_, err := s.Add(context.Background(), cand("7", "Sam Roe", fmt.Sprintf("msg %d", i)))
			errs <- err
		}(i)
	}
	entered.Wait()
	close(release)

	var ok, dup int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateFavourite):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Equal(t, 1, s.Len())
}

func TestConcurrentAddsDifferentIDs(t *testing.T) {
	e := enrich.Func(func(ctx context.Context, name string) (types.Gender, error) {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
		return types.GenderFemale, nil
	})
	s := newReadyStore(t, persist.NewMemory(), e)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Add(context.Background(), cand(fmt.Sprint(i), "Ann", "hi"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
	assert.Len(t, s.IDs(), 50)
}

func TestRemoveIsIdempotent(t *testing.T) {
	a := newRecordingAdapter()
	s := newReadyStore(t, a, &countingEnricher{})
	ctx := context.Background()

	_, err := s.Add(ctx, cand("1", "Ann Lee", "hello"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))
	before := s.List()
	writes := a.writes.Load()

	var events int
	s.Subscribe(func(Event) { events++ })

	require.NoError(t, s.Remove("missing"))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, before, s.List())
	assert.Equal(t, writes, a.writes.Load(), "no-op remove does not write")
	assert.Zero(t, events)

	require.NoError(t, s.Remove("1"))
	require.NoError(t, s.Remove("1"))
	assert.Empty(t, s.List())
	assert.Equal(t, 1, events)
}

func TestRemoveKeepsInsertionOrder(t *testing.T) {
	s := newReadyStore(t, persist.NewMemory(), &countingEnricher{})
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b", "d"} {
		_, err := s.Add(ctx, cand(id, "X", "m"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove("a"))

	var ids []string
	for _, f := range s.List() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"c", "b", "d"}, ids)
}

func TestEnrichmentFailureDoesNotBlockAdd(t *testing.T) {
	e := enrich.Func(func(ctx context.Context, name string) (types.Gender, error) {
		return "", errors.New("network unreachable")
	})
	s := newReadyStore(t, persist.NewMemory(), e)

	fav, err := s.Add(context.Background(), cand("1", "Ann Lee", "hello"))
	require.NoError(t, err)
	assert.Equal(t, types.GenderUnknown, fav.Gender)
	assert.True(t, s.IsFavourite("1"))
}

func TestEnrichmentHangIsBounded(t *testing.T) {
	e := enrich.Func(func(ctx context.Context, name string) (types.Gender, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := New(persist.NewMemory(), e, WithLogger(quiet), WithEnrichTimeout(20*time.Millisecond))
	require.NoError(t, s.Rehydrate(context.Background()))
	defer s.Close(context.Background())

	fav, err := s.Add(context.Background(), cand("1", "Ann Lee", "hello"))
	require.NoError(t, err)
	assert.Equal(t, types.GenderUnknown, fav.Gender)
}

func TestValidationBoundary(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantErr bool
	}{
		{"exactly 200", strings.Repeat("a1 ", 66) + "ab", false},
		{"201", strings.Repeat("a", 201), true},
		{"empty", "", true},
		{"punctuation", "hello!", true},
		{"underscore", "a_b", true},
		{"unicode letter", "café", true},
		{"newline", "a\nb", true},
		{"letters digits spaces", "Call me 2morrow", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &countingEnricher{}
			s := newReadyStore(t, persist.NewMemory(), e)

			_, err := s.Add(context.Background(), cand("1", "Ann Lee", tt.msg))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "message", ve.Field)
			assert.Zero(t, e.calls.Load(), "enrichment must not run for a rejected add")
			assert.Zero(t, s.Len())
		})
	}
	assert.Len(t, strings.Repeat("a1 ", 66)+"ab", 200)
}

func TestAddRequiresID(t *testing.T) {
	s := newReadyStore(t, persist.NewMemory(), &countingEnricher{})
	_, err := s.Add(context.Background(), cand("", "Ann", "hi"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "id", ve.Field)
}

func TestCancelledAddIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	e := enrich.Func(func(c context.Context, name string) (types.Gender, error) {
		close(started)
		<-c.Done()
		return "", c.Err()
	})
	s := newReadyStore(t, persist.NewMemory(), e)
	var events atomic.Int32
	s.Subscribe(func(Event) { events.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := s.Add(ctx, cand("1", "Ann Lee", "hello"))
		done <- err
	}()
	<-started
	cancel()

	err := <-done
	assert.ErrorIs(t, err, ErrAddCancelled)
	assert.False(t, s.IsFavourite("1"))
	assert.Zero(t, events.Load())
}

func TestCancelAfterSuccessfulEnrichmentStillDiscards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := enrich.Func(func(c context.Context, name string) (types.Gender, error) {
		cancel() // dismissed while the answer was on its way back
		return types.GenderFemale, nil
	})
	s := newReadyStore(t, persist.NewMemory(), e)

	_, err := s.Add(ctx, cand("1", "Ann Lee", "hello"))
	assert.ErrorIs(t, err, ErrAddCancelled)
	assert.Zero(t, s.Len())
}

func TestLifecycle(t *testing.T) {
	s := New(persist.NewMemory(), &countingEnricher{}, WithLogger(quiet))
	ctx := context.Background()

	_, err := s.Add(ctx, cand("1", "Ann", "hi"))
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, s.Remove("1"), ErrNotReady)
	assert.False(t, s.Ready())

	require.NoError(t, s.Rehydrate(ctx))
	assert.True(t, s.Ready())
	assert.ErrorIs(t, s.Rehydrate(ctx), ErrAlreadyReady)
	require.NoError(t, s.Close(ctx))
}

func TestRehydrateFirstRunIsEmpty(t *testing.T) {
	s := newReadyStore(t, persist.NewMemory(), &countingEnricher{})
	assert.Empty(t, s.List())
	assert.NotNil(t, s.List())
}

func TestRehydrateFallsBackToEmpty(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", `{{{`},
		{"wrong shape", `{"favourites":{"list":[]}}`},
		{"record without id", `[{"name":"Ann"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := persist.NewMemory()
			require.NoError(t, a.Write(context.Background(), DefaultKey, []byte(tt.blob)))

			s := New(a, &countingEnricher{}, WithLogger(quiet))
			var failure error
			s.Subscribe(func(e Event) {
				if e.Kind == EventPersistFailed {
					failure = e.Err
				}
			})
			require.NoError(t, s.Rehydrate(context.Background()))
			defer s.Close(context.Background())

			assert.True(t, s.Ready())
			assert.Empty(t, s.List())
			var pe *PersistenceError
			require.ErrorAs(t, failure, &pe)
			assert.Equal(t, "decode", pe.Op)
		})
	}
}

func TestRehydrateReadErrorFallsBackToEmpty(t *testing.T) {
	a := newRecordingAdapter()
	a.failReads.Store(true)
	s := newReadyStore(t, a, &countingEnricher{})
	assert.Empty(t, s.List())

	_, err := s.Add(context.Background(), cand("1", "Ann", "still works"))
	assert.NoError(t, err)
}

func TestRehydrateNormalizesBlob(t *testing.T) {
	a := persist.NewMemory()
	blob := `[
		{"id":"1","name":"Ann Lee","message":"hi","gender":"female"},
		{"id":"2","name":"Sam Roe","message":"yo","gender":"robot","nickname":"S"},
		{"id":"1","name":"Ann Again","message":"dup","gender":"male"}
	]`
	require.NoError(t, a.Write(context.Background(), DefaultKey, []byte(blob)))

	s := newReadyStore(t, a, &countingEnricher{})
	assert.Equal(t, []types.Favourite{
		{ID: "1", Name: "Ann Lee", Message: "hi", Gender: types.GenderFemale},
		{ID: "2", Name: "Sam Roe", Message: "yo", Gender: types.GenderUnknown},
	}, s.List())
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	labels := []types.Gender{types.GenderMale, types.GenderFemale, types.GenderUnknown}

	for round := 0; round < 20; round++ {
		g := labels[round%len(labels)]
		s := newReadyStore(t, persist.NewMemory(), enrich.Func(func(context.Context, string) (types.Gender, error) {
			return g, nil
		}))
		for op := 0; op < rng.Intn(30); op++ {
			id := fmt.Sprint(rng.Intn(8))
			if rng.Intn(3) == 0 {
				require.NoError(t, s.Remove(id))
			} else {
				s.Add(context.Background(), cand(id, "Name "+id, "msg "+id))
			}
		}

		want := s.List()
		blob, err := Encode(want)
		require.NoError(t, err)
		got, err := Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	blob, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(blob))

	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestRestartSeesLatestWrite(t *testing.T) {
	a := persist.NewMemory()
	ctx := context.Background()
	e := &countingEnricher{labels: map[string]types.Gender{"Ann": types.GenderFemale}}

	s := New(a, e, WithLogger(quiet))
	require.NoError(t, s.Rehydrate(ctx))
	_, err := s.Add(ctx, cand("1", "Ann Lee", "hello"))
	require.NoError(t, err)
	_, err = s.Add(ctx, cand("2", "Sam Roe", "yo"))
	require.NoError(t, err)
	require.NoError(t, s.Remove("1"))
	require.NoError(t, s.Close(ctx))

	restarted := newReadyStore(t, a, e)
	assert.Equal(t, []types.Favourite{
		{ID: "2", Name: "Sam Roe", Message: "yo", Gender: types.GenderUnknown},
	}, restarted.List())
}

func TestPersistFailureKeepsCommit(t *testing.T) {
	a := newRecordingAdapter()
	a.failWrites.Store(true)
	s := newReadyStore(t, a, &countingEnricher{})
	ctx := context.Background()

	failures := make(chan error, 8)
	s.Subscribe(func(e Event) {
		if e.Kind == EventPersistFailed {
			failures <- e.Err
		}
	})

	_, err := s.Add(ctx, cand("1", "Ann Lee", "hello"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))
	assert.True(t, s.IsFavourite("1"), "in-memory commit survives write failure")

	select {
	case err := <-failures:
		var pe *PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "write", pe.Op)
	case <-time.After(time.Second):
		t.Fatal("no persist failure event")
	}

	a.failWrites.Store(false)
	_, err = s.Add(ctx, cand("2", "Sam Roe", "yo"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	blob, ok, err := a.Memory.Read(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Len(t, got, 2, "next successful write carries the full collection")
}

func TestWritesAreSerializedAndConverge(t *testing.T) {
	a := newRecordingAdapter()
	a.writeDelay = 2 * time.Millisecond
	s := newReadyStore(t, a, &countingEnricher{})
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		_, err := s.Add(ctx, cand(fmt.Sprint(i), "X", "m"))
		require.NoError(t, err)
		if i%3 == 0 {
			require.NoError(t, s.Remove(fmt.Sprint(i)))
		}
	}
	require.NoError(t, s.Flush(ctx))

	assert.False(t, a.overlapped.Load(), "writes never overlap")
	assert.LessOrEqual(t, a.writes.Load(), int32(54), "superseded snapshots are skipped")

	blob, ok, err := a.Memory.Read(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, s.List(), got)
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	s := New(persist.NewMemory(), &countingEnricher{}, WithLogger(quiet))
	var got []string
	unsub := s.Subscribe(func(e Event) {
		got = append(got, e.Kind.String()+":"+e.ID)
	})

	ctx := context.Background()
	require.NoError(t, s.Rehydrate(ctx))
	defer s.Close(ctx)
	_, err := s.Add(ctx, cand("1", "Ann", "hi"))
	require.NoError(t, err)
	require.NoError(t, s.Remove("1"))
	unsub()
	_, err = s.Add(ctx, cand("2", "Sam", "hi"))
	require.NoError(t, err)

	assert.Equal(t, []string{"rehydrated:", "added:1", "removed:1"}, got)
}

func TestSubscriberCanReadStore(t *testing.T) {
	s := newReadyStore(t, persist.NewMemory(), &countingEnricher{})
	var seen bool
	s.Subscribe(func(e Event) {
		if e.Kind == EventAdded {
			seen = s.IsFavourite(e.ID)
		}
	})
	_, err := s.Add(context.Background(), cand("1", "Ann", "hi"))
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestChangesAfterCloseStayInMemory(t *testing.T) {
	a := newRecordingAdapter()
	s := New(a, &countingEnricher{}, WithLogger(quiet))
	ctx := context.Background()
	require.NoError(t, s.Rehydrate(ctx))
	require.NoError(t, s.Close(ctx))

	_, err := s.Add(ctx, cand("1", "Ann", "hi"))
	require.NoError(t, err)
	assert.True(t, s.IsFavourite("1"))
	require.NoError(t, s.Flush(ctx))
	assert.Zero(t, a.writes.Load())
}
