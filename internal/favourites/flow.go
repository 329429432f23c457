package favourites

import (
	"context"

	"github.com/google/uuid"

	"github.com/jeanpaul/favourites/internal/types"
)

// AddFlow is one open "add to favourites" dialog. Dismissing it with Cancel
// discards any enrichment still in flight so it can never commit later.
type AddFlow struct {
	ID      string
	Gen     uint64
	Contact types.Contact

	svc    *Service
	ctx    context.Context
	cancel context.CancelFunc
}

// BeginAdd opens an add flow for c. Any flow still open is cancelled first;
// only one dialog exists at a time.
func (s *Service) BeginAdd(c types.Contact) *AddFlow {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	if s.flow != nil {
		s.flow.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	f := &AddFlow{
		ID:      uuid.NewString(),
		Gen:     s.gen,
		Contact: c,
		svc:     s,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.flow = f
	s.log.Debug("favourites: add flow opened", "flow", f.ID, "gen", f.Gen, "id", c.ID)
	return f
}

// Current reports whether gen is the flow that is still open. UIs use it to
// drop results that arrive for a dialog the user already closed.
func (s *Service) Current(gen uint64) bool {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	return s.flow != nil && s.flow.Gen == gen
}

func (s *Service) closeFlow(f *AddFlow) {
	s.flowMu.Lock()
	if s.flow == f {
		s.flow = nil
	}
	s.flowMu.Unlock()
	f.cancel()
}

// Submit adds the flow's contact with message. On success the flow closes;
// on failure it stays open so the user can correct the message.
func (f *AddFlow) Submit(message string) Result {
	res := f.svc.AddFavourite(f.ctx, f.Contact, message)
	if res.OK {
		f.svc.closeFlow(f)
	}
	return res
}

// Cancel dismisses the flow. Safe to call more than once.
func (f *AddFlow) Cancel() {
	f.svc.log.Debug("favourites: add flow cancelled", "flow", f.ID, "gen", f.Gen)
	f.svc.closeFlow(f)
}

// Done is closed once the flow is cancelled or has succeeded.
func (f *AddFlow) Done() <-chan struct{} {
	return f.ctx.Done()
}
