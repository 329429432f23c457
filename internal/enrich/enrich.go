// Package enrich resolves a predicted gender for a contact name.
//
// Service implementations report failures as errors; Resolve is the boundary
// that turns any failure into GenderUnknown so callers never see one.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jeanpaul/favourites/internal/types"
)

// Service predicts a gender label for a first name. One round trip, no
// retries; wrap with WithRetry for those.
type Service interface {
	ResolveGender(ctx context.Context, name string) (types.Gender, error)
}

// ErrDegraded marks an outcome whose label fell back to unknown because
// resolution failed.
var ErrDegraded = errors.New("enrichment degraded")

// DefaultTimeout bounds a single Resolve call when the caller passes 0.
const DefaultTimeout = 5 * time.Second

// Outcome is the result of Resolve. Err is set (wrapping ErrDegraded) when
// Degraded is true.
type Outcome struct {
	Gender   types.Gender
	Degraded bool
	Err      error
}

// Resolve calls svc under timeout and never fails: transport errors,
// malformed responses, timeouts and cancellation all yield GenderUnknown
// with Degraded set.
func Resolve(ctx context.Context, svc Service, name string, timeout time.Duration) Outcome {
	name = strings.TrimSpace(name)
	if name == "" || svc == nil {
		return Outcome{Gender: types.GenderUnknown}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, err := svc.ResolveGender(ctx, name)
	if err != nil {
		return Outcome{Gender: types.GenderUnknown, Degraded: true, Err: errors.Join(ErrDegraded, err)}
	}
	return Outcome{Gender: types.ParseGender(string(g))}
}

// FirstName returns the first whitespace-separated token of a display name.
func FirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Func adapts a plain function to Service.
type Func func(ctx context.Context, name string) (types.Gender, error)

func (f Func) ResolveGender(ctx context.Context, name string) (types.Gender, error) {
	return f(ctx, name)
}
