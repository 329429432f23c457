package enrich

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jeanpaul/favourites/internal/types"
)

// RetryService wraps a Service with exponential backoff retry logic.
type RetryService struct {
	inner      Service
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// WithRetry retries svc up to maxRetries extra times. maxRetries < 0 means
// the default of 2; 0 disables retries.
func WithRetry(svc Service, maxRetries int) *RetryService {
	if maxRetries < 0 {
		maxRetries = 2
	}
	return &RetryService{
		inner:      svc,
		maxRetries: maxRetries,
		baseDelay:  250 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

func (r *RetryService) ResolveGender(ctx context.Context, name string) (types.Gender, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		g, err := r.inner.ResolveGender(ctx, name)
		if err == nil {
			return g, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == r.maxRetries {
			break
		}
		if err := r.backoff(ctx, attempt); err != nil {
			return types.GenderUnknown, lastErr
		}
	}
	if r.maxRetries == 0 {
		return types.GenderUnknown, lastErr
	}
	return types.GenderUnknown, fmt.Errorf("after %d retries: %w", r.maxRetries, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMalformed) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "timeout", "EOF", "reset by peer", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (r *RetryService) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(r.baseDelay) * math.Pow(2, float64(attempt)))
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
