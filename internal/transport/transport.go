// Package transport wraps outbound provider HTTP calls with a bounded
// retry-on-rate-limit policy. Everything except HTTP 429 is terminal on the
// first attempt: network errors, other statuses, and malformed bodies are
// the caller's problem, and each clip's request stands alone (no circuit
// breaker).
package transport

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 2 * time.Second
	defaultTimeout     = 90 * time.Second
	maxJitter          = time.Second
)

// Retrying is an http.RoundTripper that retries rate-limited requests with
// exponential backoff plus jitter. Requests must be replayable
// (GetBody set, which http.NewRequest does for byte readers).
type Retrying struct {
	Base http.RoundTripper

	// MaxAttempts is the total attempt budget including the first try.
	MaxAttempts int

	// BackoffBase scales the exponential wait: base*2^attempt + jitter.
	BackoffBase time.Duration

	// Hooks for tests.
	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func (t *Retrying) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Retrying) maxAttempts() int {
	if t.MaxAttempts > 0 {
		return t.MaxAttempts
	}
	return defaultMaxAttempts
}

func (t *Retrying) backoff(attempt int) time.Duration {
	base := t.BackoffBase
	if base <= 0 {
		base = defaultBackoffBase
	}
	wait := base * (1 << attempt)
	if t.jitter != nil {
		return wait + t.jitter()
	}
	return wait + time.Duration(rand.Int63n(int64(maxJitter)))
}

func (t *Retrying) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	max := t.maxAttempts()
	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 {
			var err error
			if r, err = rewind(req); err != nil {
				return nil, err
			}
		}

		resp, err := t.base().RoundTrip(r)
		if err != nil {
			// Network failures are terminal; only rate limits retry.
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt == max-1 {
			return resp, nil
		}

		// Drop the rate-limit response before waiting for the next slot.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := t.wait(req.Context(), t.backoff(attempt)); err != nil {
			return nil, err
		}
	}
}

func (t *Retrying) wait(ctx context.Context, d time.Duration) error {
	if t.sleep != nil {
		return t.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rewind clones the request with a fresh body for the next attempt.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

// NewClient builds the HTTP client used for provider calls: retrying
// transport plus a hard per-request deadline.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &Retrying{},
		Timeout:   timeout,
	}
}
