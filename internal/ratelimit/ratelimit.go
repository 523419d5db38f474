// Package ratelimit tracks API rate limits reported in response headers
// and short-circuits requests while a limit is in effect.
package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/log"
)

// ErrRateLimited is returned when the API rate limit has been exceeded.
var ErrRateLimited = errors.New("rate limited")

// State tracks the rate limit for one API.
type State struct {
	mu        sync.RWMutex
	limited   bool
	resetAt   time.Time
	remaining int
	limit     int
}

// NewState returns a State that has not seen any response yet.
func NewState() *State {
	return &State{remaining: -1, limit: -1}
}

// IsLimited returns true while a limit is in effect.
func (s *State) IsLimited() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limited && time.Now().Before(s.resetAt)
}

// SetLimited marks the API as limited until resetAt.
func (s *State) SetLimited(limited bool, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limited = limited
	s.resetAt = resetAt
}

// Update records the values from a response.
func (s *State) Update(remaining, limit int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = remaining
	s.limit = limit
	s.resetAt = resetAt
	if remaining == 0 {
		s.limited = true
	}
}

// Status is a snapshot of a State.
type Status struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
	Limited   bool
}

// Known reports whether any response carried rate limit headers.
func (s Status) Known() bool {
	return s.Limit > 0
}

// Status returns the current snapshot.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Remaining: s.remaining,
		Limit:     s.limit,
		ResetAt:   s.resetAt,
		Limited:   s.limited && time.Now().Before(s.resetAt),
	}
}

// Transport wraps an http.RoundTripper and keeps State current.
type Transport struct {
	Base  http.RoundTripper
	State *State
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.State.IsLimited() {
		return nil, ErrRateLimited
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	remaining, limit, resetAt := ParseHeaders(resp.Header)
	if remaining >= 0 && limit > 0 {
		t.State.Update(remaining, limit, resetAt)
	}

	if remaining <= constants.RateLimitLowWatermark && remaining > 0 {
		log.Debug("rate limit low", "host", req.URL.Host, "remaining", remaining, "resets_at", resetAt.Format(time.RFC3339))
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		t.State.SetLimited(true, resetAt)
		_ = resp.Body.Close()
		return nil, ErrRateLimited
	}

	return resp, nil
}

// ParseHeaders extracts rate limit info from response headers.
// Missing values are reported as -1 / zero time.
func ParseHeaders(h http.Header) (remaining, limit int, resetAt time.Time) {
	remaining, limit = -1, -1

	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.Unix(n, 0)
		}
	}
	return remaining, limit, resetAt
}
