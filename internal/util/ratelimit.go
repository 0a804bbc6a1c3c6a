package util

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

var nonDigits = regexp.MustCompile(`\D+`)

// NormalizeIdentifier lowercases emails and reduces phone numbers to digits
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier)
	}
	return nonDigits.ReplaceAllString(identifier, "")
}

// RateLimitError reports how long a caller must wait
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: maximum %d submissions per minute, retry in %v", e.Limit, e.RetryAfter.Round(time.Second))
}

// RateLimiter is a sliding-window limiter keyed by caller-supplied strings
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimiter allows limit requests per window for each key. A limit of zero allows everything.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records a request for every non-empty key and fails when any of them is over the limit.
// Nothing is recorded for a rejected request. Callers normalize keys themselves.
func (l *RateLimiter) Allow(keys ...string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	accepted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		accepted = append(accepted, key)

		valid := l.requests[key][:0]
		for _, t := range l.requests[key] {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		l.requests[key] = valid

		if len(valid) >= l.limit {
			return &RateLimitError{Limit: l.limit, RetryAfter: valid[0].Add(l.window).Sub(now)}
		}
	}

	for _, key := range accepted {
		l.requests[key] = append(l.requests[key], now)
	}
	return nil
}

// Sweep drops keys with no requests inside the window
func (l *RateLimiter) Sweep() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.requests, key)
		}
	}
}
