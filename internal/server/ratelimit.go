package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter limits how many scans a client may start per minute and per
// hour. A zero limit disables that window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int

	clients map[string]*clientUsage
	now     func() time.Time
}

// clientUsage holds the start times of the scans of the last hour, oldest
// first.
type clientUsage struct {
	requests []time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits.
func NewRateLimiter(requestsPerMinute, requestsPerHour int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit records a request from clientID, or returns a
// *RateLimitError if it would exceed a limit.
func (rl *RateLimiter) CheckRateLimit(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{}
		rl.clients[clientID] = usage
	}
	usage.prune(now.Add(-time.Hour))

	if err := check("minute", rl.requestsPerMinute, time.Minute, usage.since(now.Add(-time.Minute)), now); err != nil {
		return err
	}
	if err := check("hour", rl.requestsPerHour, time.Hour, usage.requests, now); err != nil {
		return err
	}

	usage.requests = append(usage.requests, now)
	return nil
}

func check(window string, limit int, span time.Duration, requests []time.Time, now time.Time) error {
	if limit <= 0 || len(requests) < limit {
		return nil
	}
	// The window frees up when its oldest counted request expires.
	oldest := requests[len(requests)-limit]
	return &RateLimitError{
		Type:       window,
		Limit:      limit,
		RetryAfter: oldest.Add(span).Sub(now),
	}
}

// Usage returns how many requests clientID made in the last minute and hour.
func (rl *RateLimiter) Usage(clientID string) (lastMinute, lastHour int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	usage, ok := rl.clients[clientID]
	if !ok {
		return 0, 0
	}
	now := rl.now()
	usage.prune(now.Add(-time.Hour))
	return len(usage.since(now.Add(-time.Minute))), len(usage.requests)
}

func (u *clientUsage) prune(cutoff time.Time) {
	i := 0
	for i < len(u.requests) && !u.requests[i].After(cutoff) {
		i++
	}
	u.requests = u.requests[i:]
}

func (u *clientUsage) since(cutoff time.Time) []time.Time {
	for i, t := range u.requests {
		if t.After(cutoff) {
			return u.requests[i:]
		}
	}
	return nil
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}
