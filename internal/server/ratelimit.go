package server

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	rateWindow      = time.Minute
	janitorInterval = 5 * time.Minute
)

// RateLimiter bounds the number of requests each client may make per minute.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	clients           map[string]*clientWindow
	now               func() time.Time
}

// clientWindow counts requests of one client in the current window.
type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per client.
// A non-positive limit allows everything.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		clients:           make(map[string]*clientWindow),
		now:               time.Now,
	}
}

// Allow records a request from clientID and returns a *RateLimitError when
// the client has exhausted its window.
func (rl *RateLimiter) Allow(clientID string) error {
	if rl.requestsPerMinute <= 0 {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientID]
	if !ok || now.Sub(w.start) >= rateWindow {
		w = &clientWindow{start: now}
		rl.clients[clientID] = w
	}
	if w.count >= rl.requestsPerMinute {
		return &RateLimitError{
			Limit:      rl.requestsPerMinute,
			RetryAfter: rateWindow - now.Sub(w.start),
		}
	}
	w.count++
	return nil
}

// Remaining returns how many requests clientID may still make in its current window.
func (rl *RateLimiter) Remaining(clientID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[clientID]
	if !ok || rl.now().Sub(w.start) >= rateWindow {
		return rl.requestsPerMinute
	}
	return max(rl.requestsPerMinute-w.count, 0)
}

// prune forgets clients whose window has expired.
func (rl *RateLimiter) prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for id, w := range rl.clients {
		if now.Sub(w.start) >= rateWindow {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

// RunJanitor prunes expired client windows until ctx is cancelled.
func (rl *RateLimiter) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int           // requests per minute
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d per minute, retry after: %v)", e.Limit, e.RetryAfter)
}
