package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter enforces a per-user request budget for the HTTP surface.
// The budget is expressed as requests per hour; the burst lets a
// short mutation flurry through without tripping the hourly pace.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perHour  int
	rate     rate.Limit
	burst    int
}

// NewLimiter creates a limiter allowing requestsPerHour sustained
// requests per user with the given burst.
func NewLimiter(requestsPerHour, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		perHour:  requestsPerHour,
		rate:     rate.Limit(float64(requestsPerHour) / 3600.0),
		burst:    burst,
	}
}

// Limit reports the configured hourly budget.
func (l *Limiter) Limit() int {
	return l.perHour
}

// Allow consumes one request from the user's budget and reports
// whether it fit.
func (l *Limiter) Allow(userID string) bool {
	return l.limiterFor(userID).Allow()
}

// Remaining reports the whole requests left in the user's burst window.
func (l *Limiter) Remaining(userID string) int {
	tokens := l.limiterFor(userID).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

func (l *Limiter) limiterFor(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[userID] = limiter
	}
	return limiter
}
