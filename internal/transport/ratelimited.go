package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/crossdev/syncmesh/pkg/models"
)

// RateLimited paces transfers per target device so a burst of sync
// jobs cannot flood a single device's link.
type RateLimited struct {
	inner    Transport
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimited wraps a transport with a per-device limiter.
// transfersPerSecond applies independently to each target device.
func NewRateLimited(inner Transport, transfersPerSecond float64, burst int) *RateLimited {
	return &RateLimited{
		inner:    inner,
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(transfersPerSecond),
		burst:    burst,
	}
}

// Send waits for the target device's rate slot, then delegates.
func (t *RateLimited) Send(ctx context.Context, env Envelope, target *models.Device) error {
	if err := t.limiter(target.ID).Wait(ctx); err != nil {
		return err
	}
	return t.inner.Send(ctx, env, target)
}

func (t *RateLimited) limiter(deviceID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, exists := t.limiters[deviceID]
	if !exists {
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.limiters[deviceID] = limiter
	}
	return limiter
}
