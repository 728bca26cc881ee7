package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdev/syncmesh/pkg/models"
)

func testEnvelope() Envelope {
	return Envelope{
		ContextID: "ctx-1",
		Type:      models.ContextDocument,
		Version:   3,
		Checksum:  "abc123",
		Payload:   []byte("document body"),
	}
}

func testDevice() *models.Device {
	return &models.Device{ID: "tablet-1", Type: models.DeviceTablet, Status: models.StatusOnline}
}

func TestEncodeIsDeterministic(t *testing.T) {
	env := testEnvelope()

	a, err := Encode(env)
	require.NoError(t, err)
	b, err := Encode(env)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	decoded, err := Decode(a)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestLoopbackDelivers(t *testing.T) {
	lb := &Loopback{}

	err := lb.Send(context.Background(), testEnvelope(), testDevice())
	require.NoError(t, err)

	sent := lb.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ctx-1", sent[0].ContextID)
}

func TestLoopbackRespectsContextDeadline(t *testing.T) {
	lb := &Loopback{Delay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := lb.Send(ctx, testEnvelope(), testDevice())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, lb.Sent())
}

func TestLoopbackInjectedFailure(t *testing.T) {
	lb := &Loopback{
		Fail: func(env Envelope, target *models.Device) error {
			return fmt.Errorf("simulated link failure to %s", target.ID)
		},
	}

	err := lb.Send(context.Background(), testEnvelope(), testDevice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tablet-1")
	assert.Empty(t, lb.Sent())
}

func TestRateLimitedPacesPerDevice(t *testing.T) {
	lb := &Loopback{}
	rl := NewRateLimited(lb, 1000, 1)

	// Burst of 1: the second send to the same device has to wait for
	// a token, the first is immediate.
	start := time.Now()
	require.NoError(t, rl.Send(context.Background(), testEnvelope(), testDevice()))
	require.NoError(t, rl.Send(context.Background(), testEnvelope(), testDevice()))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Microsecond)

	assert.Len(t, lb.Sent(), 2)
}

func TestRateLimitedHonorsCancellation(t *testing.T) {
	lb := &Loopback{}
	rl := NewRateLimited(lb, 0.001, 1) // effectively one send per long while

	require.NoError(t, rl.Send(context.Background(), testEnvelope(), testDevice()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := rl.Send(ctx, testEnvelope(), testDevice())
	assert.Error(t, err)
	assert.Len(t, lb.Sent(), 1)
}
