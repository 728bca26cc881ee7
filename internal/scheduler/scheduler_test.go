package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdev/syncmesh/internal/capability"
	"github.com/crossdev/syncmesh/internal/contextstore"
	"github.com/crossdev/syncmesh/internal/identity"
	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/internal/session"
	"github.com/crossdev/syncmesh/internal/transport"
	"github.com/crossdev/syncmesh/pkg/models"
)

type fixture struct {
	reg      *registry.Registry
	store    *contextstore.Store
	sessions *session.Manager
	loopback *transport.Loopback
	sched    *Scheduler
}

func newFixture(t *testing.T, remotes ...models.Device) *fixture {
	t.Helper()

	provider := &capability.Static{
		Name: "test-host",
		Type: models.DeviceDesktop,
		OS:   models.PlatformLinux,
	}
	reg := registry.NewRegistry(provider, identity.NewMemory(), &registry.StaticDiscoverer{Devices: remotes})
	_, err := reg.RegisterLocal()
	require.NoError(t, err)
	reg.Discover(context.Background())

	store := contextstore.NewStore(reg)
	sessions := session.NewManager(reg)
	loopback := &transport.Loopback{} // zero delay in tests

	sched := New(Config{TransferTimeout: time.Second}, store, reg, sessions, loopback)
	t.Cleanup(sched.Stop)

	return &fixture{reg: reg, store: store, sessions: sessions, loopback: loopback, sched: sched}
}

func tabletDevice(id string) models.Device {
	return models.Device{
		ID:       id,
		Name:     "Tablet",
		Type:     models.DeviceTablet,
		Platform: models.PlatformAndroid,
		Status:   models.StatusOnline,
		Capabilities: models.Capabilities{
			Screen:       models.Screen{Width: 820, Height: 1180, PixelDensity: 2.0},
			Input:        []string{models.InputTouch, models.InputVoice},
			Connectivity: []string{models.ConnWifi},
		},
	}
}

func tinyDevice(id string) models.Device {
	return models.Device{
		ID:       id,
		Name:     "Watch",
		Type:     models.DeviceWatch,
		Platform: models.PlatformAndroid,
		Status:   models.StatusOnline,
		Capabilities: models.Capabilities{
			Screen:       models.Screen{Width: 200, Height: 240, PixelDensity: 2.0},
			Input:        []string{models.InputTouch},
			Connectivity: []string{models.ConnBluetooth},
		},
	}
}

func TestSuccessfulSyncUpdatesDeviceState(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	state := got.DeviceStates["tablet-1"]
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, models.SyncStateSynced, state.Status)
	require.Len(t, got.TransferHistory, 1)
	assert.True(t, got.TransferHistory[0].Success)

	sent := f.loopback.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ctx.ID, sent[0].ContextID)
	assert.Equal(t, int64(1), sent[0].Version)
}

func TestCompatibilityGateDocumentSmallScreen(t *testing.T) {
	f := newFixture(t, tinyDevice("watch-1"))
	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"watch-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	assert.Empty(t, got.DeviceStates)
	require.Len(t, got.TransferHistory, 1)
	assert.False(t, got.TransferHistory[0].Success)
	assert.Contains(t, got.TransferHistory[0].Error, "incompatible")
	assert.Empty(t, f.loopback.Sent())
}

func TestConversationRequiresKeyboardOrVoice(t *testing.T) {
	noInput := tinyDevice("watch-1")
	noInput.Capabilities.Input = []string{models.InputTouch}
	f := newFixture(t, noInput)

	ctx, err := f.store.Create("user-1", models.ContextConversation, []byte("hi"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"watch-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	require.Len(t, got.TransferHistory, 1)
	assert.False(t, got.TransferHistory[0].Success)
}

func TestSearchRequiresWifiOrCellular(t *testing.T) {
	f := newFixture(t, tinyDevice("watch-1")) // bluetooth only
	ctx, err := f.store.Create("user-1", models.ContextSearch, []byte("query"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"watch-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	require.Len(t, got.TransferHistory, 1)
	assert.False(t, got.TransferHistory[0].Success)
	assert.Empty(t, got.DeviceStates)
}

func TestOfflineTargetFailsJob(t *testing.T) {
	offline := tabletDevice("tablet-1")
	offline.Status = models.StatusOffline
	f := newFixture(t, offline)

	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	assert.Empty(t, got.DeviceStates)
	require.Len(t, got.TransferHistory, 1)
	assert.Contains(t, got.TransferHistory[0].Error, "offline")
}

func TestMissingContextOrDeviceDropsJob(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))

	f.sched.Enqueue("no-such-context", []string{"tablet-1"}, 1)
	f.sched.Tick()
	assert.Zero(t, f.sched.QueueLen())
	assert.Empty(t, f.loopback.Sent())

	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)
	f.sched.Enqueue(ctx.ID, []string{"no-such-device"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	assert.Empty(t, got.TransferHistory) // dropped, not failed
}

func TestSyncIdempotence(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	state := got.DeviceStates["tablet-1"]
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, models.SyncStateSynced, state.Status)
	assert.Len(t, got.TransferHistory, 2)
}

func TestPriorityOrderingWithinBatch(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	low, err := f.store.Create("user-1", models.ContextDocument, []byte("low"))
	require.NoError(t, err)
	high, err := f.store.Create("user-1", models.ContextDocument, []byte("high"))
	require.NoError(t, err)

	f.sched.Enqueue(low.ID, []string{"tablet-1"}, 1)
	f.sched.Enqueue(high.ID, []string{"tablet-1"}, 5)
	f.sched.Tick()

	sent := f.loopback.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, high.ID, sent[0].ContextID)
	assert.Equal(t, low.ID, sent[1].ContextID)
}

func TestBatchSizeLimitsDrain(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	for i := 0; i < DefaultBatchSize+3; i++ {
		f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	}
	f.sched.Tick()
	assert.Equal(t, 3, f.sched.QueueLen())

	f.sched.Tick()
	assert.Zero(t, f.sched.QueueLen())
}

func TestPausePreservesQueue(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Pause()
	f.sched.Tick()
	assert.Equal(t, 1, f.sched.QueueLen())
	assert.Empty(t, f.loopback.Sent())

	f.sched.Resume()
	f.sched.Tick()
	assert.Zero(t, f.sched.QueueLen())
	assert.Len(t, f.loopback.Sent(), 1)
}

func TestTransferFailureRecordedNotRetried(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	f.loopback.Fail = func(env transport.Envelope, target *models.Device) error {
		return fmt.Errorf("link reset")
	}

	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	assert.Empty(t, got.DeviceStates)
	require.Len(t, got.TransferHistory, 1)
	assert.Contains(t, got.TransferHistory[0].Error, "link reset")
	assert.Zero(t, f.sched.QueueLen()) // at-most-once: not re-queued
}

func TestTransferTimeoutTreatedAsFailure(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	f.loopback.Delay = time.Second
	f.sched.cfg.TransferTimeout = 10 * time.Millisecond

	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Tick()

	got, _ := f.store.Get(ctx.ID)
	assert.Empty(t, got.DeviceStates)
	require.Len(t, got.TransferHistory, 1)
	assert.Contains(t, got.TransferHistory[0].Error, "transfer failed")
}

func TestStopClosesEventFeed(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	f.sched.Run()
	f.sched.Stop()

	_, open := <-f.sched.Events()
	assert.False(t, open)
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t, tabletDevice("tablet-1"))
	ctx, err := f.store.Create("user-1", models.ContextDocument, []byte("v1"))
	require.NoError(t, err)

	f.sched.Enqueue(ctx.ID, []string{"tablet-1"}, 1)
	f.sched.Tick()

	select {
	case event := <-f.sched.Events():
		assert.True(t, event.Success)
		assert.Equal(t, "tablet-1", event.DeviceID)
		assert.Equal(t, int64(1), event.Version)
	default:
		t.Fatal("expected a sync event")
	}
}
