// Package engine wires the registry, context store, session manager,
// conflict manager, scheduler and recommendation engine into one
// coordinating service instance. Collaborators hold an *Engine and
// never touch shared module-level state; multiple isolated instances
// can coexist, which is how the tests run.
package engine

import (
	"context"
	"fmt"

	"github.com/crossdev/syncmesh/internal/capability"
	"github.com/crossdev/syncmesh/internal/conflict"
	"github.com/crossdev/syncmesh/internal/contextstore"
	"github.com/crossdev/syncmesh/internal/identity"
	"github.com/crossdev/syncmesh/internal/recommend"
	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/internal/scheduler"
	"github.com/crossdev/syncmesh/internal/session"
	"github.com/crossdev/syncmesh/internal/transport"
	"github.com/crossdev/syncmesh/pkg/models"
)

// Config assembles the engine's pluggable pieces. Provider, Identity,
// Discoverer and Transport have working defaults for a local
// simulated deployment.
type Config struct {
	Provider   capability.Provider
	Identity   identity.Store
	Discoverer registry.Discoverer
	Transport  transport.Transport
	Merge      conflict.MergeFunc
	Scheduler  scheduler.Config
}

// Engine is the cross-device context synchronization engine.
type Engine struct {
	Registry  *registry.Registry
	Store     *contextstore.Store
	Sessions  *session.Manager
	Conflicts *conflict.Manager
	Sched     *scheduler.Scheduler
	Recommend *recommend.Engine
}

// New builds an engine from the config, filling in simulated defaults
// for anything not supplied.
func New(cfg Config) *Engine {
	if cfg.Provider == nil {
		cfg.Provider = capability.NewHost()
	}
	if cfg.Identity == nil {
		cfg.Identity = identity.NewMemory()
	}
	if cfg.Discoverer == nil {
		cfg.Discoverer = registry.NewSimulatedDiscoverer()
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewLoopback()
	}

	reg := registry.NewRegistry(cfg.Provider, cfg.Identity, cfg.Discoverer)
	store := contextstore.NewStore(reg)
	sessions := session.NewManager(reg)
	conflicts := conflict.NewManager(store, sessions, cfg.Merge)
	sched := scheduler.New(cfg.Scheduler, store, reg, sessions, cfg.Transport)

	return &Engine{
		Registry:  reg,
		Store:     store,
		Sessions:  sessions,
		Conflicts: conflicts,
		Sched:     sched,
		Recommend: recommend.NewEngine(reg),
	}
}

// Start registers the local device and launches the scheduler loops.
func (e *Engine) Start() (*models.Device, error) {
	local, err := e.Registry.RegisterLocal()
	if err != nil {
		return nil, fmt.Errorf("failed to register local device: %w", err)
	}
	e.Sched.Run()
	return local, nil
}

// RegisterLocalDevice builds (or returns) the local device entry.
func (e *Engine) RegisterLocalDevice() (*models.Device, error) {
	return e.Registry.RegisterLocal()
}

// Discover refreshes the registry from the discovery transport.
func (e *Engine) Discover(ctx context.Context) []*models.Device {
	return e.Registry.Discover(ctx)
}

// CreateSyncSession starts a session for a user over the given devices.
func (e *Engine) CreateSyncSession(userID string, deviceIDs []string) (*models.SyncSession, error) {
	return e.Sessions.CreateSession(userID, deviceIDs)
}

// CreateContext makes a new synchronizable context.
func (e *Engine) CreateContext(userID string, contextType models.ContextType, data []byte) (*models.CrossDeviceContext, error) {
	return e.Store.Create(userID, contextType, data)
}

// ApplyMutation updates a context's data, versioning it when the
// content actually changed.
func (e *Engine) ApplyMutation(contextID string, newData []byte) (*models.CrossDeviceContext, error) {
	return e.Store.ApplyMutation(contextID, newData)
}

// Enqueue schedules sync jobs for a context against target devices.
func (e *Engine) Enqueue(contextID string, targetDeviceIDs []string, priority int) []string {
	return e.Sched.Enqueue(contextID, targetDeviceIDs, priority)
}

// ReportDeviceState ingests a device's claim about the context version
// it holds, optionally with the device's copy of the payload, and runs
// conflict detection on the result.
func (e *Engine) ReportDeviceState(contextID, deviceID string, version int64, data []byte) (*models.SyncConflict, error) {
	ctx, err := e.Store.ReportDeviceState(contextID, deviceID, version, data)
	if err != nil {
		return nil, err
	}
	return e.Conflicts.Check(ctx), nil
}

// RecommendDevices ranks other devices for a context type.
func (e *Engine) RecommendDevices(contextType models.ContextType, currentDeviceID string) []models.DeviceRecommendation {
	return e.Recommend.Recommend(contextType, currentDeviceID)
}

// Resolve settles a conflict; false when the id is unknown.
func (e *Engine) Resolve(conflictID string, resolution models.Resolution) bool {
	return e.Conflicts.Resolve(conflictID, resolution)
}

// Pause suspends transfers; the loop keeps ticking as a no-op drain.
func (e *Engine) Pause() { e.Sched.Pause() }

// Resume re-enables transfers.
func (e *Engine) Resume() { e.Sched.Resume() }

// Events exposes the sync outcome feed.
func (e *Engine) Events() <-chan scheduler.SyncEvent {
	return e.Sched.Events()
}

// ListOnline returns devices currently online.
func (e *Engine) ListOnline() []*models.Device {
	return e.Registry.ListOnline()
}

// GetDevice looks up a device; absent devices are a (nil, false)
// result, never an error.
func (e *Engine) GetDevice(id string) (*models.Device, bool) {
	return e.Registry.Get(id)
}

// GetContext looks up a context.
func (e *Engine) GetContext(id string) (*models.CrossDeviceContext, bool) {
	return e.Store.Get(id)
}

// GetUserContexts returns every context owned by the user.
func (e *Engine) GetUserContexts(userID string) []*models.CrossDeviceContext {
	return e.Store.ListByUser(userID)
}

// GetActiveSyncSessions returns sessions that have not expired.
func (e *Engine) GetActiveSyncSessions() []*models.SyncSession {
	return e.Sessions.ListActive()
}

// GetSyncConflicts returns every conflict attached to a session.
func (e *Engine) GetSyncConflicts() []models.SyncConflict {
	return e.Sessions.ListConflicts()
}

// Destroy is full-engine teardown: stops all timers and clears every
// registry, the queue, sessions and contexts.
func (e *Engine) Destroy() {
	e.Sched.Stop()
	e.Sessions.Clear()
	e.Store.Clear()
	e.Registry.Clear()
}
