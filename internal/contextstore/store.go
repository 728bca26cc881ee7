package contextstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/pkg/models"
)

// historyCap bounds transfer history per context; the oldest entries
// are dropped once the cap is reached.
const historyCap = 100

// Store owns the lifecycle and integrity of CrossDeviceContext objects.
// All mutation goes through the store mutex so collaborator calls and
// the scheduler loop serialize. Accessors hand out snapshots, never
// the live objects: collaborators poll deviceStates and
// transferHistory while the scheduler keeps writing them.
type Store struct {
	mu       sync.Mutex
	contexts map[string]*models.CrossDeviceContext
	reported map[string]map[string][]byte // contextID -> deviceID -> claimed payload
	registry *registry.Registry
}

// NewStore creates a context store. The registry supplies the local
// device id for new contexts and validates sync targets.
func NewStore(reg *registry.Registry) *Store {
	return &Store{
		contexts: make(map[string]*models.CrossDeviceContext),
		reported: make(map[string]map[string][]byte),
		registry: reg,
	}
}

// snapshot copies a context for handing out. Data is replaced
// wholesale on mutation and never written in place, so sharing its
// backing array is safe; the map and history need their own copies.
func snapshot(ctx *models.CrossDeviceContext) *models.CrossDeviceContext {
	out := *ctx
	out.DeviceStates = make(map[string]models.DeviceSyncState, len(ctx.DeviceStates))
	for id, state := range ctx.DeviceStates {
		out.DeviceStates[id] = state
	}
	out.TransferHistory = append([]models.TransferRecord(nil), ctx.TransferHistory...)
	return &out
}

// Create makes a new context at version 1 with a computed checksum.
func (s *Store) Create(userID string, contextType models.ContextType, data []byte) (*models.CrossDeviceContext, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}
	switch contextType {
	case models.ContextConversation, models.ContextSearch, models.ContextWorkflow, models.ContextDocument:
	default:
		return nil, fmt.Errorf("unknown context type %q", contextType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := &models.CrossDeviceContext{
		ID:     uuid.New().String(),
		UserID: userID,
		Type:   contextType,
		Data:   data,
		Metadata: models.ContextMetadata{
			CreatedOn:    s.registry.LocalID(),
			LastModified: time.Now(),
			Version:      1,
			Checksum:     Checksum(data),
		},
		DeviceStates: make(map[string]models.DeviceSyncState),
	}

	s.contexts[ctx.ID] = ctx
	return snapshot(ctx), nil
}

// Get retrieves a snapshot of a context by id.
func (s *Store) Get(id string) (*models.CrossDeviceContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[id]
	if !ok {
		return nil, false
	}
	return snapshot(ctx), true
}

// ListByUser returns snapshots of all contexts owned by a user.
func (s *Store) ListByUser(userID string) []*models.CrossDeviceContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.CrossDeviceContext
	for _, ctx := range s.contexts {
		if ctx.UserID == userID {
			out = append(out, snapshot(ctx))
		}
	}
	return out
}

// ApplyMutation replaces a context's data. If the checksum is unchanged
// the call is a no-op; otherwise the version increments exactly once,
// LastModified updates, and every device whose recorded version is now
// behind transitions to pending.
func (s *Store) ApplyMutation(id string, newData []byte) (*models.CrossDeviceContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context not found")
	}

	sum := Checksum(newData)
	if sum == ctx.Metadata.Checksum {
		return snapshot(ctx), nil
	}

	ctx.Data = newData
	ctx.Metadata.Checksum = sum
	ctx.Metadata.Version++
	ctx.Metadata.LastModified = time.Now()

	for deviceID, state := range ctx.DeviceStates {
		if state.Version < ctx.Metadata.Version && state.Status == models.SyncStateSynced {
			state.Status = models.SyncStatePending
			ctx.DeviceStates[deviceID] = state
		}
	}

	return snapshot(ctx), nil
}

// RecordSync marks a successful transfer to a device: the device state
// is set to the transferred version and a history entry is appended.
func (s *Store) RecordSync(id, fromDevice, toDevice string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[id]
	if !ok {
		return fmt.Errorf("context not found")
	}

	now := time.Now()
	ctx.DeviceStates[toDevice] = models.DeviceSyncState{
		Version:  version,
		LastSync: now,
		Status:   models.SyncStateSynced,
	}
	// The device now holds head state; any stale claimed payload is
	// superseded.
	delete(s.reported[id], toDevice)
	s.appendHistory(ctx, models.TransferRecord{
		FromDevice: fromDevice,
		ToDevice:   toDevice,
		Timestamp:  now,
		Success:    true,
	})
	return nil
}

// RecordFailure appends a failed transfer entry. Device states are
// never touched by failed syncs.
func (s *Store) RecordFailure(id, fromDevice, toDevice, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[id]
	if !ok {
		return fmt.Errorf("context not found")
	}

	s.appendHistory(ctx, models.TransferRecord{
		FromDevice: fromDevice,
		ToDevice:   toDevice,
		Timestamp:  time.Now(),
		Success:    false,
		Error:      reason,
	})
	return nil
}

// ReportDeviceState records the version a device claims to hold. A
// claim matching the current head is synced; older claims stay pending.
// A non-nil data carries the device's own copy of the payload, kept
// aside so a conflict resolution can adopt or merge it. Returns a
// snapshot so callers can run conflict detection on it.
func (s *Store) ReportDeviceState(id, deviceID string, version int64, data []byte) (*models.CrossDeviceContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context not found")
	}

	status := models.SyncStatePending
	if version >= ctx.Metadata.Version {
		status = models.SyncStateSynced
	}
	ctx.DeviceStates[deviceID] = models.DeviceSyncState{
		Version:  version,
		LastSync: time.Now(),
		Status:   status,
	}
	if data != nil {
		if s.reported[id] == nil {
			s.reported[id] = make(map[string][]byte)
		}
		s.reported[id][deviceID] = append([]byte(nil), data...)
	}
	return snapshot(ctx), nil
}

// ReportedData returns the payload a device last claimed to hold for
// a context, if it sent one with its state report.
func (s *Store) ReportedData(id, deviceID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.reported[id][deviceID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// MarkConflict flags the sync state of the given devices on a context.
func (s *Store) MarkConflict(id string, deviceIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[id]
	if !ok {
		return
	}
	for _, deviceID := range deviceIDs {
		if state, ok := ctx.DeviceStates[deviceID]; ok {
			state.Status = models.SyncStateConflict
			ctx.DeviceStates[deviceID] = state
		}
	}
}

// Clear removes every context; engine teardown only.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = make(map[string]*models.CrossDeviceContext)
	s.reported = make(map[string]map[string][]byte)
}

func (s *Store) appendHistory(ctx *models.CrossDeviceContext, record models.TransferRecord) {
	ctx.TransferHistory = append(ctx.TransferHistory, record)
	if len(ctx.TransferHistory) > historyCap {
		ctx.TransferHistory = ctx.TransferHistory[len(ctx.TransferHistory)-historyCap:]
	}
}
