package conflict

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/crossdev/syncmesh/internal/contextstore"
	"github.com/crossdev/syncmesh/internal/session"
	"github.com/crossdev/syncmesh/pkg/models"
)

// MergeFunc reconciles two divergent payloads of the same context.
// Only the collaborator knows the semantics of the payload, so the
// merge policy is injected rather than guessed here.
type MergeFunc func(local, remote []byte) []byte

// Manager surfaces divergence between devices and resolves it.
type Manager struct {
	store    *contextstore.Store
	sessions *session.Manager
	merge    MergeFunc
}

// NewManager creates a conflict manager. merge may be nil, in which
// case "merge" resolutions fall back to keeping the local payload.
func NewManager(store *contextstore.Store, sessions *session.Manager, merge MergeFunc) *Manager {
	return &Manager{
		store:    store,
		sessions: sessions,
		merge:    merge,
	}
}

// Check inspects a context's device states after a device reported its
// believed-synced version. When two devices both claim synced at
// different versions, each mutated the context offline; a conflict is
// recorded on the owning session and the devices flagged.
func (m *Manager) Check(ctx *models.CrossDeviceContext) *models.SyncConflict {
	type claim struct {
		deviceID string
		version  int64
	}
	var claims []claim
	for deviceID, state := range ctx.DeviceStates {
		if state.Status == models.SyncStateSynced {
			claims = append(claims, claim{deviceID, state.Version})
		}
	}

	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			if claims[i].version == claims[j].version {
				continue
			}

			// The side with the older claim is the divergent remote;
			// its payload is whatever it last reported, falling back
			// to head when it never sent one.
			stale := claims[i]
			if claims[j].version < stale.version {
				stale = claims[j]
			}
			remote := ctx.Data
			if data, ok := m.store.ReportedData(ctx.ID, stale.deviceID); ok {
				remote = data
			}

			devices := []string{claims[i].deviceID, claims[j].deviceID}
			conflict := models.SyncConflict{
				ID:        uuid.New().String(),
				ContextID: ctx.ID,
				Type:      models.ConflictTypeData,
				Description: fmt.Sprintf("devices %s and %s hold divergent versions %d and %d of context %s",
					claims[i].deviceID, claims[j].deviceID, claims[i].version, claims[j].version, ctx.ID),
				Devices: devices,
				Data: models.ConflictData{
					Local:     ctx.Data,
					Remote:    remote,
					Timestamp: time.Now(),
				},
				Resolution: models.ResolutionPending,
			}

			m.store.MarkConflict(ctx.ID, devices)
			if !m.sessions.AttachConflict(ctx.UserID, conflict) {
				log.Printf("No active session for user %s to attach conflict %s", ctx.UserID, conflict.ID)
			}
			return &conflict
		}
	}
	return nil
}

// Resolve settles a conflict with the chosen strategy, stamps it
// resolved, and removes it from its session. Returns false when the
// conflict id is unknown.
func (m *Manager) Resolve(conflictID string, resolution models.Resolution) bool {
	switch resolution {
	case models.ResolveLocal, models.ResolveRemote, models.ResolveMerge:
	default:
		return false
	}

	owner, conflict, ok := m.sessions.FindConflict(conflictID)
	if !ok {
		return false
	}

	m.reconcile(conflict, resolution)

	now := time.Now()
	conflict.Resolution = models.ResolutionAuto
	conflict.ResolvedAt = &now

	m.sessions.RemoveConflict(owner.ID, conflictID)
	return true
}

// reconcile applies the payload outcome of a resolution. Local keeps
// the current data; remote adopts the remote snapshot; merge runs the
// injected merge function, or keeps local when none was supplied.
func (m *Manager) reconcile(conflict *models.SyncConflict, resolution models.Resolution) {
	var next []byte
	switch resolution {
	case models.ResolveLocal:
		return
	case models.ResolveRemote:
		next = conflict.Data.Remote
	case models.ResolveMerge:
		if m.merge == nil {
			return
		}
		next = m.merge(conflict.Data.Local, conflict.Data.Remote)
	}

	if _, err := m.store.ApplyMutation(conflict.ContextID, next); err != nil {
		log.Printf("Failed to apply resolution payload for conflict %s: %v", conflict.ID, err)
	}
}
