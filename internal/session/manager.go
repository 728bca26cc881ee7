package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/pkg/models"
)

// maxSessionsPerUser bounds concurrently active sessions per user.
const maxSessionsPerUser = 10

// Manager owns SyncSession lifecycle: creation, activity tracking,
// conflict attachment, and expiry sweeps. Stored sessions are never
// written in place: updates replace the entry with a fresh copy under
// sessMu, and reads hand out copies, so the scheduler's activity
// bumps cannot race the API layer's reads.
type Manager struct {
	sessions    sync.Map // sessionID -> *models.SyncSession, replaced wholesale on update
	sessMu      sync.Mutex
	concurrency map[string]*semaphore.Weighted
	mu          sync.RWMutex
	registry    *registry.Registry
}

func cloneSession(sess *models.SyncSession) *models.SyncSession {
	out := *sess
	out.Devices = append([]string(nil), sess.Devices...)
	out.Conflicts = append([]models.SyncConflict(nil), sess.Conflicts...)
	return &out
}

// NewManager creates a session manager backed by the device registry.
func NewManager(reg *registry.Registry) *Manager {
	return &Manager{
		concurrency: make(map[string]*semaphore.Weighted),
		registry:    reg,
	}
}

// CreateSession pairs a user with a set of devices. The device list
// must be non-empty and every device must be known to the registry;
// the first device becomes primary.
func (m *Manager) CreateSession(userID string, deviceIDs []string) (*models.SyncSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}
	if len(deviceIDs) == 0 {
		return nil, fmt.Errorf("a session requires at least one device")
	}
	for _, id := range deviceIDs {
		if _, ok := m.registry.Get(id); !ok {
			return nil, fmt.Errorf("unknown device %s", id)
		}
	}

	if err := m.acquireSlot(userID); err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &models.SyncSession{
		ID:            uuid.New().String(),
		UserID:        userID,
		Devices:       append([]string(nil), deviceIDs...),
		PrimaryDevice: deviceIDs[0],
		StartTime:     now,
		LastActivity:  now,
		IsActive:      true,
		SyncedData: models.SyncedData{
			Preferences: make(map[string]string),
		},
	}

	m.sessions.Store(sess.ID, sess)
	return cloneSession(sess), nil
}

// Get retrieves a copy of a session by id.
func (m *Manager) Get(id string) (*models.SyncSession, bool) {
	value, ok := m.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return cloneSession(value.(*models.SyncSession)), true
}

// ListActive returns copies of all sessions that have not expired.
func (m *Manager) ListActive() []*models.SyncSession {
	var sessions []*models.SyncSession
	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		if sess.IsActive {
			sessions = append(sessions, cloneSession(sess))
		}
		return true
	})
	return sessions
}

// RecordActivity bumps LastActivity on every active session that
// includes the given device; called on each sync event touching it.
func (m *Manager) RecordActivity(deviceID string) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	now := time.Now()
	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		if !sess.IsActive {
			return true
		}
		for _, id := range sess.Devices {
			if id == deviceID {
				updated := cloneSession(sess)
				updated.LastActivity = now
				m.sessions.Store(updated.ID, updated)
				break
			}
		}
		return true
	})
}

// AttachConflict records a conflict on the first active session that
// contains all of the disagreeing devices, falling back to any active
// session of the same user. Returns false when no session fits.
func (m *Manager) AttachConflict(userID string, conflict models.SyncConflict) bool {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	var target *models.SyncSession
	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		if !sess.IsActive || sess.UserID != userID {
			return true
		}
		if containsAll(sess.Devices, conflict.Devices) {
			target = sess
			return false
		}
		if target == nil {
			target = sess
		}
		return true
	})

	if target == nil {
		return false
	}

	updated := cloneSession(target)
	updated.Conflicts = append(updated.Conflicts, conflict)
	updated.LastActivity = time.Now()
	m.sessions.Store(updated.ID, updated)
	return true
}

// FindConflict locates a conflict and its owning session.
func (m *Manager) FindConflict(conflictID string) (*models.SyncSession, *models.SyncConflict, bool) {
	var (
		owner    *models.SyncSession
		conflict *models.SyncConflict
	)
	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		for i := range sess.Conflicts {
			if sess.Conflicts[i].ID == conflictID {
				owner = cloneSession(sess)
				found := sess.Conflicts[i]
				conflict = &found
				return false
			}
		}
		return true
	})
	return owner, conflict, owner != nil
}

// RemoveConflict drops a resolved conflict from its session.
func (m *Manager) RemoveConflict(sessionID, conflictID string) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	value, ok := m.sessions.Load(sessionID)
	if !ok {
		return
	}
	updated := cloneSession(value.(*models.SyncSession))
	kept := updated.Conflicts[:0]
	for _, c := range updated.Conflicts {
		if c.ID != conflictID {
			kept = append(kept, c)
		}
	}
	updated.Conflicts = kept
	m.sessions.Store(updated.ID, updated)
}

// ListConflicts returns every conflict currently attached to a session.
func (m *Manager) ListConflicts() []models.SyncConflict {
	var conflicts []models.SyncConflict
	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		conflicts = append(conflicts, sess.Conflicts...)
		return true
	})
	return conflicts
}

// SweepExpired deactivates and removes sessions idle beyond the expiry
// window. Returns the number of sessions removed.
func (m *Manager) SweepExpired(expiry time.Duration) int {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	cutoff := time.Now().Add(-expiry)
	removed := 0

	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		if sess.LastActivity.Before(cutoff) {
			m.sessions.Delete(key)
			m.releaseSlot(sess.UserID)
			removed++
			log.Printf("Expired sync session %s (idle since %s)", sess.ID, sess.LastActivity.Format(time.RFC3339))
		}
		return true
	})
	return removed
}

// Clear removes every session; engine teardown only.
func (m *Manager) Clear() {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	m.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*models.SyncSession)
		m.sessions.Delete(key)
		m.releaseSlot(sess.UserID)
		return true
	})
}

// acquireSlot tries to acquire a session slot for the user.
func (m *Manager) acquireSlot(userID string) error {
	m.mu.Lock()
	sem, exists := m.concurrency[userID]
	if !exists {
		sem = semaphore.NewWeighted(maxSessionsPerUser)
		m.concurrency[userID] = sem
	}
	m.mu.Unlock()

	if !sem.TryAcquire(1) {
		return fmt.Errorf("session limit reached for user %s", userID)
	}
	return nil
}

// releaseSlot releases a session slot for the user.
func (m *Manager) releaseSlot(userID string) {
	m.mu.RLock()
	sem := m.concurrency[userID]
	m.mu.RUnlock()

	if sem != nil {
		sem.Release(1)
	}
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
