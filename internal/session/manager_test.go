package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdev/syncmesh/internal/capability"
	"github.com/crossdev/syncmesh/internal/identity"
	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/pkg/models"
)

func newTestManager(t *testing.T, deviceIDs ...string) *Manager {
	t.Helper()

	var remotes []models.Device
	for _, id := range deviceIDs {
		remotes = append(remotes, models.Device{
			ID:       id,
			Name:     "dev-" + id,
			Type:     models.DeviceMobile,
			Platform: models.PlatformAndroid,
			Status:   models.StatusOnline,
		})
	}

	provider := &capability.Static{Name: "host", Type: models.DeviceDesktop, OS: models.PlatformLinux}
	reg := registry.NewRegistry(provider, identity.NewMemory(), &registry.StaticDiscoverer{Devices: remotes})
	reg.Discover(context.Background())

	return NewManager(reg)
}

func testConflict(devices ...string) models.SyncConflict {
	return models.SyncConflict{
		ID:          "conflict-" + devices[0],
		ContextID:   "ctx-1",
		Type:        models.ConflictTypeData,
		Description: "divergent versions",
		Devices:     devices,
		Resolution:  models.ResolutionPending,
	}
}

func TestCreateSessionValidation(t *testing.T) {
	m := newTestManager(t, "a", "b")

	_, err := m.CreateSession("", []string{"a"})
	assert.Error(t, err)

	_, err = m.CreateSession("user-1", nil)
	assert.Error(t, err)

	_, err = m.CreateSession("user-1", []string{"ghost"})
	assert.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	m := newTestManager(t, "a", "b")

	sess, err := m.CreateSession("user-1", []string{"a", "b"})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "a", sess.PrimaryDevice)
	assert.True(t, sess.IsActive)
	assert.NotEmpty(t, sess.Devices)
	assert.Len(t, m.ListActive(), 1)
}

func TestSessionLimitPerUser(t *testing.T) {
	m := newTestManager(t, "a")

	for i := 0; i < maxSessionsPerUser; i++ {
		_, err := m.CreateSession("user-1", []string{"a"})
		require.NoError(t, err, "session %d", i)
	}

	_, err := m.CreateSession("user-1", []string{"a"})
	assert.Error(t, err)

	// Other users are unaffected.
	_, err = m.CreateSession("user-2", []string{"a"})
	assert.NoError(t, err)
}

func TestRecordActivityBumpsSessions(t *testing.T) {
	m := newTestManager(t, "a", "b")
	sess, err := m.CreateSession("user-1", []string{"a"})
	require.NoError(t, err)
	before := sess.LastActivity

	time.Sleep(5 * time.Millisecond)
	m.RecordActivity("a")

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.True(t, got.LastActivity.After(before))

	// Sessions not containing the device are untouched.
	other, err := m.CreateSession("user-1", []string{"b"})
	require.NoError(t, err)
	stamp := other.LastActivity
	m.RecordActivity("a")
	got, _ = m.Get(other.ID)
	assert.Equal(t, stamp, got.LastActivity)
}

func TestSweepExpired(t *testing.T) {
	m := newTestManager(t, "a")
	sess, err := m.CreateSession("user-1", []string{"a"})
	require.NoError(t, err)

	// Fresh session survives a sweep.
	assert.Zero(t, m.SweepExpired(24*time.Hour))
	assert.Len(t, m.ListActive(), 1)

	// Age it past the window.
	sess.LastActivity = time.Now().Add(-25 * time.Hour)
	m.sessions.Store(sess.ID, sess)

	assert.Equal(t, 1, m.SweepExpired(24*time.Hour))
	assert.Empty(t, m.ListActive())
	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
}

func TestSweepReleasesUserSlot(t *testing.T) {
	m := newTestManager(t, "a")

	for i := 0; i < maxSessionsPerUser; i++ {
		sess, err := m.CreateSession("user-1", []string{"a"})
		require.NoError(t, err)
		sess.LastActivity = time.Now().Add(-25 * time.Hour)
		m.sessions.Store(sess.ID, sess)
	}
	require.Equal(t, maxSessionsPerUser, m.SweepExpired(24*time.Hour))

	_, err := m.CreateSession("user-1", []string{"a"})
	assert.NoError(t, err)
}

func TestConflictAttachFindRemove(t *testing.T) {
	m := newTestManager(t, "a", "b")
	sess, err := m.CreateSession("user-1", []string{"a", "b"})
	require.NoError(t, err)

	conflict := testConflict("a", "b")
	require.True(t, m.AttachConflict("user-1", conflict))
	assert.Len(t, m.ListConflicts(), 1)

	owner, found, ok := m.FindConflict(conflict.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, owner.ID)
	assert.Equal(t, conflict.ID, found.ID)

	m.RemoveConflict(sess.ID, conflict.ID)
	assert.Empty(t, m.ListConflicts())
	_, _, ok = m.FindConflict(conflict.ID)
	assert.False(t, ok)
}

func TestAttachConflictPrefersSessionWithAllDevices(t *testing.T) {
	m := newTestManager(t, "a", "b", "c")
	_, err := m.CreateSession("user-1", []string{"a"})
	require.NoError(t, err)
	both, err := m.CreateSession("user-1", []string{"b", "c"})
	require.NoError(t, err)

	require.True(t, m.AttachConflict("user-1", testConflict("b", "c")))

	got, _ := m.Get(both.ID)
	assert.Len(t, got.Conflicts, 1)
}

func TestAttachConflictNoSession(t *testing.T) {
	m := newTestManager(t, "a")
	assert.False(t, m.AttachConflict("nobody", testConflict("a")))
}

func TestListActiveReturnsCopies(t *testing.T) {
	m := newTestManager(t, "a")
	sess, err := m.CreateSession("user-1", []string{"a"})
	require.NoError(t, err)

	list := m.ListActive()
	require.Len(t, list, 1)
	list[0].UserID = "intruder"
	list[0].Devices[0] = "hijacked"

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "a", got.Devices[0])
}

func TestConcurrentActivityAndList(t *testing.T) {
	m := newTestManager(t, "a")
	_, err := m.CreateSession("user-1", []string{"a"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			m.RecordActivity("a")
		}
	}()
	for i := 0; i < 200; i++ {
		for _, sess := range m.ListActive() {
			_, err := json.Marshal(sess)
			require.NoError(t, err)
		}
	}
	<-done
}

func TestClear(t *testing.T) {
	m := newTestManager(t, "a")
	for i := 0; i < 3; i++ {
		_, err := m.CreateSession(fmt.Sprintf("user-%d", i), []string{"a"})
		require.NoError(t, err)
	}

	m.Clear()
	assert.Empty(t, m.ListActive())
}
