package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdev/syncmesh/internal/capability"
	"github.com/crossdev/syncmesh/internal/identity"
	"github.com/crossdev/syncmesh/pkg/models"
)

func testProvider() *capability.Static {
	return &capability.Static{
		Name: "test-host",
		Type: models.DeviceDesktop,
		OS:   models.PlatformLinux,
		Stats: models.Capabilities{
			Screen:       models.Screen{Width: 1920, Height: 1080, PixelDensity: 1.0},
			Input:        []string{models.InputKeyboard, models.InputMouse},
			Connectivity: []string{models.ConnWifi},
			Storage:      models.Storage{Available: 1 << 30, Total: 10 << 30},
		},
	}
}

func remoteDevice(id string, status models.DeviceStatus) models.Device {
	return models.Device{
		ID:       id,
		Name:     "remote-" + id,
		Type:     models.DeviceMobile,
		Platform: models.PlatformAndroid,
		Status:   status,
		Capabilities: models.Capabilities{
			Screen:       models.Screen{Width: 400, Height: 800, PixelDensity: 2.0},
			Input:        []string{models.InputTouch},
			Connectivity: []string{models.ConnWifi, models.ConnCellular},
		},
	}
}

func TestRegisterLocalIsIdempotent(t *testing.T) {
	reg := NewRegistry(testProvider(), identity.NewMemory(), &StaticDiscoverer{})

	first, err := reg.RegisterLocal()
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "test-host", first.Name)
	assert.Equal(t, models.StatusOnline, first.Status)

	second, err := reg.RegisterLocal()
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, reg.List(), 1)
}

func TestRegisterLocalReusesPersistedID(t *testing.T) {
	ident := identity.NewMemory()
	require.NoError(t, ident.Save(identity.DeviceIDKey, "persisted-id"))

	reg := NewRegistry(testProvider(), ident, &StaticDiscoverer{})
	local, err := reg.RegisterLocal()
	require.NoError(t, err)
	assert.Equal(t, "persisted-id", local.ID)
	assert.Equal(t, "persisted-id", reg.LocalID())
}

func TestDiscoverMergesAndRefreshes(t *testing.T) {
	disc := &StaticDiscoverer{Devices: []models.Device{
		remoteDevice("phone-1", models.StatusOnline),
		remoteDevice("phone-2", models.StatusOffline),
	}}
	reg := NewRegistry(testProvider(), identity.NewMemory(), disc)

	devices := reg.Discover(context.Background())
	require.Len(t, devices, 2)

	phone, ok := reg.Get("phone-1")
	require.True(t, ok)
	firstSeen := phone.LastSeen

	// A second pass must refresh LastSeen without duplicating entries.
	devices = reg.Discover(context.Background())
	require.Len(t, devices, 2)

	phone, ok = reg.Get("phone-1")
	require.True(t, ok)
	assert.False(t, phone.LastSeen.Before(firstSeen))
}

func TestDiscoverFailureIsNonFatal(t *testing.T) {
	disc := &StaticDiscoverer{Devices: []models.Device{remoteDevice("phone-1", models.StatusOnline)}}
	reg := NewRegistry(testProvider(), identity.NewMemory(), disc)
	reg.Discover(context.Background())

	// Discovery starts failing; known devices must survive.
	disc.Err = fmt.Errorf("network down")
	devices := reg.Discover(context.Background())
	assert.Len(t, devices, 1)

	_, ok := reg.Get("phone-1")
	assert.True(t, ok)
}

func TestListOnline(t *testing.T) {
	disc := &StaticDiscoverer{Devices: []models.Device{
		remoteDevice("up", models.StatusOnline),
		remoteDevice("down", models.StatusOffline),
	}}
	reg := NewRegistry(testProvider(), identity.NewMemory(), disc)
	reg.Discover(context.Background())

	online := reg.ListOnline()
	require.Len(t, online, 1)
	assert.Equal(t, "up", online[0].ID)
}

func TestSetStatus(t *testing.T) {
	disc := &StaticDiscoverer{Devices: []models.Device{remoteDevice("phone-1", models.StatusOnline)}}
	reg := NewRegistry(testProvider(), identity.NewMemory(), disc)
	reg.Discover(context.Background())

	reg.SetStatus("phone-1", models.StatusError)
	phone, ok := reg.Get("phone-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusError, phone.Status)

	// Unknown devices are ignored, not an error.
	reg.SetStatus("missing", models.StatusOnline)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	disc := &StaticDiscoverer{Devices: []models.Device{remoteDevice("phone-1", models.StatusOnline)}}
	reg := NewRegistry(testProvider(), identity.NewMemory(), disc)
	reg.Discover(context.Background())

	dev, ok := reg.Get("phone-1")
	require.True(t, ok)
	dev.Status = models.StatusError
	dev.Capabilities.Screen.Width = 1

	fresh, ok := reg.Get("phone-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusOnline, fresh.Status)
	assert.Equal(t, 400, fresh.Capabilities.Screen.Width)
}

func TestConcurrentDiscoverAndRead(t *testing.T) {
	disc := &StaticDiscoverer{Devices: []models.Device{remoteDevice("phone-1", models.StatusOnline)}}
	reg := NewRegistry(testProvider(), identity.NewMemory(), disc)
	reg.Discover(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			reg.Discover(context.Background())
			reg.Touch("phone-1")
		}
	}()
	for i := 0; i < 200; i++ {
		dev, ok := reg.Get("phone-1")
		require.True(t, ok)
		_, err := json.Marshal(dev)
		require.NoError(t, err)
		reg.ListOnline()
	}
	<-done
}

func TestClear(t *testing.T) {
	reg := NewRegistry(testProvider(), identity.NewMemory(), &StaticDiscoverer{})
	_, err := reg.RegisterLocal()
	require.NoError(t, err)

	reg.Clear()
	assert.Empty(t, reg.List())
	assert.Empty(t, reg.LocalID())
}
