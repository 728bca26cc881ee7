package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossdev/syncmesh/internal/capability"
	"github.com/crossdev/syncmesh/internal/identity"
	"github.com/crossdev/syncmesh/pkg/models"
)

// Discoverer finds participating devices. Real deployments plug in an
// actual discovery protocol; tests and the reference behavior use the
// simulated implementation.
type Discoverer interface {
	Discover(ctx context.Context) ([]models.Device, error)
}

// Registry is the single source of truth for known devices. Stored
// entries are never written in place: every update replaces the entry
// with a fresh copy under the mutex, and reads hand out copies, so
// the scheduler and the API layer can read without coordination.
type Registry struct {
	devices    sync.Map // deviceID -> *models.Device, replaced wholesale on update
	mu         sync.Mutex
	localID    string
	provider   capability.Provider
	ident      identity.Store
	discoverer Discoverer
}

// NewRegistry creates a device registry backed by the given capability
// provider, identity store and discovery transport.
func NewRegistry(provider capability.Provider, ident identity.Store, discoverer Discoverer) *Registry {
	return &Registry{
		provider:   provider,
		ident:      ident,
		discoverer: discoverer,
	}
}

// RegisterLocal builds the local device from capability detection and
// inserts it into the registry. Idempotent: the device id persisted by
// a previous run is reused, and repeated calls return the same entry.
func (r *Registry) RegisterLocal() (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.localID != "" {
		if dev, ok := r.get(r.localID); ok {
			return dev, nil
		}
	}

	id, ok, err := r.ident.Load(identity.DeviceIDKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load device id: %w", err)
	}
	if !ok {
		id = uuid.New().String()
		if err := r.ident.Save(identity.DeviceIDKey, id); err != nil {
			return nil, fmt.Errorf("failed to persist device id: %w", err)
		}
	}

	device := &models.Device{
		ID:           id,
		Name:         r.provider.DeviceName(),
		Type:         r.provider.DeviceType(),
		Platform:     r.provider.Platform(),
		Capabilities: r.provider.Detect(),
		Status:       models.StatusOnline,
		LastSeen:     time.Now(),
		SessionID:    uuid.New().String(),
	}

	r.devices.Store(device.ID, device)
	r.localID = device.ID

	out := *device
	return &out, nil
}

// LocalID returns the id of the local device, empty before RegisterLocal.
func (r *Registry) LocalID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.localID
}

// Discover merges newly found devices into the registry and refreshes
// LastSeen for devices seen again. Devices that fail to respond are
// never removed, only aged. Discovery failures are non-fatal.
func (r *Registry) Discover(ctx context.Context) []*models.Device {
	found, err := r.discoverer.Discover(ctx)
	if err != nil {
		log.Printf("Device discovery failed (non-fatal): %v", err)
		return r.List()
	}

	now := time.Now()
	r.mu.Lock()
	for i := range found {
		dev := found[i]
		if value, ok := r.devices.Load(dev.ID); ok {
			updated := *(value.(*models.Device))
			updated.Status = dev.Status
			updated.LastSeen = now
			updated.Capabilities = dev.Capabilities
			r.devices.Store(updated.ID, &updated)
			continue
		}
		dev.LastSeen = now
		r.devices.Store(dev.ID, &dev)
	}
	r.mu.Unlock()

	return r.List()
}

// Get retrieves a copy of a device by id.
func (r *Registry) Get(id string) (*models.Device, bool) {
	return r.get(id)
}

func (r *Registry) get(id string) (*models.Device, bool) {
	value, ok := r.devices.Load(id)
	if !ok {
		return nil, false
	}
	dev := *(value.(*models.Device))
	return &dev, true
}

// List returns copies of all known devices.
func (r *Registry) List() []*models.Device {
	var devices []*models.Device
	r.devices.Range(func(key, value interface{}) bool {
		dev := *(value.(*models.Device))
		devices = append(devices, &dev)
		return true
	})
	return devices
}

// ListOnline returns all devices currently reporting online.
func (r *Registry) ListOnline() []*models.Device {
	var devices []*models.Device
	r.devices.Range(func(key, value interface{}) bool {
		dev := *(value.(*models.Device))
		if dev.Status == models.StatusOnline {
			devices = append(devices, &dev)
		}
		return true
	})
	return devices
}

// SetStatus transitions a device's status; used by sync outcomes.
// Missing devices are ignored, callers must check presence themselves.
func (r *Registry) SetStatus(id string, status models.DeviceStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value, ok := r.devices.Load(id); ok {
		updated := *(value.(*models.Device))
		updated.Status = status
		updated.LastSeen = time.Now()
		r.devices.Store(id, &updated)
	}
}

// Touch bumps a device's LastSeen without changing its status.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value, ok := r.devices.Load(id); ok {
		updated := *(value.(*models.Device))
		updated.LastSeen = time.Now()
		r.devices.Store(id, &updated)
	}
}

// Clear removes every device; engine teardown only.
func (r *Registry) Clear() {
	r.devices.Range(func(key, value interface{}) bool {
		r.devices.Delete(key)
		return true
	})
	r.mu.Lock()
	r.localID = ""
	r.mu.Unlock()
}
