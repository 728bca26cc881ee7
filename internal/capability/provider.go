package capability

import (
	"os"
	"runtime"

	"github.com/crossdev/syncmesh/pkg/models"
)

// Provider describes the local execution environment. The engine only
// depends on this interface; tests supply a Static provider.
type Provider interface {
	DeviceName() string
	DeviceType() models.DeviceType
	Platform() models.Platform
	Detect() models.Capabilities
}

// Host inspects the local process environment and produces a
// capability profile for the device the engine is running on.
type Host struct{}

// NewHost creates a host capability provider.
func NewHost() *Host {
	return &Host{}
}

// DeviceName returns the hostname, or a fallback when unavailable.
func (h *Host) DeviceName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local-device"
	}
	return name
}

// DeviceType classifies the local host. Anything running this process
// natively is desktop-class; the web platform would report through a
// different provider.
func (h *Host) DeviceType() models.DeviceType {
	return models.DeviceDesktop
}

// Platform maps the runtime OS onto the engine's platform set.
func (h *Host) Platform() models.Platform {
	switch runtime.GOOS {
	case "darwin":
		return models.PlatformMacOS
	case "windows":
		return models.PlatformWindows
	case "ios":
		return models.PlatformIOS
	case "android":
		return models.PlatformAndroid
	default:
		return models.PlatformLinux
	}
}

// Detect builds the capability snapshot for the local host. Desktop
// hosts get a conservative default profile; screen geometry is not
// queryable without a display server binding, so defaults stand in.
func (h *Host) Detect() models.Capabilities {
	return models.Capabilities{
		Screen: models.Screen{
			Width:        1920,
			Height:       1080,
			PixelDensity: 1.0,
		},
		Input:        []string{models.InputKeyboard, models.InputMouse},
		Sensors:      []string{models.SensorCamera, models.SensorMicrophone},
		Connectivity: []string{models.ConnWifi, models.ConnBluetooth},
		Storage: models.Storage{
			Available: 64 << 30,
			Total:     256 << 30,
		},
	}
}

// Static is a deterministic provider for tests and simulations.
type Static struct {
	Name  string
	Type  models.DeviceType
	OS    models.Platform
	Stats models.Capabilities
}

func (s *Static) DeviceName() string            { return s.Name }
func (s *Static) DeviceType() models.DeviceType { return s.Type }
func (s *Static) Platform() models.Platform     { return s.OS }
func (s *Static) Detect() models.Capabilities   { return s.Stats }
