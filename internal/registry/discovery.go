package registry

import (
	"context"
	"time"

	"github.com/crossdev/syncmesh/pkg/models"
)

// SimulatedDiscoverer stands in for a real discovery protocol. It
// reports a fixed set of nearby devices after a short delay, the same
// way the reference behavior stubbed discovery with timers.
type SimulatedDiscoverer struct {
	Delay   time.Duration
	Devices []models.Device
}

// NewSimulatedDiscoverer creates a discoverer with a representative
// phone/tablet/desktop neighborhood.
func NewSimulatedDiscoverer() *SimulatedDiscoverer {
	return &SimulatedDiscoverer{
		Delay: 100 * time.Millisecond,
		Devices: []models.Device{
			{
				ID:       "sim-phone-1",
				Name:     "Pixel 9",
				Type:     models.DeviceMobile,
				Platform: models.PlatformAndroid,
				Status:   models.StatusOnline,
				Capabilities: models.Capabilities{
					Screen:       models.Screen{Width: 412, Height: 915, PixelDensity: 2.6},
					Input:        []string{models.InputTouch, models.InputVoice},
					Sensors:      []string{models.SensorAccelerometer, models.SensorGyroscope, models.SensorGPS, models.SensorCamera, models.SensorMicrophone},
					Connectivity: []string{models.ConnWifi, models.ConnCellular, models.ConnBluetooth, models.ConnNFC},
					Storage:      models.Storage{Available: 32 << 30, Total: 128 << 30},
					Battery:      &models.Battery{Level: 0.85, Charging: false},
				},
			},
			{
				ID:       "sim-tablet-1",
				Name:     "iPad Air",
				Type:     models.DeviceTablet,
				Platform: models.PlatformIOS,
				Status:   models.StatusOnline,
				Capabilities: models.Capabilities{
					Screen:       models.Screen{Width: 820, Height: 1180, PixelDensity: 2.0},
					Input:        []string{models.InputTouch, models.InputVoice, models.InputGesture},
					Sensors:      []string{models.SensorAccelerometer, models.SensorGyroscope, models.SensorCamera, models.SensorMicrophone},
					Connectivity: []string{models.ConnWifi, models.ConnBluetooth},
					Storage:      models.Storage{Available: 64 << 30, Total: 256 << 30},
					Battery:      &models.Battery{Level: 0.6, Charging: true},
				},
			},
			{
				ID:       "sim-desktop-1",
				Name:     "Workstation",
				Type:     models.DeviceDesktop,
				Platform: models.PlatformLinux,
				Status:   models.StatusOnline,
				Capabilities: models.Capabilities{
					Screen:       models.Screen{Width: 2560, Height: 1440, PixelDensity: 1.0},
					Input:        []string{models.InputKeyboard, models.InputMouse, models.InputVoice},
					Sensors:      []string{models.SensorCamera, models.SensorMicrophone},
					Connectivity: []string{models.ConnWifi, models.ConnBluetooth},
					Storage:      models.Storage{Available: 512 << 30, Total: 1 << 40},
				},
			},
		},
	}
}

// Discover returns the simulated neighborhood after the configured delay.
func (d *SimulatedDiscoverer) Discover(ctx context.Context) ([]models.Device, error) {
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	devices := make([]models.Device, len(d.Devices))
	copy(devices, d.Devices)
	return devices, nil
}

// StaticDiscoverer returns a fixed device list immediately; used in tests.
type StaticDiscoverer struct {
	Devices []models.Device
	Err     error
}

func (d *StaticDiscoverer) Discover(ctx context.Context) ([]models.Device, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Devices, nil
}
