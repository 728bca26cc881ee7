package models

import "time"

// DeviceType is the coarse device class used in compatibility and
// recommendation heuristics.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceWatch   DeviceType = "watch"
	DeviceTV      DeviceType = "tv"
	DeviceAR      DeviceType = "ar"
	DeviceVR      DeviceType = "vr"
)

// Platform identifies the operating system family of a device.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// DeviceStatus represents the current reachability of a device.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusSyncing DeviceStatus = "syncing"
	StatusError   DeviceStatus = "error"
)

// Input capability identifiers.
const (
	InputTouch    = "touch"
	InputKeyboard = "keyboard"
	InputMouse    = "mouse"
	InputVoice    = "voice"
	InputGesture  = "gesture"
)

// Sensor capability identifiers.
const (
	SensorAccelerometer = "accelerometer"
	SensorGyroscope     = "gyroscope"
	SensorGPS           = "gps"
	SensorCamera        = "camera"
	SensorMicrophone    = "microphone"
)

// Connectivity capability identifiers.
const (
	ConnWifi      = "wifi"
	ConnCellular  = "cellular"
	ConnBluetooth = "bluetooth"
	ConnNFC       = "nfc"
)

// Screen describes the display of a device.
type Screen struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	PixelDensity float64 `json:"pixelDensity"`
}

// Storage describes available and total storage in bytes.
type Storage struct {
	Available int64 `json:"available"`
	Total     int64 `json:"total"`
}

// Battery describes battery state for battery-powered devices.
type Battery struct {
	Level    float64 `json:"level"` // 0..1
	Charging bool    `json:"charging"`
}

// Capabilities is the capability snapshot of a device.
type Capabilities struct {
	Screen       Screen   `json:"screen"`
	Input        []string `json:"input"`
	Sensors      []string `json:"sensors"`
	Connectivity []string `json:"connectivity"`
	Storage      Storage  `json:"storage"`
	Battery      *Battery `json:"battery,omitempty"`
}

// HasInput reports whether the device supports the given input method.
func (c Capabilities) HasInput(kind string) bool {
	return contains(c.Input, kind)
}

// HasConnectivity reports whether the device supports the given link type.
func (c Capabilities) HasConnectivity(kind string) bool {
	return contains(c.Connectivity, kind)
}

func contains(set []string, want string) bool {
	for _, s := range set {
		if s == want {
			return true
		}
	}
	return false
}

// Location is an optional last-known position of a device.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Device is the identity and capability snapshot of a participating device.
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         DeviceType   `json:"type"`
	Platform     Platform     `json:"platform"`
	Capabilities Capabilities `json:"capabilities"`
	Status       DeviceStatus `json:"status"`
	LastSeen     time.Time    `json:"lastSeen"`
	Location     *Location    `json:"location,omitempty"`
	SessionID    string       `json:"sessionId,omitempty"`
}

// IsDesktopClass reports whether the device counts as desktop-class for
// recommendation scoring.
func (d *Device) IsDesktopClass() bool {
	return d.Type == DeviceDesktop
}

// IsMobileClass reports whether the device counts as mobile-class.
func (d *Device) IsMobileClass() bool {
	return d.Type == DeviceMobile || d.Type == DeviceWatch
}
