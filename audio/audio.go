package audio

import (
	"errors"
	"strings"
)

const WAVHeaderSize = 44

// ErrNoDevice is returned when the platform reports no capture source.
var ErrNoDevice = errors.New("no capture device available")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether the input is a headset
// running over a low-bandwidth bluetooth profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian signed 16-bit PCM. It runs on the
// device thread; implementations must not block.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates sources and opens capture streams on them.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is one live microphone stream. Start acquires the
// underlying source; Stop releases it. Close frees everything and is safe
// to call after Stop.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// DeviceLabel renders a device for status lines, flagging bluetooth inputs.
func DeviceLabel(dev *DeviceInfo) string {
	if dev == nil {
		return "system default"
	}
	if IsBluetooth(dev.Name) {
		return dev.Name + " (BT!)"
	}
	return dev.Name
}

// FindDevice returns the device whose name matches, or nil.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, nil
}
