// Package audio owns the capture and playback device layer. Real
// implementations are selected per platform (PulseAudio on Linux,
// miniaudio elsewhere); fakes live in fake.go.
package audio

import "strings"

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"jbl ", "bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth reports whether a device name looks like a Bluetooth
// headset. BT links add enough latency to hurt a live conversation.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives captured PCM16 bytes from the device thread.
// It must not block.
type DataCallback func(data []byte, frameCount uint32)

// RenderCallback fills out with PCM16 bytes for the output device.
// It must not block.
type RenderCallback func(out []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type PlaybackConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayback(config PlaybackConfig, render RenderCallback) (PlaybackDevice, error)
	Close()
}

// CaptureDevice is a microphone handle. The callback is swappable so a
// reconnect can re-point an already-open device at a new session
// without re-acquiring it.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	// Ended signals that the device went away mid-capture (unplugged,
	// backend died). It never fires for a deliberate Stop.
	Ended() <-chan struct{}
}

type PlaybackDevice interface {
	Start() error
	Stop()
	Close()
}
