// Package screen provides the shared-screen frame source and the
// downscale/compress step applied before frames go on the wire.
package screen

import (
	"errors"
	"image"
)

var (
	// ErrNotReady means the source has no frame yet; the caller skips
	// the tick and tries again later.
	ErrNotReady = errors.New("screen: source not ready")

	ErrNotSupported     = errors.New("screen: capture not supported on this platform")
	ErrPermissionDenied = errors.New("screen: capture permission denied")
	ErrDisplayNotFound  = errors.New("screen: display not found")
)

// Source is a live screen-share feed.
type Source interface {
	// Start acquires the screen. Permission failures surface here.
	Start() error

	// Capture returns the current frame, or ErrNotReady while the
	// source is still buffering.
	Capture() (image.Image, error)

	// Ended signals the feed went away (user stopped sharing, display
	// disconnected).
	Ended() <-chan struct{}

	Close() error
}
