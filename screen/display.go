package screen

import (
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
)

// DisplaySource captures a physical display. Unlike a browser share
// there is no user-revocable track, so Ended only fires when the
// display disappears between captures.
type DisplaySource struct {
	index int

	mu      sync.Mutex
	started bool
	endOnce sync.Once
	ended   chan struct{}
}

func NewDisplaySource(displayIndex int) *DisplaySource {
	return &DisplaySource{
		index: displayIndex,
		ended: make(chan struct{}),
	}
}

func (d *DisplaySource) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return ErrNotSupported
	}
	if d.index >= n {
		return fmt.Errorf("%w: display %d of %d", ErrDisplayNotFound, d.index, n)
	}
	d.started = true
	return nil
}

func (d *DisplaySource) Capture() (image.Image, error) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return nil, ErrNotReady
	}

	if d.index >= screenshot.NumActiveDisplays() {
		d.endOnce.Do(func() { close(d.ended) })
		return nil, ErrDisplayNotFound
	}

	img, err := screenshot.CaptureDisplay(d.index)
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}
	return img, nil
}

func (d *DisplaySource) Ended() <-chan struct{} {
	return d.ended
}

func (d *DisplaySource) Close() error {
	d.mu.Lock()
	d.started = false
	d.mu.Unlock()
	return nil
}
