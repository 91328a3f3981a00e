package screen

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"
)

// FakeSource is an in-memory Source for tests.
type FakeSource struct {
	mu       sync.Mutex
	frame    image.Image
	ready    bool
	started  bool
	startErr error
	endOnce  sync.Once
	ended    chan struct{}
	Captures atomic.Int64
}

func NewFakeSource() *FakeSource {
	return &FakeSource{ended: make(chan struct{})}
}

// FakeFrame builds a small solid-color test frame.
func FakeFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func (f *FakeSource) SetFrame(img image.Image) {
	f.mu.Lock()
	f.frame = img
	f.ready = img != nil
	f.mu.Unlock()
}

func (f *FakeSource) SetStartErr(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *FakeSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *FakeSource) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeSource) Capture() (image.Image, error) {
	f.Captures.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return nil, ErrNotReady
	}
	return f.frame, nil
}

func (f *FakeSource) Ended() <-chan struct{} { return f.ended }

// End simulates the user stopping the share.
func (f *FakeSource) End() {
	f.endOnce.Do(func() { close(f.ended) })
}

func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
	return nil
}
