package audio

import (
	"sync"
	"sync/atomic"
)

// FakeContext is an in-memory device layer for tests. It counts
// capture acquisitions so reconnect behavior can be asserted.
type FakeContext struct {
	mu           sync.Mutex
	captures     []*FakeCapture
	playbacks    []*FakePlayback
	CaptureCalls int
	CaptureErr   error
}

func NewFakeContext() *FakeContext {
	return &FakeContext{}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake0", Name: "fake mic"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CaptureCalls++
	if f.CaptureErr != nil {
		return nil, f.CaptureErr
	}
	c := &FakeCapture{ended: make(chan struct{})}
	f.captures = append(f.captures, c)
	return c, nil
}

func (f *FakeContext) NewPlayback(_ PlaybackConfig, render RenderCallback) (PlaybackDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &FakePlayback{render: render}
	f.playbacks = append(f.playbacks, p)
	return p, nil
}

func (f *FakeContext) Close() {}

// Acquisitions reports how many capture devices have been opened.
func (f *FakeContext) Acquisitions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CaptureCalls
}

// Capture returns the n-th acquired capture device.
func (f *FakeContext) Capture(n int) *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= len(f.captures) {
		return nil
	}
	return f.captures[n]
}

type FakeCapture struct {
	callback atomic.Pointer[DataCallback]
	started  atomic.Bool
	endOnce  sync.Once
	ended    chan struct{}
}

func (c *FakeCapture) Start() error {
	c.started.Store(true)
	return nil
}

func (c *FakeCapture) Stop()  { c.started.Store(false) }
func (c *FakeCapture) Close() { c.started.Store(false) }

func (c *FakeCapture) SetCallback(cb DataCallback) { c.callback.Store(&cb) }
func (c *FakeCapture) ClearCallback()              { c.callback.Store(nil) }

func (c *FakeCapture) Ended() <-chan struct{} { return c.ended }

func (c *FakeCapture) Started() bool { return c.started.Load() }

// Attached reports whether a consumer currently has a callback set.
func (c *FakeCapture) Attached() bool { return c.callback.Load() != nil }

// Emit pushes one synthetic PCM16 block through the capture callback,
// as the device thread would.
func (c *FakeCapture) Emit(samples int) {
	cb := c.callback.Load()
	if cb == nil || !c.started.Load() {
		return
	}
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		data[i*2] = byte(i)
		data[i*2+1] = byte(i >> 8)
	}
	(*cb)(data, uint32(samples))
}

// Lose simulates the device vanishing mid-session.
func (c *FakeCapture) Lose() {
	c.endOnce.Do(func() { close(c.ended) })
}

type FakePlayback struct {
	render  RenderCallback
	started atomic.Bool
}

func (p *FakePlayback) Start() error {
	p.started.Store(true)
	return nil
}

func (p *FakePlayback) Stop()  { p.started.Store(false) }
func (p *FakePlayback) Close() { p.started.Store(false) }

func (p *FakePlayback) Started() bool { return p.started.Load() }

// Pull asks the render callback for n frames, like the output device
// callback would, and returns the rendered bytes.
func (p *FakePlayback) Pull(frames int) []byte {
	out := make([]byte, frames*2)
	p.render(out, uint32(frames))
	return out
}
