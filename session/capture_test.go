package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"klutch/audio"
	"klutch/pcm"
)

// collector records blocks passed to the pipeline's send function.
type collector struct {
	mu     sync.Mutex
	blocks [][]byte
	err    error
}

func (c *collector) send(block []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestCapture(t *testing.T) *audio.FakeCapture {
	t.Helper()
	actx := audio.NewFakeContext()
	dev, err := actx.NewCapture(nil, audio.CaptureConfig{SampleRate: pcm.InputSampleRate, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Start(); err != nil {
		t.Fatal(err)
	}
	return dev.(*audio.FakeCapture)
}

func TestCaptureForwardsFullBlocks(t *testing.T) {
	dev := newTestCapture(t)
	var muted atomic.Bool
	var sink collector

	p := NewCapturePipeline(dev, &muted, nil)
	p.Start(sink.send, func(err error) { t.Errorf("unexpected error: %v", err) })
	defer p.Stop()

	// Two half blocks accumulate into one full block.
	dev.Emit(pcm.BlockSize / 2)
	dev.Emit(pcm.BlockSize / 2)

	waitFor(t, func() bool { return sink.count() == 1 })
	sink.mu.Lock()
	got := len(sink.blocks[0])
	sink.mu.Unlock()
	if got != blockBytes {
		t.Errorf("block size = %d bytes, want %d", got, blockBytes)
	}
}

func TestCaptureMuteDropsNotZeroes(t *testing.T) {
	dev := newTestCapture(t)
	var muted atomic.Bool
	var sink collector

	p := NewCapturePipeline(dev, &muted, nil)
	p.Start(sink.send, func(err error) { t.Errorf("unexpected error: %v", err) })
	defer p.Stop()

	muted.Store(true)
	for i := 0; i < 3; i++ {
		dev.Emit(pcm.BlockSize)
	}
	// The device kept draining but nothing went out.
	time.Sleep(20 * time.Millisecond)
	if got := sink.count(); got != 0 {
		t.Fatalf("sent %d blocks while muted, want 0", got)
	}

	muted.Store(false)
	dev.Emit(pcm.BlockSize)
	waitFor(t, func() bool { return sink.count() == 1 })
}

func TestCaptureLevelReportedWhileMuted(t *testing.T) {
	dev := newTestCapture(t)
	var muted atomic.Bool
	muted.Store(true)
	var sink collector

	var levels atomic.Int64
	p := NewCapturePipeline(dev, &muted, func(rms float64) {
		if rms > 0 {
			levels.Add(1)
		}
	})
	p.Start(sink.send, func(err error) { t.Errorf("unexpected error: %v", err) })
	defer p.Stop()

	dev.Emit(pcm.BlockSize)
	waitFor(t, func() bool { return levels.Load() == 1 })
	if sink.count() != 0 {
		t.Error("muted block was transmitted")
	}
}

func TestCaptureSendFailureReportsOnce(t *testing.T) {
	dev := newTestCapture(t)
	var muted atomic.Bool
	sink := collector{err: errors.New("boom")}

	var reports atomic.Int64
	p := NewCapturePipeline(dev, &muted, nil)
	p.Start(sink.send, func(error) { reports.Add(1) })

	dev.Emit(pcm.BlockSize)
	dev.Emit(pcm.BlockSize)

	waitFor(t, func() bool { return reports.Load() == 1 })
	time.Sleep(10 * time.Millisecond)
	if got := reports.Load(); got != 1 {
		t.Errorf("error reported %d times, want 1", got)
	}
}
