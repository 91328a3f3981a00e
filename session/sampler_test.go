package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"klutch/screen"
	"klutch/vision"
)

func newTestSampler(source *screen.FakeSource, fc *vision.FakeClassifier, sink Sink) *FrameSampler {
	if sink == nil {
		sink = NopSink{}
	}
	s := NewFrameSampler(source, fc, sink)
	return s
}

func TestSamplerSendsCompressedFrame(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(90, 60))
	s := newTestSampler(source, vision.NewFakeClassifier(), nil)

	var sent [][]byte
	s.send = func(b []byte) error { sent = append(sent, b); return nil }
	s.onErr = func(err error) { t.Errorf("unexpected error: %v", err) }

	base := time.Now()
	if !s.tick(context.Background(), base) {
		t.Fatal("tick reported transport failure")
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	// JPEG SOI marker.
	if sent[0][0] != 0xff || sent[0][1] != 0xd8 {
		t.Error("frame is not a JPEG")
	}
	if s.FramesSent() != 1 {
		t.Errorf("FramesSent = %d, want 1", s.FramesSent())
	}
	if s.FrameBytes() != int64(len(sent[0])) {
		t.Errorf("FrameBytes = %d, want %d", s.FrameBytes(), len(sent[0]))
	}
}

func TestSamplerSkipsWhenNotReady(t *testing.T) {
	source := screen.NewFakeSource()
	s := newTestSampler(source, vision.NewFakeClassifier(), nil)

	var sends atomic.Int64
	s.send = func([]byte) error { sends.Add(1); return nil }
	s.onErr = func(err error) { t.Errorf("unexpected error: %v", err) }

	if !s.tick(context.Background(), time.Now()) {
		t.Fatal("not-ready tick should not stop the sampler")
	}
	if sends.Load() != 0 {
		t.Error("frame sent from a source with no frame")
	}
}

func TestClassifierMinimumInterval(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(30, 30))
	fc := vision.NewFakeClassifier("in a menu")
	s := newTestSampler(source, fc, nil)
	s.send = func([]byte) error { return nil }
	s.onErr = func(error) {}

	base := time.Now()
	s.tick(context.Background(), base)
	// Second tick 2s later, inside the 5s minimum.
	s.tick(context.Background(), base.Add(2*time.Second))
	s.wg.Wait()

	if got := fc.ClassifyCalls.Load(); got != 1 {
		t.Fatalf("classify calls = %d, want 1", got)
	}

	// Past the minimum the next tick classifies again.
	s.tick(context.Background(), base.Add(6*time.Second))
	s.wg.Wait()
	if got := fc.ClassifyCalls.Load(); got != 2 {
		t.Fatalf("classify calls = %d, want 2", got)
	}
	if s.Classifies() != 2 {
		t.Errorf("Classifies = %d, want 2", s.Classifies())
	}
}

func TestClassifierSingleFlight(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(30, 30))
	fc := vision.NewFakeClassifier("in a menu")
	fc.Block = make(chan struct{})
	s := newTestSampler(source, fc, nil)
	s.send = func([]byte) error { return nil }
	s.onErr = func(error) {}

	base := time.Now()
	s.tick(context.Background(), base)
	// Far past the minimum, but the first call is still in flight.
	s.tick(context.Background(), base.Add(10*time.Second))

	if got := fc.ClassifyCalls.Load(); got != 1 {
		t.Fatalf("classify calls = %d while one in flight, want 1", got)
	}
	if !s.inFlight.Load() {
		t.Error("in-flight guard not set during pending call")
	}

	close(fc.Block)
	s.wg.Wait()
	if s.inFlight.Load() {
		t.Error("in-flight guard still set after call settled")
	}
}

func TestLabelChangeTriggersAdvisories(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(30, 30))
	fc := vision.NewFakeClassifier("in a menu", "playing a shooter")
	fc.SetAdvisories("watch the flank", "hold the angle")
	sink := NewFakeSink()
	s := newTestSampler(source, fc, sink)
	s.send = func([]byte) error { return nil }
	s.onErr = func(error) {}

	base := time.Now()
	s.tick(context.Background(), base)
	s.wg.Wait()
	s.tick(context.Background(), base.Add(6*time.Second))
	s.wg.Wait()
	// Same label again: no new advisory lookup.
	s.tick(context.Background(), base.Add(12*time.Second))
	s.wg.Wait()

	labels := sink.Labels()
	if len(labels) != 2 || labels[0] != "in a menu" || labels[1] != "playing a shooter" {
		t.Fatalf("labels = %v", labels)
	}
	if got := fc.AdviseCalls.Load(); got != 2 {
		t.Errorf("advise calls = %d, want 2", got)
	}
	sets := sink.AdvisorySets()
	if len(sets) != 2 || len(sets[1]) != 2 || sets[1][0] != "watch the flank" {
		t.Errorf("advisory sets = %v", sets)
	}
}

func TestUnknownLabelDoesNotAdvise(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(30, 30))
	fc := vision.NewFakeClassifier(vision.UnknownLabel)
	sink := NewFakeSink()
	s := newTestSampler(source, fc, sink)
	s.send = func([]byte) error { return nil }
	s.onErr = func(error) {}

	s.tick(context.Background(), time.Now())
	s.wg.Wait()

	if got := fc.AdviseCalls.Load(); got != 0 {
		t.Errorf("advise calls = %d for unknown label, want 0", got)
	}
	if len(sink.Labels()) != 0 {
		t.Errorf("labels = %v, want none", sink.Labels())
	}
}

func TestFrameRateCounter(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(30, 30))
	sink := NewFakeSink()
	s := newTestSampler(source, vision.NewFakeClassifier(), sink)
	s.classifyInterval = time.Hour
	s.send = func([]byte) error { return nil }
	s.onErr = func(error) {}

	base := time.Now()
	s.lastClassify = base // keep the classifier quiet
	for i := 0; i < 4; i++ {
		s.tick(context.Background(), base.Add(time.Duration(i)*time.Second))
	}
	s.wg.Wait()

	rates := sink.frameRates
	if len(rates) == 0 {
		t.Fatal("frame rate never reported")
	}
	for _, fps := range rates {
		if fps != 1 {
			t.Errorf("fps = %d, want 1 at one frame per second", fps)
		}
	}
}

func TestSamplerStopsOnSendFailure(t *testing.T) {
	source := screen.NewFakeSource()
	source.SetFrame(screen.FakeFrame(30, 30))
	s := newTestSampler(source, vision.NewFakeClassifier(), nil)

	var reported atomic.Int64
	s.send = func([]byte) error { return ErrTransportClosed }
	s.onErr = func(error) { reported.Add(1) }

	if s.tick(context.Background(), time.Now()) {
		t.Error("tick should report stop on send failure")
	}
	if reported.Load() != 1 {
		t.Errorf("onErr called %d times, want 1", reported.Load())
	}
}
