package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"klutch/log"
	"klutch/screen"
	"klutch/vision"
)

const (
	// DefaultFrameInterval is the screen sampling cadence.
	DefaultFrameInterval = time.Second
	// DefaultClassifyInterval is the minimum spacing between
	// classification calls, regardless of tick rate.
	DefaultClassifyInterval = 5 * time.Second
)

// FrameSampler captures one screen frame per tick, sends it to the
// session transport, and piggybacks the context classifier on the
// same frame. Classification is single-flight: a compare-and-set
// guard ensures at most one call chain is outstanding, and the
// minimum interval applies even when ticks come faster.
type FrameSampler struct {
	source     screen.Source
	classifier vision.Classifier
	sink       Sink
	send       func([]byte) error
	onErr      func(error)

	frameInterval    time.Duration
	classifyInterval time.Duration

	inFlight     atomic.Bool
	lastClassify time.Time // touched only from the tick loop
	lastLabel    string    // touched only under the in-flight guard

	windowStart  time.Time // diagnostic fps window, tick loop only
	windowFrames int

	framesSent atomic.Int64
	frameBytes atomic.Int64
	classifies atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
}

func NewFrameSampler(source screen.Source, classifier vision.Classifier, sink Sink) *FrameSampler {
	return &FrameSampler{
		source:           source,
		classifier:       classifier,
		sink:             sink,
		frameInterval:    DefaultFrameInterval,
		classifyInterval: DefaultClassifyInterval,
		done:             make(chan struct{}),
	}
}

// Start begins ticking. send forwards a compressed frame to the
// transport; a send failure stops the sampler and is reported once
// via onErr.
func (s *FrameSampler) Start(ctx context.Context, send func([]byte) error, onErr func(error)) {
	s.send = send
	s.onErr = onErr
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.frameInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if !s.tick(ctx, now) {
					return
				}
			case <-s.done:
				return
			}
		}
	}()
}

// Stop halts ticking and waits for any in-flight classification to
// settle.
func (s *FrameSampler) Stop() {
	close(s.done)
	s.wg.Wait()
}

// FramesSent reports how many frames have been transmitted.
func (s *FrameSampler) FramesSent() int64 { return s.framesSent.Load() }

// FrameBytes reports the total compressed size of transmitted frames.
func (s *FrameSampler) FrameBytes() int64 { return s.frameBytes.Load() }

// Classifies reports how many classification chains were started.
func (s *FrameSampler) Classifies() int64 { return s.classifies.Load() }

// tick runs one sampling pass. It returns false when the transport
// rejected the frame and the sampler should stop.
func (s *FrameSampler) tick(ctx context.Context, now time.Time) bool {
	img, err := s.source.Capture()
	if err != nil {
		// A source that is still buffering just skips the tick.
		if !errors.Is(err, screen.ErrNotReady) {
			log.Warnf("frame capture: %v", err)
		}
		return true
	}

	jpeg, err := screen.Compress(img, screen.DefaultDownscale, screen.DefaultJPEGQuality)
	if err != nil {
		log.Warnf("frame compress: %v", err)
		return true
	}

	if err := s.send(jpeg); err != nil {
		s.onErr(err)
		return false
	}
	s.framesSent.Add(1)
	s.frameBytes.Add(int64(len(jpeg)))
	s.countFrame(now)

	s.maybeClassify(ctx, now, jpeg)
	return true
}

// countFrame maintains the diagnostic frames-per-second reading over
// a rolling one-second window.
func (s *FrameSampler) countFrame(now time.Time) {
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	if elapsed := now.Sub(s.windowStart); elapsed >= time.Second {
		s.sink.FrameRate(int(float64(s.windowFrames)/elapsed.Seconds() + 0.5))
		s.windowStart = now
		s.windowFrames = 0
	}
	s.windowFrames++
}

// maybeClassify starts one classification call chain if the minimum
// interval has passed and no chain is outstanding. The guard stays
// set through the advisory lookup so the whole chain is single-flight.
func (s *FrameSampler) maybeClassify(ctx context.Context, now time.Time, jpeg []byte) {
	if now.Sub(s.lastClassify) < s.classifyInterval {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	s.lastClassify = now
	s.classifies.Add(1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		label, err := s.classifier.Classify(ctx, jpeg)
		if err != nil {
			log.Warnf("classify: %v", err)
			label = vision.UnknownLabel
		}
		if label == s.lastLabel || label == vision.UnknownLabel {
			return
		}
		s.lastLabel = label
		s.sink.ContextLabel(label)

		tips, err := s.classifier.Advise(ctx, label)
		if err != nil {
			log.Warnf("advise: %v", err)
		}
		// The full list replaces the previous one in a single call.
		s.sink.Advisories(tips)
	}()
}
