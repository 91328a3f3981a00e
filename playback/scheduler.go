// Package playback schedules received model audio onto a gapless
// output timeline. Segments are queued back to back: each one starts
// where the previous ends, or immediately when the line has gone idle.
// An interruption discards everything still queued and resets the
// timeline so the next segment plays right away.
package playback

import (
	"sync"

	"klutch/pcm"
)

type segment struct {
	start int64 // clock position of the first sample, in samples
	data  []byte
}

func (s *segment) end() int64 {
	return s.start + int64(len(s.data)/pcm.BytesPerSample)
}

// Scheduler owns the output timeline. The clock counts rendered
// samples: Render advances it by exactly the frames the device asked
// for, so scheduling arithmetic never touches the wall clock and two
// segments can never overlap.
type Scheduler struct {
	mu        sync.Mutex
	clock     int64
	nextStart int64
	queue     []*segment
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Enqueue schedules raw PCM16 data after everything already queued.
// If the cursor has fallen behind the clock (the line went idle) the
// segment starts now instead of in the past.
func (s *Scheduler) Enqueue(data []byte) {
	if len(data) < pcm.BytesPerSample {
		return
	}
	// Drop a trailing odd byte rather than desync the sample clock.
	data = data[:len(data)-len(data)%pcm.BytesPerSample]

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.nextStart
	if start < s.clock {
		start = s.clock
	}
	seg := &segment{start: start, data: data}
	s.queue = append(s.queue, seg)
	s.nextStart = seg.end()
}

// Interrupt discards all queued audio and resets the cursor so the
// next Enqueue plays immediately.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.nextStart = s.clock
}

// Render fills out with the scheduled audio for the next
// len(out)/2 samples, zero-filling any gap, and advances the clock.
// The device render callback is the only caller.
func (s *Scheduler) Render(out []byte) {
	frames := len(out) / pcm.BytesPerSample
	if frames == 0 {
		return
	}
	clear(out)

	s.mu.Lock()
	defer s.mu.Unlock()

	windowStart := s.clock
	windowEnd := s.clock + int64(frames)

	remaining := s.queue[:0]
	for _, seg := range s.queue {
		if seg.end() <= windowStart {
			continue // fully in the past, drop
		}
		if seg.start >= windowEnd {
			remaining = append(remaining, seg)
			continue
		}

		from := windowStart
		if seg.start > from {
			from = seg.start
		}
		to := windowEnd
		if seg.end() < to {
			to = seg.end()
		}
		srcOff := (from - seg.start) * pcm.BytesPerSample
		dstOff := (from - windowStart) * pcm.BytesPerSample
		n := (to - from) * pcm.BytesPerSample
		copy(out[dstOff:dstOff+n], seg.data[srcOff:srcOff+n])

		if seg.end() > windowEnd {
			remaining = append(remaining, seg)
		}
	}
	s.queue = remaining
	s.clock = windowEnd
}

// Pending reports the number of segments not yet fully rendered.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Clock returns the current playback position in samples.
func (s *Scheduler) Clock() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// NextStart returns the clock position the next enqueued segment
// would start at.
func (s *Scheduler) NextStart() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextStart < s.clock {
		return s.clock
	}
	return s.nextStart
}
