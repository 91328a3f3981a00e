package session

import (
	"math"
	"sync"
	"sync/atomic"

	"klutch/audio"
	"klutch/log"
	"klutch/pcm"
)

const (
	blockBytes     = pcm.BlockSize * pcm.BytesPerSample
	captureBacklog = 16
)

// CapturePipeline accumulates the device's capture callback output
// into fixed blocks and forwards them to the session transport. The
// mute flag is sampled per block: a muted block is read and dropped,
// never zeroed and sent, so the device keeps draining while nothing
// goes out.
//
// The pipeline never opens or closes the device itself. It only
// attaches to a running device, so one microphone handle can serve
// several sessions across a reconnect.
type CapturePipeline struct {
	device audio.CaptureDevice
	muted  *atomic.Bool

	// onLevel, when set, receives the RMS level of each full block,
	// muted or not, so a level meter keeps moving while muted.
	onLevel func(float64)

	buf    []byte
	blocks chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	sent    atomic.Int64
	dropped atomic.Int64
}

func NewCapturePipeline(device audio.CaptureDevice, muted *atomic.Bool, onLevel func(float64)) *CapturePipeline {
	return &CapturePipeline{
		device:  device,
		muted:   muted,
		onLevel: onLevel,
		blocks:  make(chan []byte, captureBacklog),
		done:    make(chan struct{}),
	}
}

// Start attaches to the device and begins forwarding blocks through
// send. A send failure stops the pipeline and is reported once via
// onErr.
func (p *CapturePipeline) Start(send func([]byte) error, onErr func(error)) {
	p.device.SetCallback(p.ingest)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case block := <-p.blocks:
				if err := send(block); err != nil {
					p.device.ClearCallback()
					onErr(err)
					return
				}
				p.sent.Add(1)
			case <-p.done:
				return
			}
		}
	}()
}

// Stop detaches from the device and waits for the sender to drain.
// The device itself keeps running.
func (p *CapturePipeline) Stop() {
	p.device.ClearCallback()
	close(p.done)
	p.wg.Wait()
}

// Sent reports how many blocks have been transmitted.
func (p *CapturePipeline) Sent() int64 { return p.sent.Load() }

// ingest runs on the device thread. It must never block: a full
// backlog drops the block.
func (p *CapturePipeline) ingest(data []byte, _ uint32) {
	p.buf = append(p.buf, data...)
	for len(p.buf) >= blockBytes {
		if p.onLevel != nil {
			p.onLevel(blockLevel(p.buf[:blockBytes]))
		}
		if p.muted.Load() {
			p.buf = p.buf[blockBytes:]
			continue
		}
		block := make([]byte, blockBytes)
		copy(block, p.buf)
		p.buf = p.buf[blockBytes:]
		select {
		case p.blocks <- block:
		default:
			if p.dropped.Add(1) == 1 {
				log.Warn("capture backlog full, dropping audio blocks")
			}
		}
	}
}

// blockLevel computes the RMS level of one PCM16 block in [0, 1].
func blockLevel(block []byte) float64 {
	samples, err := pcm.Decode(block)
	if err != nil || len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
