package playback

import (
	"fmt"

	"klutch/audio"
	"klutch/pcm"
)

// Player binds a Scheduler to a playback device. The device pulls
// audio through the scheduler's Render method from its own thread.
type Player struct {
	sched  *Scheduler
	device audio.PlaybackDevice
}

// NewPlayer opens the default output device at the model's output
// sample rate and wires it to sched.
func NewPlayer(actx audio.Context, sched *Scheduler) (*Player, error) {
	render := func(out []byte, _ uint32) {
		sched.Render(out)
	}
	dev, err := actx.NewPlayback(audio.PlaybackConfig{
		SampleRate: pcm.OutputSampleRate,
		Channels:   pcm.Channels,
	}, render)
	if err != nil {
		return nil, fmt.Errorf("open playback device: %w", err)
	}
	return &Player{sched: sched, device: dev}, nil
}

func (p *Player) Start() error {
	return p.device.Start()
}

func (p *Player) Stop() {
	p.device.Stop()
}

func (p *Player) Close() {
	p.device.Close()
}
