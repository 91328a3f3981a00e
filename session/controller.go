package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"klutch/audio"
	"klutch/live"
	"klutch/log"
	"klutch/pcm"
	"klutch/playback"
	"klutch/screen"
	"klutch/vision"
)

// State of the controller's one logical session.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateActive
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultReconnectDelay is the fixed wait before a reconnect attempt.
const DefaultReconnectDelay = 3 * time.Second

// Config wires the controller's collaborators. Audio, Screen, Dial
// and Sink are required; zero durations take the defaults.
type Config struct {
	Audio       audio.Context
	InputDevice *audio.DeviceInfo
	Screen      screen.Source
	Dial        live.Dialer
	Classifier  vision.Classifier
	Sink        Sink

	ReconnectDelay   time.Duration
	FrameInterval    time.Duration
	ClassifyInterval time.Duration
}

// Session carries the live resources of one attempt lineage through
// the state transitions. Device handles survive a reconnect; the
// connection does not.
type Session struct {
	Attempt int
	Mic     audio.CaptureDevice
	Conn    live.Conn
}

type eventKind int

const (
	evTransportClosed eventKind = iota
	evTransportError
	evDeviceLost
	evScreenEnded
	evExit
)

type event struct {
	kind    eventKind
	attempt int
	err     error
}

// Controller owns the duplex session lineage: it acquires devices,
// dials, runs the pipelines, and drives the reconnect policy. One
// Controller is one lineage; after a terminal error the caller builds
// a fresh one to restart.
type Controller struct {
	cfg   Config
	sched *playback.Scheduler

	state  atomic.Int32
	muted  atomic.Bool
	events chan event

	exitOnce sync.Once
	exitCh   chan struct{}

	screenStarted bool

	reconnects    int
	interruptions atomic.Int64

	// Lineage totals, harvested from each attempt's pipelines as they
	// detach and from the receiver as audio arrives.
	sentBlocks atomic.Int64
	sentFrames atomic.Int64
	frameBytes atomic.Int64
	recvBytes  atomic.Int64
	classifies atomic.Int64
}

func NewController(cfg Config) *Controller {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.FrameInterval == 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.ClassifyInterval == 0 {
		cfg.ClassifyInterval = DefaultClassifyInterval
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	return &Controller{
		cfg:    cfg,
		sched:  playback.NewScheduler(),
		events: make(chan event, 8),
		exitCh: make(chan struct{}),
	}
}

// State returns the current state for display.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// SetMuted flips the outbound audio gate. Capture keeps draining the
// device either way.
func (c *Controller) SetMuted(muted bool) {
	c.muted.Store(muted)
	c.cfg.Sink.Muted(muted)
}

func (c *Controller) Muted() bool { return c.muted.Load() }

// Exit requests teardown. Safe to call any number of times and from
// any goroutine.
func (c *Controller) Exit() {
	c.exitOnce.Do(func() { close(c.exitCh) })
}

// Scheduler exposes the playback timeline, mainly for tests and
// diagnostics.
func (c *Controller) Scheduler() *playback.Scheduler { return c.sched }

func (c *Controller) setState(s State, detail string) {
	c.state.Store(int32(s))
	c.cfg.Sink.Status(s, detail)
	log.Infof("session state: %s %s", s, detail)
}

// Run drives the state machine until explicit exit (nil) or a
// terminal error. Devices acquired along the way are always released
// before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	player, err := playback.NewPlayer(c.cfg.Audio, c.sched)
	if err != nil {
		c.setState(StateError, err.Error())
		return err
	}
	defer player.Close()
	if err := player.Start(); err != nil {
		c.setState(StateError, err.Error())
		return err
	}

	started := time.Now()
	var sess Session
	defer func() {
		c.cleanup(&sess)
		log.SessionMetrics(c.metrics(time.Since(started)))
		log.SessionEnd(c.reconnects)
	}()

	state := StateInitializing
	for {
		switch state {
		case StateInitializing:
			c.setState(StateInitializing, "connecting")
			next, err := c.initialize(ctx, sess)
			sess = next
			if err != nil {
				c.setState(StateError, err.Error())
				return err
			}
			state = StateActive

		case StateActive:
			c.setState(StateActive, "")
			ev := c.runActive(ctx, &sess)
			switch ev.kind {
			case evTransportClosed:
				state = StateReconnecting
			case evDeviceLost:
				// The handle is dead; drop it so the next pass
				// re-acquires instead of reusing a corpse.
				if sess.Mic != nil {
					sess.Mic.Close()
					sess.Mic = nil
				}
				state = StateReconnecting
			case evTransportError:
				c.setState(StateError, ev.err.Error())
				return errors.Join(ErrTransportError, ev.err)
			case evScreenEnded:
				c.setState(StateIdle, "screen share ended")
				return nil
			default: // exit
				c.setState(StateIdle, "")
				return nil
			}

		case StateReconnecting:
			c.reconnects++
			c.setState(StateReconnecting, "connection interrupted, retrying")
			if sess.Conn != nil {
				sess.Conn.Close()
				sess.Conn = nil
			}
			select {
			case <-time.After(c.cfg.ReconnectDelay):
				state = StateInitializing
			case <-c.exitCh:
				c.setState(StateIdle, "")
				return nil
			case <-ctx.Done():
				c.setState(StateIdle, "")
				return ctx.Err()
			}
		}
	}
}

// initialize acquires whatever the session does not already hold and
// opens the duplex connection. Held device handles are reused as-is,
// so a reconnect never re-prompts for access.
func (c *Controller) initialize(ctx context.Context, sess Session) (Session, error) {
	sess.Attempt++

	if sess.Mic == nil {
		mic, err := c.cfg.Audio.NewCapture(c.cfg.InputDevice, audio.CaptureConfig{
			SampleRate: pcm.InputSampleRate,
			Channels:   pcm.Channels,
		})
		if err != nil {
			return sess, classifyDeviceErr(err)
		}
		if err := mic.Start(); err != nil {
			mic.Close()
			return sess, classifyDeviceErr(err)
		}
		sess.Mic = mic
	}

	if !c.screenStarted {
		if err := c.cfg.Screen.Start(); err != nil {
			return sess, classifyDeviceErr(err)
		}
		c.screenStarted = true
	}

	conn, err := c.cfg.Dial(ctx)
	if err != nil {
		return sess, errors.Join(ErrTransportError, fmt.Errorf("open session: %w", err))
	}
	sess.Conn = conn
	return sess, nil
}

// runActive wires the pipelines onto the current connection and
// blocks until something ends the active phase. All pipelines are
// detached before it returns; device handles stay live for reuse.
func (c *Controller) runActive(ctx context.Context, sess *Session) event {
	conn := sess.Conn
	attempt := sess.Attempt

	capture := NewCapturePipeline(sess.Mic, &c.muted, c.cfg.Sink.Level)
	sampler := NewFrameSampler(c.cfg.Screen, c.cfg.Classifier, c.cfg.Sink)
	sampler.frameInterval = c.cfg.FrameInterval
	sampler.classifyInterval = c.cfg.ClassifyInterval

	// Registered before the Stop defers so the totals are read after
	// both pipelines have fully detached.
	defer func() {
		c.sentBlocks.Add(capture.Sent())
		c.sentFrames.Add(sampler.FramesSent())
		c.frameBytes.Add(sampler.FrameBytes())
		c.classifies.Add(sampler.Classifies())
	}()

	capture.Start(conn.SendAudio, func(err error) {
		c.post(event{kind: evTransportClosed, attempt: attempt, err: err})
	})
	defer capture.Stop()

	sampler.Start(ctx, conn.SendImage, func(err error) {
		c.post(event{kind: evTransportClosed, attempt: attempt, err: err})
	})
	defer sampler.Stop()

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		c.receive(conn, attempt)
	}()
	// Recv only unblocks when the connection dies, so the connection
	// must be closed before waiting on the receiver.
	defer func() {
		conn.Close()
		<-recvDone
	}()

	for {
		select {
		case ev := <-c.events:
			if ev.attempt != attempt {
				continue // stale, from a previous attempt's goroutines
			}
			return ev
		case <-sess.Mic.Ended():
			return event{kind: evDeviceLost, attempt: attempt}
		case <-c.cfg.Screen.Ended():
			return event{kind: evScreenEnded, attempt: attempt}
		case <-c.exitCh:
			return event{kind: evExit, attempt: attempt}
		case <-ctx.Done():
			return event{kind: evExit, attempt: attempt}
		}
	}
}

// receive routes inbound messages until the connection dies: audio to
// the playback timeline, text to the caption sink, interruption to a
// hard stop of queued output.
func (c *Controller) receive(conn live.Conn, attempt int) {
	for {
		msg, err := conn.Recv()
		if err != nil {
			kind := evTransportError
			if errors.Is(err, live.ErrClosed) {
				kind = evTransportClosed
			}
			c.post(event{kind: kind, attempt: attempt, err: err})
			return
		}
		if msg.Interrupted {
			c.sched.Interrupt()
			c.interruptions.Add(1)
		}
		if len(msg.Audio) > 0 {
			c.recvBytes.Add(int64(len(msg.Audio)))
			c.sched.Enqueue(msg.Audio)
		}
		if msg.Text != "" {
			c.cfg.Sink.Caption(msg.Text)
			log.CaptionText(msg.Text)
		}
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	default:
	}
}

// metrics snapshots the lineage totals for the end-of-session report.
func (c *Controller) metrics(elapsed time.Duration) log.SessionMetricsData {
	sentAudioBytes := c.sentBlocks.Load() * int64(blockBytes)
	recvAudioBytes := c.recvBytes.Load()
	return log.SessionMetricsData{
		DurationS:     elapsed.Seconds(),
		SentBlocks:    int(c.sentBlocks.Load()),
		SentAudioKB:   float64(sentAudioBytes) / 1024,
		SentAudioS:    pcm.Duration(int(sentAudioBytes), pcm.InputSampleRate).Seconds(),
		SentFrames:    int(c.sentFrames.Load()),
		SentFramesKB:  float64(c.frameBytes.Load()) / 1024,
		RecvAudioKB:   float64(recvAudioBytes) / 1024,
		RecvAudioS:    pcm.Duration(int(recvAudioBytes), pcm.OutputSampleRate).Seconds(),
		Interruptions: int(c.interruptions.Load()),
		Reconnects:    c.reconnects,
		Classifies:    int(c.classifies.Load()),
	}
}

// cleanup releases everything the session still holds. Runs on every
// path out of Run.
func (c *Controller) cleanup(sess *Session) {
	if sess.Conn != nil {
		sess.Conn.Close()
		sess.Conn = nil
	}
	if sess.Mic != nil {
		sess.Mic.ClearCallback()
		sess.Mic.Stop()
		sess.Mic.Close()
		sess.Mic = nil
	}
	c.cfg.Screen.Close()
}
