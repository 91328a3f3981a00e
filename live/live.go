// Package live implements the duplex streaming session to the Gemini
// Live endpoint: outbound microphone PCM and screen frames, inbound
// generated audio, captions and interruption markers.
package live

import (
	"context"
	"errors"
)

const (
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel    = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice    = "Kore"

	// AudioMIMEType tags outbound microphone blocks with their fixed
	// input rate.
	AudioMIMEType = "audio/pcm;rate=16000"
	ImageMIMEType = "image/jpeg"
)

// ErrClosed reports that the session closed, locally or by the remote
// end. It maps to the reconnect path, not a terminal failure.
var ErrClosed = errors.New("live: session closed")

type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Voice    string

	// Persona is the system-instruction text supplied by the caller.
	// Opaque to this package.
	Persona string
}

// Message is one inbound payload from the remote endpoint.
type Message struct {
	// Audio is a decoded 24 kHz PCM16 reply segment, nil if absent.
	Audio []byte

	// Text is a caption/transcript fragment, empty if absent.
	Text string

	// Interrupted signals the user spoke over the assistant: all
	// queued playback must be discarded immediately.
	Interrupted bool

	TurnComplete bool
}

// Conn is an open duplex session.
type Conn interface {
	SendAudio(pcm []byte) error
	SendImage(jpeg []byte) error

	// Recv blocks for the next inbound message. It returns ErrClosed
	// (possibly wrapped) once the session is closed from either side;
	// any other error is a protocol-level failure.
	Recv() (Message, error)

	// Close is idempotent.
	Close() error
}

// Dialer opens a fresh session. The session controller redials through
// this on every attempt of a reconnect lineage.
type Dialer func(ctx context.Context) (Conn, error)
