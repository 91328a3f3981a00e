package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"klutch/log"
	"klutch/pcm"
)

const (
	maxMessageSize     = 16 * 1024 * 1024
	setupReplyDeadline = 10 * time.Second
)

// NewDialer returns a Dialer for the configured endpoint. Each call to
// the returned function performs the full open handshake: websocket
// dial, setup message, setupComplete acknowledgment.
func NewDialer(cfg Config) Dialer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	return func(ctx context.Context) (Conn, error) {
		return dial(ctx, cfg)
	}
}

func dial(ctx context.Context, cfg Config) (Conn, error) {
	headers := http.Header{}
	headers.Set("x-goog-api-key", cfg.APIKey)

	sessCtx, cancel := context.WithCancel(ctx)
	ws, _, err := websocket.Dial(sessCtx, cfg.Endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("live dial: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	c := &wsConn{conn: ws, ctx: sessCtx, cancel: cancel}

	if err := c.setup(cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func (c *wsConn) setup(cfg Config) error {
	msg := setupMessage{
		Setup: setupPayload{
			Model: "models/" + cfg.Model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoice{VoiceName: cfg.Voice},
					},
				},
			},
		},
	}
	if cfg.Persona != "" {
		msg.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.Persona}}}
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("live setup: %w", err)
	}

	readCtx, done := context.WithTimeout(c.ctx, setupReplyDeadline)
	defer done()
	_, data, err := c.conn.Read(readCtx)
	if err != nil {
		return fmt.Errorf("live setup reply: %w", err)
	}
	var reply serverMessage
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("live setup reply: %w", err)
	}
	if reply.SetupComplete == nil {
		return fmt.Errorf("live setup: setupComplete not received")
	}
	return nil
}

func (c *wsConn) SendAudio(pcmBytes []byte) error {
	return c.sendChunk(inlineData{
		MimeType: AudioMIMEType,
		Data:     pcm.MarshalBase64(pcmBytes),
	})
}

func (c *wsConn) SendImage(jpeg []byte) error {
	return c.sendChunk(inlineData{
		MimeType: ImageMIMEType,
		Data:     pcm.MarshalBase64(jpeg),
	})
}

func (c *wsConn) sendChunk(chunk inlineData) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.write(realtimeMessage{
		RealtimeInput: realtimeInput{MediaChunks: []inlineData{chunk}},
	})
}

func (c *wsConn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

func (c *wsConn) Recv() (Message, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		if c.isClosed() {
			return Message{}, ErrClosed
		}
		// A close frame from the remote end routes to the reconnect
		// path; anything else is a protocol failure.
		if websocket.CloseStatus(err) != -1 || c.ctx.Err() != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return Message{}, fmt.Errorf("live recv: %w", err)
	}

	var server serverMessage
	if err := json.Unmarshal(data, &server); err != nil {
		return Message{}, fmt.Errorf("live recv: %w", err)
	}
	return decodeServerMessage(&server), nil
}

// decodeServerMessage maps a wire message to a Message. A malformed
// audio payload drops that segment only; the rest of the message and
// the session survive.
func decodeServerMessage(server *serverMessage) Message {
	var msg Message
	sc := server.ServerContent
	if sc == nil {
		return msg
	}
	msg.Interrupted = sc.Interrupted
	msg.TurnComplete = sc.TurnComplete
	if sc.ModelTurn == nil {
		return msg
	}
	for _, p := range sc.ModelTurn.Parts {
		if p.Text != "" {
			msg.Text += p.Text
		}
		if p.InlineData == nil {
			continue
		}
		raw, err := pcm.UnmarshalBase64(p.InlineData.Data)
		if err != nil {
			log.Warnf("dropping malformed audio segment: %v", err)
			continue
		}
		msg.Audio = append(msg.Audio, raw...)
	}
	return msg
}

func (c *wsConn) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

func (c *wsConn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	return err
}
