package live

import (
	"context"
	"sync"
)

// FakeConn is a scripted in-memory Conn for tests.
type FakeConn struct {
	mu         sync.Mutex
	sentAudio  [][]byte
	sentImages [][]byte
	closed     bool

	inbound chan Message
	errCh   chan error
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbound: make(chan Message, 32),
		errCh:   make(chan error, 1),
	}
}

func (f *FakeConn) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.sentAudio = append(f.sentAudio, buf)
	return nil
}

func (f *FakeConn) SendImage(jpeg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	buf := make([]byte, len(jpeg))
	copy(buf, jpeg)
	f.sentImages = append(f.sentImages, buf)
	return nil
}

func (f *FakeConn) Recv() (Message, error) {
	select {
	case msg, ok := <-f.inbound:
		if !ok {
			return Message{}, ErrClosed
		}
		return msg, nil
	case err := <-f.errCh:
		return Message{}, err
	}
}

// Push delivers one scripted inbound message.
func (f *FakeConn) Push(msg Message) {
	f.inbound <- msg
}

// Fail makes the next Recv return err, simulating a transport failure.
func (f *FakeConn) Fail(err error) {
	f.errCh <- err
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.inbound)
	return nil
}

func (f *FakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeConn) SentAudio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sentAudio))
	copy(out, f.sentAudio)
	return out
}

func (f *FakeConn) SentImages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sentImages))
	copy(out, f.sentImages)
	return out
}

// FakeDialer hands out one prepared conn per attempt, in order, and
// counts dials.
type FakeDialer struct {
	mu    sync.Mutex
	conns []*FakeConn
	errs  []error
	Dials int
}

func NewFakeDialer(conns ...*FakeConn) *FakeDialer {
	return &FakeDialer{conns: conns}
}

// FailNext queues a dial error ahead of the remaining conns.
func (d *FakeDialer) FailNext(err error) {
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

// DialCount reports how many dial attempts have been made.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Dials
}

func (d *FakeDialer) Dial(_ context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	if len(d.conns) == 0 {
		return nil, ErrClosed
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}
