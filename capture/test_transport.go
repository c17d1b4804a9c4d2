package capture

import (
	"context"
	"io"
	"sync"
)

// TestTransport is an in-memory tapped line for tests. Reads block until
// data is sent, like a serial port with nothing on the wire.
type TestTransport struct {
	mu     sync.Mutex
	chunks chan []byte
	ended  bool
	// pending is what a short Read left of the last chunk
	pending []byte
}

func NewTestTransport() *TestTransport {
	return &TestTransport{chunks: make(chan []byte, 10)}
}

func (t *TestTransport) Read(p []byte) (int, error) {
	if len(t.pending) == 0 {
		chunk, ok := <-t.chunks
		if !ok {
			return 0, io.EOF
		}
		t.pending = chunk
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// Close ends the line: data already sent is still read, then Read returns
// io.EOF.
func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.ended = true
		close(t.chunks)
	}
	return nil
}

// SendData puts bytes on the line. It is a no-op once the line is closed.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.chunks <- []byte(data)
	}
}

// TestDialer hands out a fixed Transport, or fails with Err.
type TestDialer struct {
	Transport Transport
	Err       error
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Transport, nil
}
