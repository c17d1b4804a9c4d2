package capture

import (
	"context"
	"io"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport_test.go -package=capture

// Transport is an established byte stream carrying one direction of an AT
// conversation.
//
// A Transport is assumed to be already connected. The sniffer only reads
// from it. Typical implementations include serial ports tapped off the
// TX or RX line, TCP connections accepted by the tap listener, or
// in-memory fakes used for testing.
type Transport interface {
	io.ReadCloser
}

// Dialer opens a Transport.
//
// Dialer abstracts how the stream is created (serial port, accepted
// connection or test double) and is used during sniffer construction
// only.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may block and
	// should respect cancellation and deadlines of the context.
	Dial(ctx context.Context) (Transport, error)
}

// connDialer hands out a connection that is already established.
type connDialer struct {
	conn Transport
}

func (d connDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.conn, nil
}
