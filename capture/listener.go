package capture

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/pires/go-proxyproto"

	"i4.energy/across/atsniff/at"
)

// Handler is called with a sniffer for every accepted tap connection. The
// sniffer is closed once the handler returns.
type Handler func(ctx context.Context, s *Sniffer)

// Listener accepts TCP tap connections, each streaming one direction of a
// tapped AT link (ser2net in monitor mode, a serial server, a modem
// emulator), and turns each into a Sniffer.
type Listener struct {
	listener  net.Listener
	direction at.Direction
	logger    *slog.Logger
}

// Listen listens on addr. With proxyProtocol set, connections are expected
// to start with a PROXY protocol header and are keyed by the address it
// carries rather than by the load balancer's.
func Listen(addr string, proxyProtocol bool, direction at.Direction, logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if proxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
		logger.Info("PROXY protocol enabled")
	}
	return &Listener{listener: ln, direction: direction, logger: logger}, nil
}

// Addr is the address the listener is bound to.
func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

// Serve accepts connections until ctx is cancelled and runs handle for each
// of them in its own goroutine. It waits for running handlers before
// returning.
func (l *Listener) Serve(ctx context.Context, handle Handler) error {
	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("Accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serveConn(ctx, conn, handle)
		}()
	}
}

func (l *Listener) serveConn(ctx context.Context, conn net.Conn, handle Handler) {
	remote := conn.RemoteAddr().String()
	config, err := NewConfigBuilder().
		WithDialer(connDialer{conn: conn}).
		WithDirection(l.direction).
		WithKey(at.FlowKey(remote, l.listener.Addr().String())).
		WithLogger(l.logger.With("remote", remote)).
		Build()
	if err != nil {
		conn.Close()
		return
	}

	s, err := Open(ctx, config)
	if err != nil {
		l.logger.Warn("Tap connection rejected", "remote", remote, "error", err)
		conn.Close()
		return
	}
	defer s.Close()

	l.logger.Info("Tap connected", "remote", remote, "capture", s.ID())
	handle(ctx, s)
	l.logger.Info("Tap disconnected", "remote", remote, "capture", s.ID())
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	return l.listener.Close()
}
