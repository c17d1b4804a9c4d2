package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"i4.energy/across/atsniff/at"
)

// Sniffer reads AT text off one or two tapped lines of a DTE/DCE link and
// cuts it into frames, one per line.
type Sniffer struct {
	// id names the capture; the default session key is derived from it
	id  uuid.UUID
	key at.Key
	// streams are the tapped lines, at most one per direction
	streams []stream
	maxLine int
	logger  *slog.Logger

	mu          sync.Mutex
	closed      bool
	loopRunning bool
	// number is the ordinal of the last frame emitted
	number uint64
}

type stream struct {
	transport Transport
	direction at.Direction
}

// token is one line read by a scanner goroutine.
type token struct {
	direction at.Direction
	data      []byte
}

// Open dials the configured streams.
func Open(ctx context.Context, config Config) (*Sniffer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	id := uuid.New()
	s := &Sniffer{
		id:      id,
		key:     config.key,
		maxLine: config.maxLine,
		logger:  config.logger,
	}
	if s.key == "" {
		s.key = at.Key("capture:" + id.String())
	}

	t, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	s.streams = append(s.streams, stream{transport: t, direction: config.direction})

	if config.peerDialer != nil {
		peer, err := config.peerDialer.Dial(ctx)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("dial peer: %w", err)
		}
		s.streams = append(s.streams, stream{transport: peer, direction: opposite(config.direction)})
	}

	s.logger.Debug("Sniffer opened", "capture", s.id, "session", s.key, "streams", len(s.streams))
	return s, nil
}

func opposite(d at.Direction) at.Direction {
	if d == at.Received {
		return at.Sent
	}
	return at.Received
}

// ID is the capture ID of the sniffer.
func (s *Sniffer) ID() uuid.UUID { return s.id }

// Key is the session key of the frames the sniffer emits.
func (s *Sniffer) Key() at.Key { return s.key }

// Loop reads the streams until they end or ctx is cancelled and sends a
// frame to out for every non-blank line. Frames are numbered in the order
// lines arrive, across both streams.
//
// Loop returns nil when every stream reached EOF, ctx.Err() on
// cancellation, or the first read error of a stream.
func (s *Sniffer) Loop(ctx context.Context, out chan<- at.Frame) error {
	s.mu.Lock()
	if s.loopRunning {
		s.mu.Unlock()
		return ErrLoopRunning
	}
	s.loopRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loopRunning = false
		s.mu.Unlock()
	}()

	tokens := make(chan token, 10)
	scanErrs := make(chan error, len(s.streams))

	var wg sync.WaitGroup
	for _, st := range s.streams {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.scan(ctx, st, tokens, scanErrs)
		}()
	}
	go func() {
		wg.Wait()
		close(tokens)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case tok, ok := <-tokens:
			if !ok {
				select {
				case err := <-scanErrs:
					return err
				default:
					return nil
				}
			}

			s.number++
			frame := at.Frame{Number: s.number, Key: s.key, Direction: tok.direction, Data: tok.data}
			select {
			case out <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *Sniffer) scan(ctx context.Context, st stream, tokens chan<- token, errs chan<- error) {
	scanner := bufio.NewScanner(st.transport)
	scanner.Buffer(make([]byte, 0, min(4096, s.maxLine)), s.maxLine)
	scanner.Split(at.Splitter)

	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		select {
		case tokens <- token{direction: st.direction, data: bytes.Clone(scanner.Bytes())}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			err = ErrLineTooLong
		}
		s.logger.Warn("Stream read failed", "capture", s.id, "direction", st.direction, "error", err)
		errs <- fmt.Errorf("%s stream: %w", st.direction, err)
	}
}

// Close closes every stream of the sniffer, which also ends a running Loop.
func (s *Sniffer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true

	var errs []error
	for _, st := range s.streams {
		if err := st.transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
