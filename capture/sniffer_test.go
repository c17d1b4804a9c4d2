package capture

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"i4.energy/across/atsniff/at"
)

func TestOpen(t *testing.T) {
	t.Run("ErrNoDialer when the config has no dialer", func(t *testing.T) {
		_, err := Open(context.Background(), Config{})
		if !errors.Is(err, ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
		if _, err := NewConfigBuilder().Build(); !errors.Is(err, ErrNoDialer) {
			t.Errorf("expected ErrNoDialer from Build(), got: %v", err)
		}
	})

	t.Run("Dial error is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dialer := NewMockDialer(ctrl)
		dialErr := errors.New("connection failed")
		dialer.EXPECT().Dial(gomock.Any()).Return(nil, dialErr)

		config, err := NewConfigBuilder().WithDialer(dialer).Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}
		if _, err := Open(context.Background(), config); !errors.Is(err, dialErr) {
			t.Errorf("expected dial error, got: %v", err)
		}
	})

	t.Run("Peer dial error closes the first stream", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dialer := NewMockDialer(ctrl)
		peer := NewMockDialer(ctrl)
		transport := NewMockTransport(ctrl)
		dialErr := errors.New("no such port")

		gomock.InOrder(
			dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil),
			peer.EXPECT().Dial(gomock.Any()).Return(nil, dialErr),
			transport.EXPECT().Close().Return(nil),
		)

		config, _ := NewConfigBuilder().WithDialer(dialer).WithPeerDialer(peer).Build()
		if _, err := Open(context.Background(), config); !errors.Is(err, dialErr) {
			t.Errorf("expected peer dial error, got: %v", err)
		}
	})

	t.Run("Default key derives from the capture ID", func(t *testing.T) {
		config, _ := NewConfigBuilder().WithDialer(TestDialer{Transport: NewTestTransport()}).Build()
		s, err := Open(context.Background(), config)
		if err != nil {
			t.Fatalf("unexpected error from Open(): %v", err)
		}
		defer s.Close()
		if s.Key() != at.Key("capture:"+s.ID().String()) {
			t.Errorf("Key() = %q", s.Key())
		}
	})
}

func TestSnifferLoop(t *testing.T) {
	t.Run("Frames until EOF", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		dialer := NewMockDialer(ctrl)
		transport := NewMockTransport(ctrl)

		gomock.InOrder(
			dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil),
			transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
				return copy(p, "\r\n+CSQ: 31,99\r\n\r\nOK\r\n"), nil
			}),
			transport.EXPECT().Read(gomock.Any()).Return(0, io.EOF),
			transport.EXPECT().Close().Return(nil),
		)

		config, _ := NewConfigBuilder().WithDialer(dialer).WithKey("tap").Build()
		s, err := Open(context.Background(), config)
		if err != nil {
			t.Fatalf("unexpected error from Open(): %v", err)
		}

		out := make(chan at.Frame, 10)
		if err := s.Loop(context.Background(), out); err != nil {
			t.Fatalf("unexpected error from Loop(): %v", err)
		}
		close(out)

		var frames []at.Frame
		for f := range out {
			frames = append(frames, f)
		}
		expected := []string{"+CSQ: 31,99\r\n", "OK\r\n"}
		if len(frames) != len(expected) {
			t.Fatalf("expected %d frames, got %d", len(expected), len(frames))
		}
		for i, f := range frames {
			if string(f.Data) != expected[i] {
				t.Errorf("frame %d = %q, want %q", i, f.Data, expected[i])
			}
			if f.Number != uint64(i+1) || f.Key != "tap" || f.Direction != at.Received {
				t.Errorf("frame %d = %+v", i, f)
			}
		}

		if err := s.Close(); err != nil {
			t.Errorf("unexpected error from Close(): %v", err)
		}
		if err := s.Close(); !errors.Is(err, ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed, got: %v", err)
		}
	})

	t.Run("Two tapped lines", func(t *testing.T) {
		dce := NewTestTransport()
		dte := NewTestTransport()
		config, _ := NewConfigBuilder().
			WithDialer(TestDialer{Transport: dce}).
			WithPeerDialer(TestDialer{Transport: dte}).
			WithKey("tap").
			Build()
		s, err := Open(context.Background(), config)
		if err != nil {
			t.Fatalf("unexpected error from Open(): %v", err)
		}

		out := make(chan at.Frame)
		done := make(chan error, 1)
		go func() { done <- s.Loop(context.Background(), out) }()

		dte.SendData("AT+CSQ\r\n")
		first := receive(t, out)
		dce.SendData("\r\n+CSQ: 31,99\r\n")
		second := receive(t, out)

		if string(first.Data) != "AT+CSQ\r\n" || first.Direction != at.Sent || first.Number != 1 {
			t.Errorf("first frame = %+v", first)
		}
		if string(second.Data) != "+CSQ: 31,99\r\n" || second.Direction != at.Received || second.Number != 2 {
			t.Errorf("second frame = %+v", second)
		}

		s.Close()
		if err := <-done; err != nil {
			t.Errorf("unexpected error from Loop(): %v", err)
		}
	})

	t.Run("ErrLineTooLong", func(t *testing.T) {
		transport := NewTestTransport()
		config, _ := NewConfigBuilder().
			WithDialer(TestDialer{Transport: transport}).
			WithMaxLineLength(16).
			Build()
		s, _ := Open(context.Background(), config)
		defer s.Close()

		transport.SendData("~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~")
		err := s.Loop(context.Background(), make(chan at.Frame, 1))
		if !errors.Is(err, ErrLineTooLong) {
			t.Errorf("expected ErrLineTooLong, got: %v", err)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		transport := NewTestTransport()
		config, _ := NewConfigBuilder().WithDialer(TestDialer{Transport: transport}).Build()
		s, _ := Open(context.Background(), config)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Loop(ctx, make(chan at.Frame)) }()
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Loop() did not return after cancellation")
		}
	})

	t.Run("ErrLoopRunning", func(t *testing.T) {
		transport := NewTestTransport()
		config, _ := NewConfigBuilder().WithDialer(TestDialer{Transport: transport}).Build()
		s, _ := Open(context.Background(), config)

		out := make(chan at.Frame, 1)
		done := make(chan error, 1)
		go func() { done <- s.Loop(context.Background(), out) }()

		transport.SendData("RING\r\n")
		<-out
		if err := s.Loop(context.Background(), out); !errors.Is(err, ErrLoopRunning) {
			t.Errorf("expected ErrLoopRunning, got: %v", err)
		}

		s.Close()
		<-done
	})
}

func receive(t *testing.T, out <-chan at.Frame) at.Frame {
	t.Helper()
	select {
	case f := <-out:
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
		return at.Frame{}
	}
}
