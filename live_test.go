package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"i4.energy/across/atsniff/at"
	"i4.energy/across/atsniff/capture"
)

func TestAnalyzeLive(t *testing.T) {
	dce := capture.NewTestTransport()
	dte := capture.NewTestTransport()
	sniffConfig, err := capture.NewConfigBuilder().
		WithDialer(capture.TestDialer{Transport: dce}).
		WithPeerDialer(capture.TestDialer{Transport: dte}).
		WithKey("tap").
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	s, err := capture.Open(context.Background(), sniffConfig)
	if err != nil {
		t.Fatalf("unexpected error from Open(): %v", err)
	}
	defer s.Close()

	c, _ := LoadConfig(WithDefaults())
	a, _ := newAnalyzer(c, slog.New(slog.DiscardHandler))

	records := make(chan at.Record, 10)
	done := make(chan error, 1)
	go func() {
		done <- analyzeLive(context.Background(), a, s, func(rec at.Record) { records <- rec })
	}()

	dte.SendData("AT+CREG?\r\n")
	first := <-records
	dce.SendData("\r\n+CREG: 0,1\r\n")
	second := <-records
	dte.Close()
	dce.Close()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error from analyzeLive(): %v", err)
	}
	if first.Role != at.DTE || first.Commands[0].Type != at.TypeRead {
		t.Errorf("first record = %+v", first)
	}
	if second.Role != at.DCE || second.Commands[0].Name != "+CREG" || len(second.Advisories) != 0 {
		t.Errorf("second record = %+v", second)
	}
}

func TestListen(t *testing.T) {
	c, _ := LoadConfig(WithDefaults())
	c.ListenAddress = "127.0.0.1:0"

	t.Run("Invalid role", func(t *testing.T) {
		bad := *c
		bad.Role = "modem"
		if err := listen(context.Background(), &bad, slog.New(slog.DiscardHandler), nil); !errors.Is(err, at.ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got: %v", err)
		}
	})

	t.Run("Address in use", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer ln.Close()

		busy := *c
		busy.ListenAddress = ln.Addr().String()
		if err := listen(context.Background(), &busy, slog.New(slog.DiscardHandler), nil); err == nil {
			t.Error("expected error for an address in use")
		}
	})

	t.Run("Stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- listen(ctx, c, slog.New(slog.DiscardHandler), func(at.Record) {}) }()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected error from listen(): %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("listen() did not return after cancellation")
		}
	})
}

func TestSniffNoPort(t *testing.T) {
	c, _ := LoadConfig(WithDefaults())
	c.SerialPort = ""
	err := sniff(context.Background(), c, slog.New(slog.DiscardHandler), func(at.Record) {})
	if !errors.Is(err, capture.ErrNoPortName) {
		t.Errorf("expected ErrNoPortName, got: %v", err)
	}
}
