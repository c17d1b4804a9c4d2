package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"i4.energy/across/atsniff/at"
	"i4.energy/across/atsniff/capture"
)

func runSniff(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return sniff(ctx, config, logger, newRecordWriter(cmd.OutOrStdout()).Write)
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	return listen(ctx, config, logger, newRecordWriter(cmd.OutOrStdout()).Write)
}

// sniff analyzes the tapped serial ports until ctx is cancelled or the
// ports are gone.
func sniff(ctx context.Context, c *Config, l *slog.Logger, emit func(at.Record)) error {
	a, err := newAnalyzer(c, l)
	if err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	b := capture.NewConfigBuilder().
		WithDialer(capture.SerialDialer{PortName: c.SerialPort, Mode: mode}).
		WithLogger(l.With("component", "sniffer"))
	if c.PeerPort != "" {
		b.WithPeerDialer(capture.SerialDialer{PortName: c.PeerPort, Mode: mode})
	}
	sniffConfig, err := b.Build()
	if err != nil {
		return fmt.Errorf("sniffer config: %w", err)
	}

	s, err := capture.Open(ctx, sniffConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	l.Info("Sniffing serial link", "port", c.SerialPort, "peer", c.PeerPort, "capture", s.ID())
	return analyzeLive(ctx, a, s, emit)
}

// listen accepts tap connections until ctx is cancelled. Every connection
// is a session of its own with its own analyzer.
func listen(ctx context.Context, c *Config, l *slog.Logger, emit func(at.Record)) error {
	if _, err := at.ParseOverride(c.Role); err != nil {
		return err
	}

	ln, err := capture.Listen(c.ListenAddress, c.ProxyProtocol, at.Received, l.With("component", "listener"))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.Info("Accepting tap connections", "address", ln.Addr().String())

	return ln.Serve(ctx, func(ctx context.Context, s *capture.Sniffer) {
		a, err := newAnalyzer(c, l.With("capture", s.ID()))
		if err != nil {
			l.Error("Failed to create analyzer", "error", err)
			return
		}
		if err := analyzeLive(ctx, a, s, emit); err != nil {
			l.Warn("Tap session ended", "capture", s.ID(), "error", err)
		}
	})
}

// analyzeLive runs the sniffer loop and the analyzer side by side until
// the streams end or ctx is cancelled. Cancellation is not an error.
func analyzeLive(ctx context.Context, a *at.Analyzer, s *capture.Sniffer, emit func(at.Record)) error {
	frames := make(chan at.Frame, 16)
	records := make(chan at.Record, 16)

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- s.Loop(ctx, frames)
		close(frames)
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.Run(ctx, frames, records)
		close(records)
	}()

	for rec := range records {
		emit(rec)
	}

	var errs []error
	for _, err := range []error{<-loopErr, <-runErr} {
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
