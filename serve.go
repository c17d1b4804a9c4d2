package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"i4.energy/across/atsniff/at"
)

// ErrUnknownSource is returned for a serve source other than serial or tap.
var ErrUnknownSource = errors.New("unknown source")

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var source func(context.Context, func(at.Record)) error
	switch config.Source {
	case "serial":
		source = func(ctx context.Context, emit func(at.Record)) error {
			return sniff(ctx, config, logger, emit)
		}
	case "tap":
		source = func(ctx context.Context, emit func(at.Record)) error {
			return listen(ctx, config, logger, emit)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, config.Source)
	}

	srv := NewServer(logger.With("component", "server"))
	httpServer := &http.Server{
		Addr:    config.BindAddress,
		Handler: srv,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- source(ctx, srv.Publish)
	}()

	var err error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		err = <-sourceErr
	case err = <-sourceErr:
		logger.Info("Source ended", "source", config.Source)
	case err = <-serverErr:
		cancel()
		<-sourceErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	srv.Close()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("Failed to gracefully shutdown server", "error", shutdownErr)
	}
	return err
}
