package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const debounceInterval = 500 * time.Millisecond

var captureExtensions = map[string]bool{
	".pcap":   true,
	".pcapng": true,
	".cap":    true,
}

func isCaptureFile(name string) bool {
	return captureExtensions[strings.ToLower(filepath.Ext(name))]
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	w := newRecordWriter(cmd.OutOrStdout())
	return watchDir(ctx, args[0], debounceInterval, logger, func(ctx context.Context, path string) {
		a, err := newAnalyzer(config, logger)
		if err != nil {
			logger.Error("Failed to create analyzer", "error", err)
			return
		}
		n, err := analyzeFile(ctx, path, a, uint16(config.DevicePort), false, w.Write)
		if err != nil {
			logger.Warn("Failed to analyze capture", "file", path, "error", err)
			return
		}
		logger.Info("Capture analyzed", "file", path, "records", n, "sessions", a.Store().Len())
	})
}

// watchDir calls handle for every capture file created or written in dir,
// once the file has been quiet for the debounce interval. Files are handled
// one at a time, in the order they settle.
func watchDir(ctx context.Context, dir string, debounce time.Duration, l *slog.Logger, handle func(context.Context, string)) error {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsW.Close()

	if err := fsW.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l.Info("Watching for capture files", "directory", dir)

	settled := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsW.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isCaptureFile(event.Name) {
				continue
			}

			// Debounce: reset timer on each event.
			name := event.Name
			if t, ok := timers[name]; ok {
				t.Stop()
			}
			timers[name] = time.AfterFunc(debounce, func() {
				select {
				case settled <- name:
				case <-ctx.Done():
				}
			})

		case name := <-settled:
			delete(timers, name)
			handle(ctx, name)

		case err, ok := <-fsW.Errors:
			if !ok {
				return nil
			}
			l.Warn("Watcher error", "error", err)
		}
	}
}
