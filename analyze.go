package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"i4.energy/across/atsniff/at"
	"i4.energy/across/atsniff/capture"
)

// recordWriter writes records as JSON lines. It is safe for concurrent use.
type recordWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newRecordWriter(w io.Writer) *recordWriter {
	return &recordWriter{enc: json.NewEncoder(w)}
}

func (w *recordWriter) Write(rec at.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		logger.Error("Failed to write record", "frame", rec.Frame, "error", err)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	if outputFlag != "" {
		f, err := os.Create(outputFlag)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	a, err := newAnalyzer(config, logger)
	if err != nil {
		return err
	}

	w := newRecordWriter(out)
	start := time.Now()
	n, err := analyzeFile(ctx, args[0], a, uint16(config.DevicePort), !noProgressFlag, w.Write)
	if err != nil {
		return err
	}

	logger.Info("Capture analyzed", "file", args[0], "records", n, "sessions", a.Store().Len(), "duration", time.Since(start))
	return nil
}

// analyzeFile analyzes every packet of a capture file and passes the
// records to emit. Packets off the device port only produce a record when
// they look like AT text. It returns the number of records emitted.
func analyzeFile(ctx context.Context, path string, a *at.Analyzer, devicePort uint16, progress bool, emit func(at.Record)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	var bar *progressbar.ProgressBar
	if progress {
		info, err := f.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat capture: %w", err)
		}
		bar = progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		pr := progressbar.NewReader(f, bar)
		src = &pr
	}

	r, err := capture.NewReader(src, devicePort)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("%s: %w", path, err)
		}

		var rec at.Record
		if p.Registered {
			rec = a.Analyze(p.Frame)
		} else {
			var ok bool
			if rec, ok = a.AnalyzeHeuristic(p.Frame); !ok {
				continue
			}
		}
		emit(rec)
		n++
	}

	if bar != nil {
		bar.Finish()
	}
	return n, nil
}
