package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gomxbeacon/internal/beacon"
	"gomxbeacon/internal/capture"
	"gomxbeacon/internal/logging"
	"gomxbeacon/internal/output"
	"gomxbeacon/internal/store"
)

// frameSource yields raw frames until io.EOF
type frameSource interface {
	Next() (capture.Frame, error)
}

// argSource serves frames given on the command line
type argSource struct {
	args     []string
	encoding capture.Encoding
	next     int
}

func (s *argSource) Next() (capture.Frame, error) {
	if s.next >= len(s.args) {
		return capture.Frame{}, io.EOF
	}

	s.next++
	data, err := capture.DecodeFrame(s.args[s.next-1], s.encoding)
	if err != nil {
		return capture.Frame{}, &capture.LineError{Line: s.next, Err: err}
	}
	return capture.Frame{Line: s.next, Data: data}, nil
}

// frameHandler receives every successfully decoded frame
type frameHandler func(frame capture.Frame, rec *beacon.Record, receivedAt time.Time) error

// runSummary counts what happened to the frames of one run
type runSummary struct {
	frames    int
	decoded   int
	malformed int
	rejected  int
}

// Application represents the main application
type Application struct {
	config  Config
	logger  *logrus.Logger
	decoder *beacon.Decoder
	stdin   io.Reader
	now     func() time.Time
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config:  config,
		logger:  logger,
		decoder: beacon.NewDecoder(config.DecodeOptions(), logger),
		stdin:   os.Stdin,
		now:     time.Now,
	}
}

// Stats returns the decoder statistics of this application
func (app *Application) Stats() beacon.Stats {
	return app.decoder.GetStats()
}

// Decode decodes the frames given in args, or from the configured input when
// args is empty, and writes the records to out. Every frame is attempted; an
// error is returned if any frame could not be decoded.
func (app *Application) Decode(ctx context.Context, args []string, out io.Writer) error {
	if err := app.config.Validate(); err != nil {
		return err
	}

	encoding, _ := capture.ParseEncoding(app.config.Encoding)
	format, _ := output.ParseFormat(app.config.Format)
	writer := output.NewWriter(out, format, app.logger)

	var src frameSource
	if len(args) > 0 {
		src = &argSource{args: args, encoding: encoding}
	} else {
		r, closeInput, err := app.openInput()
		if err != nil {
			return err
		}
		defer closeInput()
		src = capture.NewReader(r, encoding)
	}

	summary, err := app.processFrames(ctx, src, func(frame capture.Frame, rec *beacon.Record, receivedAt time.Time) error {
		return writer.WriteRecord(rec, receivedAt, frame.Line)
	})
	if err != nil {
		return err
	}

	if failed := summary.malformed + summary.rejected; failed > 0 {
		return fmt.Errorf("%d of %d frames could not be decoded", failed, summary.frames)
	}
	return nil
}

// Ingest decodes the configured input and appends every record to the daily
// beacon files and the history store. Bad frames are logged and skipped.
func (app *Application) Ingest(ctx context.Context) error {
	if err := app.config.Validate(); err != nil {
		return err
	}

	encoding, _ := capture.ParseEncoding(app.config.Encoding)

	rotator, err := logging.NewRotator(app.config.LogDir, app.config.LogRotateUTC, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize beacon log: %w", err)
	}
	defer rotator.Close()

	history, err := store.Open(ctx, app.config.DBPath, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer history.Close()

	r, closeInput, err := app.openInput()
	if err != nil {
		return err
	}
	defer closeInput()

	writer := output.NewWriter(rotator, output.FormatJSONL, app.logger)

	rotCtx, stopRotator := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rotator.Start(rotCtx)
	}()
	defer func() {
		stopRotator()
		wg.Wait()
	}()

	app.logger.WithFields(logrus.Fields{
		"input":   app.config.Input,
		"log_dir": app.config.LogDir,
		"db":      app.config.DBPath,
	}).Info("Starting beacon ingest")

	summary, err := app.processFrames(ctx, capture.NewReader(r, encoding),
		func(frame capture.Frame, rec *beacon.Record, receivedAt time.Time) error {
			// The daily file goes first so the store never holds a beacon
			// the file lacks
			if err := writer.WriteRecord(rec, receivedAt, frame.Line); err != nil {
				return err
			}
			_, err := history.Insert(ctx, rec, receivedAt)
			return err
		})
	if errors.Is(err, context.Canceled) {
		app.logger.Info("Received shutdown signal, stopping ingest")
	} else if err != nil {
		return err
	}

	stored, err := history.Count(context.Background())
	if err != nil {
		return err
	}

	app.logger.WithFields(logrus.Fields{
		"frames":        summary.frames,
		"decoded":       summary.decoded,
		"stored_total":  stored,
		"beacon_log":    rotator.GetCurrentLogFile(),
		"records_added": writer.Written(),
	}).Info("Beacon ingest completed")

	return nil
}

// History writes the most recently stored beacons to out, newest first
func (app *Application) History(ctx context.Context, out io.Writer) error {
	if err := app.config.Validate(); err != nil {
		return err
	}

	format, _ := output.ParseFormat(app.config.Format)

	history, err := store.Open(ctx, app.config.DBPath, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer history.Close()

	latest, err := history.Latest(ctx, app.config.HistoryLimit)
	if err != nil {
		return err
	}

	writer := output.NewWriter(out, format, app.logger)
	for _, s := range latest {
		if err := writer.WriteRecord(s.Record, s.ReceivedAt, 0); err != nil {
			return err
		}
	}

	app.logger.WithField("count", len(latest)).Debug("Listed stored beacons")
	return nil
}

// openInput opens the configured input; "-" is stdin
func (app *Application) openInput() (io.Reader, func() error, error) {
	if app.config.Input == "" || app.config.Input == "-" {
		return app.stdin, func() error { return nil }, nil
	}

	f, err := os.Open(app.config.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, f.Close, nil
}

// processFrames decodes every frame from src and hands records to handle.
// Malformed and rejected frames are logged and counted; an error from src
// other than a line error, or from handle, stops the run.
func (app *Application) processFrames(ctx context.Context, src frameSource, handle frameHandler) (runSummary, error) {
	var summary runSummary
	defer func() { app.reportStatistics(summary) }()

	for {
		if err := ctx.Err(); err != nil {
			app.logger.Info("Frame processing cancelled")
			return summary, err
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}

		var lineErr *capture.LineError
		if errors.As(err, &lineErr) {
			summary.frames++
			summary.malformed++
			app.logger.WithField("line", lineErr.Line).WithError(lineErr.Err).Warn("Skipping malformed frame")
			continue
		}
		if err != nil {
			return summary, err
		}

		summary.frames++
		rec, err := app.decoder.Decode(frame.Data)
		if err != nil {
			summary.rejected++
			app.logger.WithFields(logrus.Fields{
				"line":      frame.Line,
				"kind":      beacon.KindOf(err).String(),
				"frame_len": len(frame.Data),
			}).WithError(err).Warn("Rejected beacon frame")
			continue
		}

		if err := handle(frame, rec, app.now()); err != nil {
			if !isRecordError(err) {
				return summary, fmt.Errorf("failed to handle frame on line %d: %w", frame.Line, err)
			}
			summary.rejected++
			app.logger.WithField("line", frame.Line).WithError(err).Warn("Skipping beacon that could not be encoded")
			continue
		}
		summary.decoded++
	}
}

// isRecordError reports whether err concerns one record only, so the run can
// go on with the next frame
func isRecordError(err error) bool {
	return errors.Is(err, output.ErrEncode) || errors.Is(err, store.ErrEncode)
}

// reportStatistics logs the run summary and cumulative decoder statistics
func (app *Application) reportStatistics(summary runSummary) {
	stats := app.decoder.GetStats()

	successRate := "n/a"
	if summary.frames > 0 {
		successRate = fmt.Sprintf("%.2f%%", float64(summary.decoded)/float64(summary.frames)*100)
	}

	app.logger.WithFields(logrus.Fields{
		"frames":           summary.frames,
		"decoded":          summary.decoded,
		"malformed":        summary.malformed,
		"rejected":         summary.rejected,
		"routing_mismatch": stats.RoutingMismatch,
		"length_mismatch":  stats.LengthMismatch,
		"unsupported_type": stats.UnsupportedType,
		"success_rate":     successRate,
	}).Info("Beacon decoding statistics")
}
