package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gomxbeacon/internal/beacon"
)

// Format selects how records are serialised
type Format string

const (
	FormatJSON  Format = "json"  // indented object per record
	FormatJSONL Format = "jsonl" // one compact envelope per line
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or jsonl)", s)
	}
}

// ErrEncode reports a record that could not be serialised. It concerns one
// record only; the writer stays usable.
var ErrEncode = errors.New("failed to encode record")

// Envelope wraps a record with reception metadata for line-oriented output
type Envelope struct {
	ReceivedAt time.Time      `json:"received_at"`
	Line       int            `json:"line,omitempty"`
	Beacon     *beacon.Record `json:"beacon"`
}

// Writer serialises decoded beacons to an io.Writer
type Writer struct {
	out     io.Writer
	format  Format
	logger  *logrus.Logger
	mu      sync.Mutex
	written uint64
}

// NewWriter creates a new record writer
func NewWriter(out io.Writer, format Format, logger *logrus.Logger) *Writer {
	return &Writer{
		out:    out,
		format: format,
		logger: logger,
	}
}

// WriteRecord writes one record. line is the source line of the frame, or 0.
func (w *Writer) WriteRecord(rec *beacon.Record, receivedAt time.Time, line int) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	data, err := w.encode(rec, receivedAt, line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.written++

	w.logger.WithFields(logrus.Fields{
		"format": w.format,
		"bytes":  len(data),
		"line":   line,
	}).Debug("Wrote beacon record")

	return nil
}

// Written returns the number of records written
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) encode(rec *beacon.Record, receivedAt time.Time, line int) ([]byte, error) {
	var buf bytes.Buffer

	switch w.format {
	case FormatJSONL:
		enc := json.NewEncoder(&buf)
		if err := enc.Encode(Envelope{ReceivedAt: receivedAt.UTC(), Line: line, Beacon: rec}); err != nil {
			return nil, err
		}
	case FormatJSON, "":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "    ")
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown output format %q", w.format)
	}

	return buf.Bytes(), nil
}
