package beacon

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Decoder wraps Decode with logging and statistics. It is safe for
// concurrent use.
type Decoder struct {
	logger *logrus.Logger
	opts   Options

	// Statistics
	total           uint64
	decoded         uint64
	routingMismatch uint64
	lengthMismatch  uint64
	unsupportedType uint64
}

// Stats is a snapshot of decoder counters
type Stats struct {
	Total           uint64
	Decoded         uint64
	RoutingMismatch uint64
	LengthMismatch  uint64
	UnsupportedType uint64
}

// Rejected returns the number of frames that failed any check
func (s Stats) Rejected() uint64 {
	return s.RoutingMismatch + s.LengthMismatch + s.UnsupportedType
}

// NewDecoder creates a new beacon decoder
func NewDecoder(opts Options, logger *logrus.Logger) *Decoder {
	return &Decoder{
		logger: logger,
		opts:   opts,
	}
}

// Options returns the framing options the decoder was created with
func (d *Decoder) Options() Options {
	return d.opts
}

// Decode decodes one raw frame
func (d *Decoder) Decode(frame []byte) (*Record, error) {
	atomic.AddUint64(&d.total, 1)

	rec, err := Decode(frame, d.opts)
	if err != nil {
		kind := KindOf(err)
		switch kind {
		case KindRoutingMismatch:
			atomic.AddUint64(&d.routingMismatch, 1)
		case KindLengthMismatch:
			atomic.AddUint64(&d.lengthMismatch, 1)
		case KindUnsupportedType:
			atomic.AddUint64(&d.unsupportedType, 1)
		}

		d.logger.WithFields(logrus.Fields{
			"frame_len": len(frame),
			"kind":      kind.String(),
			"csp":       d.opts.CSP,
			"crc":       d.opts.CRC,
		}).WithError(err).Debug("Rejected beacon frame")
		return nil, err
	}

	atomic.AddUint64(&d.decoded, 1)

	d.logger.WithFields(logrus.Fields{
		"type":          rec.Type,
		"eps_timestamp": rec.Power.Timestamp,
		"vbatt":         rec.Power.VBatt,
	}).Debug("Decoded beacon frame")

	return rec, nil
}

// GetStats returns decoder statistics
func (d *Decoder) GetStats() Stats {
	return Stats{
		Total:           atomic.LoadUint64(&d.total),
		Decoded:         atomic.LoadUint64(&d.decoded),
		RoutingMismatch: atomic.LoadUint64(&d.routingMismatch),
		LengthMismatch:  atomic.LoadUint64(&d.lengthMismatch),
		UnsupportedType: atomic.LoadUint64(&d.unsupportedType),
	}
}
