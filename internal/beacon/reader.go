package beacon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	errShortRead     = errors.New("read past end of block")
	errTrailingBytes = errors.New("block not fully consumed")
)

// reader is a big-endian cursor over one subsystem block. The first failed
// read sticks; later reads return zero values and err reports the failure.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

// next returns the following n bytes, or nil once the block is exhausted
func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", errShortRead, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) int16() int16 {
	return int16(r.uint16())
}

func (r *reader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) float32() float32 {
	return math.Float32frombits(r.uint32())
}

// tenths reads a signed fixed-point value in tenths of a unit
func (r *reader) tenths() float64 {
	return float64(r.int16()) / temperatureScale
}

// close reports the first read error, or an error if bytes were left unread
func (r *reader) close() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d of %d bytes read", errTrailingBytes, r.off, len(r.buf))
	}
	return nil
}
