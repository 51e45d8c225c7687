package csp

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of a CSP v1 header on the wire
const HeaderSize = 4

// Bit layout of the header word
const (
	sourceShift = 25
	sourceMask  = 0x1F
	destShift   = 20
	destMask    = 0x1F
	dportShift  = 14
	dportMask   = 0x3F
)

// Header is the routing part of a CSP header. Priority, source port and flags
// are not needed to route beacons and are not decoded.
type Header struct {
	Source      uint8
	Destination uint8
	DestPort    uint8
	Raw         uint32
}

// ParseHeader reads a little-endian header word from the start of data
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	word := binary.LittleEndian.Uint32(data[:HeaderSize])
	return HeaderFromWord(word), nil
}

// HeaderFromWord extracts the routing fields from a header word
func HeaderFromWord(word uint32) Header {
	return Header{
		Source:      uint8((word >> sourceShift) & sourceMask),
		Destination: uint8((word >> destShift) & destMask),
		DestPort:    uint8((word >> dportShift) & dportMask),
		Raw:         word,
	}
}

// Matches reports whether the header is addressed from src to dst:dport
func (h Header) Matches(src, dst, dport uint8) bool {
	return h.Source == src && h.Destination == dst && h.DestPort == dport
}

// String returns a compact "src -> dst:port" representation
func (h Header) String() string {
	return fmt.Sprintf("%d -> %d:%d", h.Source, h.Destination, h.DestPort)
}
