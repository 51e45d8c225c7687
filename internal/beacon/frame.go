package beacon

import (
	"gomxbeacon/internal/csp"
)

// Blocks holds the subsystem slices of a validated payload
type Blocks struct {
	Type      uint8
	Power     []byte
	Comms     []byte
	OBC       []byte
	ADCS      []byte
	AuxSensor []byte
}

// StripHeader removes the CSP header when present and checks that the frame
// is routed from the satellite to the beacon receiver port
func StripHeader(data []byte, present bool) ([]byte, error) {
	if !present {
		return data, nil
	}

	header, err := csp.ParseHeader(data)
	if err != nil {
		return nil, newDecodeError(KindLengthMismatch, "%v", err)
	}

	if !header.Matches(BeaconSource, BeaconDest, BeaconDestPort) {
		return nil, newDecodeError(KindRoutingMismatch, "got %s, want %d -> %d:%d",
			header, BeaconSource, BeaconDest, BeaconDestPort)
	}

	return data[HeaderSize:], nil
}

// StripTrailer removes the trailing check value when present. The value is
// not verified.
func StripTrailer(data []byte, present bool) []byte {
	if !present {
		return data
	}
	if len(data) < TrailerSize {
		return data[:0]
	}
	return data[:len(data)-TrailerSize]
}

// Validate checks payload length and type tag and splits the payload into
// subsystem blocks
func Validate(payload []byte) (Blocks, error) {
	if len(payload) != PayloadLength {
		return Blocks{}, newDecodeError(KindLengthMismatch, "got %d bytes, want %d", len(payload), PayloadLength)
	}

	// Only beacon 0 is defined
	if payload[0] != TypeBeacon0 {
		return Blocks{}, newDecodeError(KindUnsupportedType, "type %d", payload[0])
	}

	off := TypeTagSize
	take := func(n int) []byte {
		b := payload[off : off+n : off+n]
		off += n
		return b
	}

	return Blocks{
		Type:      payload[0],
		Power:     take(PowerBlockSize),
		Comms:     take(CommsBlockSize),
		OBC:       take(OBCBlockSize),
		ADCS:      take(ADCSBlockSize),
		AuxSensor: take(AuxSensorBlockSize),
	}, nil
}
