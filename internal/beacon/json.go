package beacon

import (
	"encoding/json"
	"fmt"
	"math"
)

// Tokens written for non-finite coordinates. They match what Python's json
// module emits, quoted so the output stays valid JSON.
const (
	tokenNaN    = "NaN"
	tokenPosInf = "Infinity"
	tokenNegInf = "-Infinity"
)

// coordinate is a float32 that survives a JSON round trip when it is NaN or
// infinite. The ADS-B receiver reports raw IEEE-754 words, so every bit
// pattern can show up in last_lat and last_lon.
type coordinate float32

func (c coordinate) MarshalJSON() ([]byte, error) {
	v := float64(c)
	switch {
	case math.IsNaN(v):
		return json.Marshal(tokenNaN)
	case math.IsInf(v, 1):
		return json.Marshal(tokenPosInf)
	case math.IsInf(v, -1):
		return json.Marshal(tokenNegInf)
	}
	return json.Marshal(float32(c))
}

func (c *coordinate) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		switch token {
		case tokenNaN:
			*c = coordinate(math.NaN())
		case tokenPosInf:
			*c = coordinate(math.Inf(1))
		case tokenNegInf:
			*c = coordinate(math.Inf(-1))
		default:
			return fmt.Errorf("invalid coordinate %q", token)
		}
		return nil
	}

	var v float32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = coordinate(v)
	return nil
}

// auxSensorJSON is the wire form of AuxSensor
type auxSensorJSON struct {
	Timestamp  uint32     `json:"timestamp"`
	Cur5V0Brd  uint16     `json:"cur5v0brd"`
	Cur3V3Brd  uint16     `json:"cur3v3brd"`
	Cur3V3SD   uint16     `json:"cur3v3sd"`
	Cur1V2     uint16     `json:"cur1v2"`
	Cur2V5     uint16     `json:"cur2v5"`
	Cur3V3FPGA uint16     `json:"cur3v3fpga"`
	Cur3V3ADC  uint16     `json:"cur3v3adc"`
	LastICAO   uint32     `json:"last_icao"`
	LastLat    coordinate `json:"last_lat"`
	LastLon    coordinate `json:"last_lon"`
	LastAlt    uint32     `json:"last_alt"`
	LastTime   uint32     `json:"last_time"`
}

// MarshalJSON writes non-finite coordinates as "NaN", "Infinity" or
// "-Infinity"
func (s AuxSensor) MarshalJSON() ([]byte, error) {
	return json.Marshal(auxSensorJSON{
		Timestamp:  s.Timestamp,
		Cur5V0Brd:  s.Cur5V0Brd,
		Cur3V3Brd:  s.Cur3V3Brd,
		Cur3V3SD:   s.Cur3V3SD,
		Cur1V2:     s.Cur1V2,
		Cur2V5:     s.Cur2V5,
		Cur3V3FPGA: s.Cur3V3FPGA,
		Cur3V3ADC:  s.Cur3V3ADC,
		LastICAO:   s.LastICAO,
		LastLat:    coordinate(s.LastLat),
		LastLon:    coordinate(s.LastLon),
		LastAlt:    s.LastAlt,
		LastTime:   s.LastTime,
	})
}

// UnmarshalJSON accepts the form written by MarshalJSON
func (s *AuxSensor) UnmarshalJSON(data []byte) error {
	var w auxSensorJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = AuxSensor{
		Timestamp:  w.Timestamp,
		Cur5V0Brd:  w.Cur5V0Brd,
		Cur3V3Brd:  w.Cur3V3Brd,
		Cur3V3SD:   w.Cur3V3SD,
		Cur1V2:     w.Cur1V2,
		Cur2V5:     w.Cur2V5,
		Cur3V3FPGA: w.Cur3V3FPGA,
		Cur3V3ADC:  w.Cur3V3ADC,
		LastICAO:   w.LastICAO,
		LastLat:    float32(w.LastLat),
		LastLon:    float32(w.LastLon),
		LastAlt:    w.LastAlt,
		LastTime:   w.LastTime,
	}
	return nil
}
