// Package beacon decodes GOMX-3 beacon 0 telemetry frames.
package beacon

import (
	"fmt"
	"sort"
)

// Subsystem keys, as used in JSON output and the history store
const (
	SubsystemPower     = "eps"
	SubsystemComms     = "com"
	SubsystemOBC       = "obc"
	SubsystemADCS      = "adcs"
	SubsystemAuxSensor = "adsb"
)

// Subsystems lists the subsystem keys in wire order
var Subsystems = []string{SubsystemPower, SubsystemComms, SubsystemOBC, SubsystemADCS, SubsystemAuxSensor}

// Options selects which optional framing a raw frame carries
type Options struct {
	CSP bool // 4-byte routing header prefix
	CRC bool // 4-byte check value suffix
}

// DefaultOptions matches frames as delivered by the ground station demodulator
var DefaultOptions = Options{CSP: false, CRC: true}

// Record is a decoded beacon 0 frame
type Record struct {
	Type            uint8           `json:"type"`
	Power           Power           `json:"eps"`
	Comms           Comms           `json:"com"`
	OnboardComputer OnboardComputer `json:"obc"`
	AttitudeControl AttitudeControl `json:"adcs"`
	AuxSensor       AuxSensor       `json:"adsb"`
}

// Field is one flattened numeric reading
type Field struct {
	Subsystem string
	Name      string
	Value     float64
}

// Decode strips the optional framing from data, validates the payload and
// decodes every subsystem block. It has no side effects and is safe for
// concurrent use.
func Decode(data []byte, opts Options) (*Record, error) {
	body, err := StripHeader(data, opts.CSP)
	if err != nil {
		return nil, err
	}

	payload := StripTrailer(body, opts.CRC)

	blocks, err := Validate(payload)
	if err != nil {
		return nil, err
	}

	return decodeBlocks(blocks)
}

func decodeBlocks(b Blocks) (*Record, error) {
	var (
		rec = &Record{Type: b.Type}
		err error
	)

	if rec.Power, err = decodePower(b.Power); err != nil {
		return nil, fmt.Errorf("eps block: %w", err)
	}
	if rec.Comms, err = decodeComms(b.Comms); err != nil {
		return nil, fmt.Errorf("com block: %w", err)
	}
	if rec.OnboardComputer, err = decodeOBC(b.OBC); err != nil {
		return nil, fmt.Errorf("obc block: %w", err)
	}
	if rec.AttitudeControl, err = decodeADCS(b.ADCS); err != nil {
		return nil, fmt.Errorf("adcs block: %w", err)
	}
	if rec.AuxSensor, err = decodeAuxSensor(b.AuxSensor); err != nil {
		return nil, fmt.Errorf("adsb block: %w", err)
	}

	return rec, nil
}

// Fields returns every subsystem as a flat name -> value mapping. Tuples are
// returned as slices in wire order. The maps are freshly built on each call.
func (r *Record) Fields() map[string]map[string]interface{} {
	p := r.Power
	c := r.Comms
	o := r.OnboardComputer
	a := r.AttitudeControl
	s := r.AuxSensor

	return map[string]map[string]interface{}{
		SubsystemPower: {
			"timestamp": p.Timestamp,
			"vboost":    p.VBoost[:],
			"vbatt":     p.VBatt,
			"curout":    p.CurOut[:],
			"curin":     p.CurIn[:],
			"cursun":    p.CurSun,
			"cursys":    p.CurSys,
			"temp":      p.Temp[:],
			"battmode":  p.BattMode,
		},
		SubsystemComms: {
			"timestamp":  c.Timestamp,
			"temp_brd":   c.TempBoard,
			"temp_pa":    c.TempPA,
			"last_rssi":  c.LastRSSI,
			"last_rferr": c.LastRFErr,
			"bgnd_rssi":  c.BgndRSSI,
		},
		SubsystemOBC: {
			"timestamp": o.Timestamp,
			"cur_gssb1": o.CurGSSB1,
			"cur_gssb2": o.CurGSSB2,
			"cur_flash": o.CurFlash,
			"temp_a":    o.TempA,
			"temp_b":    o.TempB,
		},
		SubsystemADCS: {
			"timestamp": a.Timestamp,
			"cur_gssb1": a.CurGSSB1,
			"cur_gssb2": a.CurGSSB2,
			"cur_flash": a.CurFlash,
			"cur_pwm":   a.CurPWM,
			"cur_gps":   a.CurGPS,
			"cur_wde":   a.CurWDE,
			"temp_a":    a.TempA,
			"temp_b":    a.TempB,
		},
		SubsystemAuxSensor: {
			"timestamp":  s.Timestamp,
			"cur5v0brd":  s.Cur5V0Brd,
			"cur3v3brd":  s.Cur3V3Brd,
			"cur3v3sd":   s.Cur3V3SD,
			"cur1v2":     s.Cur1V2,
			"cur2v5":     s.Cur2V5,
			"cur3v3fpga": s.Cur3V3FPGA,
			"cur3v3adc":  s.Cur3V3ADC,
			"last_icao":  s.LastICAO,
			"last_lat":   s.LastLat,
			"last_lon":   s.LastLon,
			"last_alt":   s.LastAlt,
			"last_time":  s.LastTime,
		},
	}
}

// Flatten returns one Field per scalar reading, ordered by subsystem (wire
// order) then name. Tuple members are named name_0, name_1, ...
func (r *Record) Flatten() []Field {
	fields := r.Fields()

	var out []Field
	for _, sub := range Subsystems {
		group := fields[sub]

		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			for i, v := range numericValues(group[name]) {
				fieldName := name
				if isTuple(group[name]) {
					fieldName = fmt.Sprintf("%s_%d", name, i)
				}
				out = append(out, Field{Subsystem: sub, Name: fieldName, Value: v})
			}
		}
	}

	return out
}

func isTuple(v interface{}) bool {
	switch v.(type) {
	case []uint16, []int16:
		return true
	default:
		return false
	}
}

func numericValues(v interface{}) []float64 {
	switch x := v.(type) {
	case uint8:
		return []float64{float64(x)}
	case int16:
		return []float64{float64(x)}
	case uint16:
		return []float64{float64(x)}
	case uint32:
		return []float64{float64(x)}
	case float32:
		return []float64{float64(x)}
	case float64:
		return []float64{x}
	case []uint16:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case []int16:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	default:
		return nil
	}
}
