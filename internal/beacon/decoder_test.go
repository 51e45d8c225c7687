package beacon

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleFrame is a beacon received from orbit: no CSP header, CRC trailer present
const sampleFrame = "ALn8/MQJQAlMCRlAzwCtAEEABABEAHAAAAACAAIAAwOeAHAAWwAcAB4AHgAdABwAHAO5/PzEATgBOf/F/5X/lbn8/MQAAAABAAAAAAE+ufz8xAACAAcAAAAEAA4AAAE6ATm5/PzEAMkAKAABAAYAFgAzABgARJLhQmBHPEEc02IAAHj/ufz8uUi0xsg="

func sampleBytes(t testing.TB) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(sampleFrame)
	require.NoError(t, err)
	require.Len(t, data, PayloadLength+TrailerSize)
	return data
}

func sampleRecord() *Record {
	return &Record{
		Type: 0,
		Power: Power{
			Timestamp: 3120364740,
			VBoost:    [3]uint16{2368, 2380, 2329},
			VBatt:     16591,
			CurOut:    [7]uint16{173, 65, 4, 68, 112, 0, 2},
			CurIn:     [3]uint16{2, 3, 926},
			CurSun:    112,
			CurSys:    91,
			Temp:      [6]int16{28, 30, 30, 29, 28, 28},
			BattMode:  3,
		},
		Comms: Comms{
			Timestamp: 3120364740,
			TempBoard: 31.2,
			TempPA:    31.3,
			LastRSSI:  -59,
			LastRFErr: -107,
			BgndRSSI:  -107,
		},
		OnboardComputer: OnboardComputer{
			Timestamp: 3120364740,
			CurGSSB1:  0,
			CurGSSB2:  1,
			CurFlash:  0,
			TempA:     0,
			TempB:     31.8,
		},
		AttitudeControl: AttitudeControl{
			Timestamp: 3120364740,
			CurGSSB1:  2,
			CurGSSB2:  7,
			CurFlash:  0,
			CurPWM:    4,
			CurGPS:    14,
			CurWDE:    0,
			TempA:     31.4,
			TempB:     31.3,
		},
		AuxSensor: AuxSensor{
			Timestamp:  3120364740,
			Cur5V0Brd:  201,
			Cur3V3Brd:  40,
			Cur3V3SD:   1,
			Cur1V2:     6,
			Cur2V5:     22,
			Cur3V3FPGA: 51,
			Cur3V3ADC:  24,
			LastICAO:   4494049,
			LastLat:    math.Float32frombits(0x4260473c),
			LastLon:    math.Float32frombits(0x411cd362),
			LastAlt:    30975,
			LastTime:   3120364729,
		},
	}
}

func cspHeader(src, dst, dport uint32) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf, src<<25|dst<<20|dport<<14)
	return buf
}

// payloadBuilder writes big-endian fields into a beacon payload
type payloadBuilder struct {
	buf bytes.Buffer
}

func (b *payloadBuilder) put(values ...interface{}) *payloadBuilder {
	for _, v := range values {
		if err := binary.Write(&b.buf, binary.BigEndian, v); err != nil {
			panic(err)
		}
	}
	return b
}

func (b *payloadBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// zeroPayload returns a valid beacon 0 payload with every field zero
func zeroPayload() []byte {
	return make([]byte, PayloadLength)
}

func newTestDecoder(opts Options) *Decoder {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewDecoder(opts, logger)
}

// TestDecode_Golden pins the decode of the sample frame
func TestDecode_Golden(t *testing.T) {
	rec, err := Decode(sampleBytes(t), Options{CSP: false, CRC: true})
	require.NoError(t, err)

	if diff := cmp.Diff(sampleRecord(), rec); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}

	assert.InDelta(t, 56.069565, float64(rec.AuxSensor.LastLat), 1e-5)
	assert.InDelta(t, 9.801607, float64(rec.AuxSensor.LastLon), 1e-5)
}

// TestDecode_Deterministic tests that identical input yields identical output
func TestDecode_Deterministic(t *testing.T) {
	data := sampleBytes(t)

	first, err := Decode(data, DefaultOptions)
	require.NoError(t, err)
	second, err := Decode(data, DefaultOptions)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

// TestDecode_Framing tests every header/trailer combination
func TestDecode_Framing(t *testing.T) {
	payload := sampleBytes(t)[:PayloadLength]
	trailer := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	header := cspHeader(BeaconSource, BeaconDest, BeaconDestPort)

	join := func(parts ...[]byte) []byte {
		return bytes.Join(parts, nil)
	}

	tests := []struct {
		name  string
		input []byte
		opts  Options
	}{
		{name: "Bare payload", input: join(payload), opts: Options{}},
		{name: "Trailer only", input: join(payload, trailer), opts: Options{CRC: true}},
		{name: "Header only", input: join(header, payload), opts: Options{CSP: true}},
		{name: "Header and trailer", input: join(header, payload, trailer), opts: Options{CSP: true, CRC: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode(tt.input, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, sampleRecord(), rec)
		})
	}
}

// TestDecode_TrailerNotVerified tests that any trailer value is accepted
func TestDecode_TrailerNotVerified(t *testing.T) {
	data := sampleBytes(t)
	for _, crc := range [][]byte{{0, 0, 0, 0}, {0xFF, 0xFF, 0xFF, 0xFF}} {
		frame := append(append([]byte{}, data[:PayloadLength]...), crc...)
		_, err := Decode(frame, Options{CRC: true})
		assert.NoError(t, err)
	}
}

// TestDecode_RoutingMismatch tests rejection of frames not addressed to the beacon port
func TestDecode_RoutingMismatch(t *testing.T) {
	payload := sampleBytes(t)

	tests := []struct {
		name             string
		src, dst, dport  uint32
		expectedMismatch bool
	}{
		{name: "Expected route", src: 1, dst: 10, dport: 30},
		{name: "Wrong source", src: 2, dst: 10, dport: 30, expectedMismatch: true},
		{name: "Wrong destination", src: 1, dst: 9, dport: 30, expectedMismatch: true},
		{name: "Wrong port", src: 1, dst: 10, dport: 31, expectedMismatch: true},
		{name: "All wrong", src: 0, dst: 0, dport: 0, expectedMismatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := append(cspHeader(tt.src, tt.dst, tt.dport), payload...)
			rec, err := Decode(frame, Options{CSP: true, CRC: true})

			if !tt.expectedMismatch {
				require.NoError(t, err)
				assert.NotNil(t, rec)
				return
			}

			assert.Nil(t, rec)
			assert.True(t, errors.Is(err, ErrRoutingMismatch))
			assert.Equal(t, KindRoutingMismatch, KindOf(err))
		})
	}
}

// TestDecode_LengthMismatch tests that any payload other than 136 bytes is rejected
func TestDecode_LengthMismatch(t *testing.T) {
	payload := sampleBytes(t)[:PayloadLength]

	tests := []struct {
		name  string
		input []byte
		opts  Options
	}{
		{name: "Empty", input: []byte{}, opts: Options{}},
		{name: "Empty with trailer", input: []byte{}, opts: Options{CRC: true}},
		{name: "Short header", input: []byte{0x00, 0x80}, opts: Options{CSP: true}},
		{name: "One short", input: payload[:PayloadLength-1], opts: Options{}},
		{name: "One long", input: append(append([]byte{}, payload...), 0), opts: Options{}},
		{name: "Trailer expected but missing", input: payload, opts: Options{CRC: true}},
		{name: "Header expected but missing", input: append(cspHeader(1, 10, 30), payload[:PayloadLength-4]...), opts: Options{CSP: true, CRC: true}},
		{name: "Unexpected trailer", input: sampleBytes(t), opts: Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode(tt.input, tt.opts)
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLengthMismatch), "got %v", err)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, KindLengthMismatch, de.Kind)
		})
	}
}

// TestDecode_UnsupportedType tests that only type tag 0 is accepted
func TestDecode_UnsupportedType(t *testing.T) {
	for _, tag := range []byte{1, 2, 0x7F, 0xFF} {
		payload := zeroPayload()
		payload[0] = tag

		rec, err := Decode(payload, Options{})
		assert.Nil(t, rec)
		assert.True(t, errors.Is(err, ErrUnsupportedType))
		assert.Equal(t, KindUnsupportedType, KindOf(err))
		assert.Contains(t, err.Error(), "unknown beacon type")
	}
}

// TestDecode_ZeroPayload tests that an all-zero payload decodes to zero values
func TestDecode_ZeroPayload(t *testing.T) {
	rec, err := Decode(zeroPayload(), Options{})
	require.NoError(t, err)
	assert.Equal(t, &Record{}, rec)
}

// TestDecode_TemperatureScaling tests tenths-of-degree conversion
func TestDecode_TemperatureScaling(t *testing.T) {
	b := &payloadBuilder{}
	b.put(uint8(TypeBeacon0))
	b.put(make([]byte, PowerBlockSize))
	// COM
	b.put(uint32(7), int16(235), int16(-59), int16(-100), int16(12), int16(-120))
	// OBC
	b.put(uint32(8), uint16(1), uint16(2), uint16(3), int16(-400), int16(1000))
	// ADCS
	b.put(uint32(9), uint16(1), uint16(2), uint16(3), uint16(4), uint16(5), uint16(6), int16(1), int16(-1))
	b.put(make([]byte, AuxSensorBlockSize))

	payload := b.bytes()
	require.Len(t, payload, PayloadLength)

	rec, err := Decode(payload, Options{})
	require.NoError(t, err)

	assert.Equal(t, 23.5, rec.Comms.TempBoard)
	assert.Equal(t, -5.9, rec.Comms.TempPA)
	assert.Equal(t, int16(-100), rec.Comms.LastRSSI)
	assert.Equal(t, int16(12), rec.Comms.LastRFErr)
	assert.Equal(t, int16(-120), rec.Comms.BgndRSSI)

	assert.Equal(t, -40.0, rec.OnboardComputer.TempA)
	assert.Equal(t, 100.0, rec.OnboardComputer.TempB)

	assert.Equal(t, 0.1, rec.AttitudeControl.TempA)
	assert.Equal(t, -0.1, rec.AttitudeControl.TempB)
	assert.Equal(t, uint16(6), rec.AttitudeControl.CurWDE)
}

// TestDecode_FieldOrder tests that every field is read from its wire position
func TestDecode_FieldOrder(t *testing.T) {
	b := &payloadBuilder{}
	b.put(uint8(TypeBeacon0))
	// EPS: timestamp, 16 x u16 numbered 1..16, 6 temps -1..-6, battmode
	b.put(uint32(0x01020304))
	for i := uint16(1); i <= 16; i++ {
		b.put(i)
	}
	for i := int16(1); i <= 6; i++ {
		b.put(-i)
	}
	b.put(uint8(0xAB))
	b.put(make([]byte, CommsBlockSize+OBCBlockSize+ADCSBlockSize))
	// ADS-B
	b.put(uint32(0xA0B0C0D0))
	for i := uint16(101); i <= 107; i++ {
		b.put(i)
	}
	b.put(uint32(0x00ABCDEF), float32(-33.5), float32(151.25), uint32(38000), uint32(1700000000))

	payload := b.bytes()
	require.Len(t, payload, PayloadLength)

	rec, err := Decode(payload, Options{})
	require.NoError(t, err)

	want := Power{
		Timestamp: 0x01020304,
		VBoost:    [3]uint16{1, 2, 3},
		VBatt:     4,
		CurOut:    [7]uint16{5, 6, 7, 8, 9, 10, 11},
		CurIn:     [3]uint16{12, 13, 14},
		CurSun:    15,
		CurSys:    16,
		Temp:      [6]int16{-1, -2, -3, -4, -5, -6},
		BattMode:  0xAB,
	}
	assert.Equal(t, want, rec.Power)

	assert.Equal(t, AuxSensor{
		Timestamp:  0xA0B0C0D0,
		Cur5V0Brd:  101,
		Cur3V3Brd:  102,
		Cur3V3SD:   103,
		Cur1V2:     104,
		Cur2V5:     105,
		Cur3V3FPGA: 106,
		Cur3V3ADC:  107,
		LastICAO:   0x00ABCDEF,
		LastLat:    -33.5,
		LastLon:    151.25,
		LastAlt:    38000,
		LastTime:   1700000000,
	}, rec.AuxSensor)
}

// TestRecord_Fields tests the mapping view of a record
func TestRecord_Fields(t *testing.T) {
	rec := sampleRecord()
	fields := rec.Fields()

	require.Len(t, fields, 5)
	for _, sub := range Subsystems {
		assert.Contains(t, fields, sub)
	}

	assert.Len(t, fields[SubsystemPower], 9)
	assert.Len(t, fields[SubsystemComms], 6)
	assert.Len(t, fields[SubsystemOBC], 6)
	assert.Len(t, fields[SubsystemADCS], 9)
	assert.Len(t, fields[SubsystemAuxSensor], 13)

	assert.Equal(t, []uint16{2368, 2380, 2329}, fields[SubsystemPower]["vboost"])
	assert.Equal(t, []int16{28, 30, 30, 29, 28, 28}, fields[SubsystemPower]["temp"])
	assert.Equal(t, 31.2, fields[SubsystemComms]["temp_brd"])
	assert.Equal(t, uint32(4494049), fields[SubsystemAuxSensor]["last_icao"])

	// Mutating the returned view must not touch the record
	fields[SubsystemPower]["vboost"].([]uint16)[0] = 0
	assert.Equal(t, uint16(2368), rec.Power.VBoost[0])
}

// TestRecord_Flatten tests the scalar view used for storage
func TestRecord_Flatten(t *testing.T) {
	flat := sampleRecord().Flatten()

	// 1+3+1+7+3+1+1+6+1 + 6 + 6 + 9 + 13
	assert.Len(t, flat, 24+6+6+9+13)

	index := make(map[string]float64, len(flat))
	for _, f := range flat {
		index[f.Subsystem+"."+f.Name] = f.Value
	}

	assert.Equal(t, 16591.0, index["eps.vbatt"])
	assert.Equal(t, 2329.0, index["eps.vboost_2"])
	assert.Equal(t, 2.0, index["eps.curout_6"])
	assert.Equal(t, 28.0, index["eps.temp_5"])
	assert.Equal(t, -107.0, index["com.bgnd_rssi"])
	assert.Equal(t, 31.8, index["obc.temp_b"])
	assert.Equal(t, 14.0, index["adcs.cur_gps"])
	assert.Equal(t, 30975.0, index["adsb.last_alt"])
	assert.InDelta(t, 56.069565, index["adsb.last_lat"], 1e-5)

	// Wire order of subsystems is preserved
	assert.Equal(t, SubsystemPower, flat[0].Subsystem)
	assert.Equal(t, SubsystemAuxSensor, flat[len(flat)-1].Subsystem)
}

// TestDecoder_Stats tests statistics collection
func TestDecoder_Stats(t *testing.T) {
	d := newTestDecoder(Options{CRC: true})
	data := sampleBytes(t)

	_, err := d.Decode(data)
	require.NoError(t, err)

	_, err = d.Decode(data[:10])
	assert.ErrorIs(t, err, ErrLengthMismatch)

	badType := append([]byte{}, data...)
	badType[0] = 3
	_, err = d.Decode(badType)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	stats := d.GetStats()
	assert.Equal(t, uint64(3), stats.Total)
	assert.Equal(t, uint64(1), stats.Decoded)
	assert.Equal(t, uint64(1), stats.LengthMismatch)
	assert.Equal(t, uint64(1), stats.UnsupportedType)
	assert.Equal(t, uint64(0), stats.RoutingMismatch)
	assert.Equal(t, uint64(2), stats.Rejected())
}

// TestDecoder_RoutingStats tests that routing failures are counted
func TestDecoder_RoutingStats(t *testing.T) {
	d := newTestDecoder(Options{CSP: true, CRC: true})
	assert.Equal(t, Options{CSP: true, CRC: true}, d.Options())

	_, err := d.Decode(append(cspHeader(5, 10, 30), sampleBytes(t)...))
	assert.ErrorIs(t, err, ErrRoutingMismatch)
	assert.Equal(t, uint64(1), d.GetStats().RoutingMismatch)
}

// TestDecoder_Concurrent tests decoding independent frames in parallel
func TestDecoder_Concurrent(t *testing.T) {
	d := newTestDecoder(DefaultOptions)
	data := sampleBytes(t)
	want := sampleRecord()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec, err := d.Decode(data)
				if err != nil {
					errs <- err
					continue
				}
				if !cmp.Equal(want, rec) {
					errs <- errors.New("record mismatch")
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, uint64(workers*perWorker), d.GetStats().Decoded)
}

// TestErrorKind_String tests kind names
func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "routing_mismatch", KindRoutingMismatch.String())
	assert.Equal(t, "length_mismatch", KindLengthMismatch.String())
	assert.Equal(t, "unsupported_type", KindUnsupportedType.String())
	assert.Equal(t, "unknown(9)", ErrorKind(9).String())
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("other")))
}

func BenchmarkDecode(b *testing.B) {
	data := sampleBytes(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data, DefaultOptions); err != nil {
			b.Fatal(err)
		}
	}
}
