package beacon

// Power is the EPS (electrical power system) housekeeping block
type Power struct {
	Timestamp uint32    `json:"timestamp"`
	VBoost    [3]uint16 `json:"vboost"` // boost converter inputs, mV
	VBatt     uint16    `json:"vbatt"`  // battery voltage, mV
	CurOut    [7]uint16 `json:"curout"` // output switch currents, mA
	CurIn     [3]uint16 `json:"curin"`  // boost converter input currents, mA
	CurSun    uint16    `json:"cursun"` // mA
	CurSys    uint16    `json:"cursys"` // mA
	Temp      [6]int16  `json:"temp"`   // degC, unscaled
	BattMode  uint8     `json:"battmode"`
}

// Comms is the COM (UHF transceiver) block
type Comms struct {
	Timestamp uint32  `json:"timestamp"`
	TempBoard float64 `json:"temp_brd"`
	TempPA    float64 `json:"temp_pa"`
	LastRSSI  int16   `json:"last_rssi"`
	LastRFErr int16   `json:"last_rferr"`
	BgndRSSI  int16   `json:"bgnd_rssi"`
}

// OnboardComputer is the OBC block
type OnboardComputer struct {
	Timestamp uint32  `json:"timestamp"`
	CurGSSB1  uint16  `json:"cur_gssb1"`
	CurGSSB2  uint16  `json:"cur_gssb2"`
	CurFlash  uint16  `json:"cur_flash"`
	TempA     float64 `json:"temp_a"`
	TempB     float64 `json:"temp_b"`
}

// AttitudeControl is the ADCS block
type AttitudeControl struct {
	Timestamp uint32  `json:"timestamp"`
	CurGSSB1  uint16  `json:"cur_gssb1"`
	CurGSSB2  uint16  `json:"cur_gssb2"`
	CurFlash  uint16  `json:"cur_flash"`
	CurPWM    uint16  `json:"cur_pwm"`
	CurGPS    uint16  `json:"cur_gps"`
	CurWDE    uint16  `json:"cur_wde"` // wheel drive electronics
	TempA     float64 `json:"temp_a"`
	TempB     float64 `json:"temp_b"`
}

// AuxSensor is the ADS-B receiver payload block. The last_* fields describe
// the most recent aircraft the receiver decoded.
type AuxSensor struct {
	Timestamp  uint32  `json:"timestamp"`
	Cur5V0Brd  uint16  `json:"cur5v0brd"`
	Cur3V3Brd  uint16  `json:"cur3v3brd"`
	Cur3V3SD   uint16  `json:"cur3v3sd"`
	Cur1V2     uint16  `json:"cur1v2"`
	Cur2V5     uint16  `json:"cur2v5"`
	Cur3V3FPGA uint16  `json:"cur3v3fpga"`
	Cur3V3ADC  uint16  `json:"cur3v3adc"`
	LastICAO   uint32  `json:"last_icao"`
	LastLat    float32 `json:"last_lat"`
	LastLon    float32 `json:"last_lon"`
	LastAlt    uint32  `json:"last_alt"`
	LastTime   uint32  `json:"last_time"`
}

func decodePower(b []byte) (Power, error) {
	r := newReader(b)
	var p Power

	p.Timestamp = r.uint32()
	for i := range p.VBoost {
		p.VBoost[i] = r.uint16()
	}
	p.VBatt = r.uint16()
	for i := range p.CurOut {
		p.CurOut[i] = r.uint16()
	}
	for i := range p.CurIn {
		p.CurIn[i] = r.uint16()
	}
	p.CurSun = r.uint16()
	p.CurSys = r.uint16()
	for i := range p.Temp {
		p.Temp[i] = r.int16()
	}
	p.BattMode = r.uint8()

	return p, r.close()
}

func decodeComms(b []byte) (Comms, error) {
	r := newReader(b)
	c := Comms{
		Timestamp: r.uint32(),
		TempBoard: r.tenths(),
		TempPA:    r.tenths(),
		LastRSSI:  r.int16(),
		LastRFErr: r.int16(),
		BgndRSSI:  r.int16(),
	}
	return c, r.close()
}

func decodeOBC(b []byte) (OnboardComputer, error) {
	r := newReader(b)
	o := OnboardComputer{
		Timestamp: r.uint32(),
		CurGSSB1:  r.uint16(),
		CurGSSB2:  r.uint16(),
		CurFlash:  r.uint16(),
		TempA:     r.tenths(),
		TempB:     r.tenths(),
	}
	return o, r.close()
}

func decodeADCS(b []byte) (AttitudeControl, error) {
	r := newReader(b)
	a := AttitudeControl{
		Timestamp: r.uint32(),
		CurGSSB1:  r.uint16(),
		CurGSSB2:  r.uint16(),
		CurFlash:  r.uint16(),
		CurPWM:    r.uint16(),
		CurGPS:    r.uint16(),
		CurWDE:    r.uint16(),
		TempA:     r.tenths(),
		TempB:     r.tenths(),
	}
	return a, r.close()
}

func decodeAuxSensor(b []byte) (AuxSensor, error) {
	r := newReader(b)
	s := AuxSensor{
		Timestamp:  r.uint32(),
		Cur5V0Brd:  r.uint16(),
		Cur3V3Brd:  r.uint16(),
		Cur3V3SD:   r.uint16(),
		Cur1V2:     r.uint16(),
		Cur2V5:     r.uint16(),
		Cur3V3FPGA: r.uint16(),
		Cur3V3ADC:  r.uint16(),
		LastICAO:   r.uint32(),
		LastLat:    r.float32(),
		LastLon:    r.float32(),
		LastAlt:    r.uint32(),
		LastTime:   r.uint32(),
	}
	return s, r.close()
}
