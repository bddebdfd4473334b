package pms

import (
	"encoding/binary"
)

// Frame is one validated measurement from the sensor. Concentrations are
// in ug/m3; counts are particles per 0.1 L of sampled air, binned by
// minimum particle diameter. Produced only by the decoder on a checksum
// match and never modified afterwards.
type Frame struct {
	// Standard-particle (CF=1) concentrations, calibrated for
	// industrial dust.
	StdPM1  uint16
	StdPM25 uint16
	StdPM10 uint16

	// Atmospheric-environment concentrations, calibrated for ambient
	// air. These are the values meant for outdoor monitoring.
	AtmPM1  uint16
	AtmPM25 uint16
	AtmPM10 uint16

	Count03  uint16 // > 0.3 um
	Count05  uint16 // > 0.5 um
	Count10  uint16 // > 1.0 um
	Count25  uint16 // > 2.5 um
	Count50  uint16 // > 5.0 um
	Count100 uint16 // > 10 um
}

func parsePayload(p []byte) Frame {
	return Frame{
		StdPM1:   binary.BigEndian.Uint16(p[0:]),
		StdPM25:  binary.BigEndian.Uint16(p[2:]),
		StdPM10:  binary.BigEndian.Uint16(p[4:]),
		AtmPM1:   binary.BigEndian.Uint16(p[6:]),
		AtmPM25:  binary.BigEndian.Uint16(p[8:]),
		AtmPM10:  binary.BigEndian.Uint16(p[10:]),
		Count03:  binary.BigEndian.Uint16(p[12:]),
		Count05:  binary.BigEndian.Uint16(p[14:]),
		Count10:  binary.BigEndian.Uint16(p[16:]),
		Count25:  binary.BigEndian.Uint16(p[18:]),
		Count50:  binary.BigEndian.Uint16(p[20:]),
		Count100: binary.BigEndian.Uint16(p[22:]),
	}
}

// MarshalBinary encodes the frame as a complete 32-byte wire frame
// with sync bytes, length and checksum, the inverse of what the
// decoder accepts. Used by simulated sensors.
func (f Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, frameSize)
	buf[0] = sync0
	buf[1] = sync1
	binary.BigEndian.PutUint16(buf[2:], lengthField)
	binary.BigEndian.PutUint16(buf[4:], f.StdPM1)
	binary.BigEndian.PutUint16(buf[6:], f.StdPM25)
	binary.BigEndian.PutUint16(buf[8:], f.StdPM10)
	binary.BigEndian.PutUint16(buf[10:], f.AtmPM1)
	binary.BigEndian.PutUint16(buf[12:], f.AtmPM25)
	binary.BigEndian.PutUint16(buf[14:], f.AtmPM10)
	binary.BigEndian.PutUint16(buf[16:], f.Count03)
	binary.BigEndian.PutUint16(buf[18:], f.Count05)
	binary.BigEndian.PutUint16(buf[20:], f.Count10)
	binary.BigEndian.PutUint16(buf[22:], f.Count25)
	binary.BigEndian.PutUint16(buf[24:], f.Count50)
	binary.BigEndian.PutUint16(buf[26:], f.Count100)

	var sum uint16
	for _, b := range buf[:frameSize-2] {
		sum += uint16(b)
	}
	binary.BigEndian.PutUint16(buf[frameSize-2:], sum)
	return buf, nil
}
