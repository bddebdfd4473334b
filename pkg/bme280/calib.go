package bme280

import (
	"encoding/binary"
)

// calibration holds the per-chip trimming values, named as in the Bosch
// datasheet. The compensation routines below are transcriptions of the
// reference fixed-point code, so they stay exactly bit-compatible with
// what the chip was trimmed against.
type calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16
	H5 int16
	H6 int8
}

func parseCalibration(b1 [26]byte, b2 [7]byte) calibration {
	u16 := binary.LittleEndian.Uint16
	return calibration{
		T1: u16(b1[0:]),
		T2: int16(u16(b1[2:])),
		T3: int16(u16(b1[4:])),

		P1: u16(b1[6:]),
		P2: int16(u16(b1[8:])),
		P3: int16(u16(b1[10:])),
		P4: int16(u16(b1[12:])),
		P5: int16(u16(b1[14:])),
		P6: int16(u16(b1[16:])),
		P7: int16(u16(b1[18:])),
		P8: int16(u16(b1[20:])),
		P9: int16(u16(b1[22:])),

		H1: b1[25],
		H2: int16(u16(b2[0:])),
		H3: b2[2],
		// H4 and H5 share the nibbles of 0xE5.
		H4: int16(b2[3])<<4 | int16(b2[4]&0x0F),
		H5: int16(b2[5])<<4 | int16(b2[4]>>4),
		H6: int8(b2[6]),
	}
}

// temperature returns the temperature in centidegrees and the t_fine
// carry value the pressure and humidity compensations depend on.
func (c *calibration) temperature(adc int32) (centi, tFine int32) {
	var1 := (((adc >> 3) - (int32(c.T1) << 1)) * int32(c.T2)) >> 11
	var2 := (((((adc >> 4) - int32(c.T1)) * ((adc >> 4) - int32(c.T1))) >> 12) * int32(c.T3)) >> 14
	tFine = var1 + var2
	centi = (tFine*5 + 128) >> 8
	return centi, tFine
}

// pressure returns the pressure in Pa as an unsigned Q24.8 fixed-point
// value. Returns 0 when the calibration would divide by zero.
func (c *calibration) pressure(adc, tFine int32) uint32 {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1) << 47) + var1) * int64(c.P1) >> 33
	if var1 == 0 {
		return 0
	}

	p := int64(1048576 - adc)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)
	return uint32(p)
}

// humidity returns the relative humidity in %RH as an unsigned Q22.10
// fixed-point value, clamped to the chip's 0..100% output range.
func (c *calibration) humidity(adc, tFine int32) uint32 {
	v := tFine - 76800
	v = ((((adc << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v)) + 16384) >> 15) *
		(((((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192) >> 14)
	v -= ((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4

	if v < 0 {
		v = 0
	}
	if v > 419430400 {
		v = 419430400
	}
	return uint32(v >> 12)
}
