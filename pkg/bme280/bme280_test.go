package bme280

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus serves sensor registers from a map and records writes.
type fakeBus struct {
	regs   map[byte][]byte
	writes map[byte][]byte
	order  []byte
	closed bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		regs: map[byte][]byte{
			regChipID: {chipID},
			regStatus: {0x00},
			regCalib1: make([]byte, 26),
			regCalib2: make([]byte, 7),
			regData:   make([]byte, 8),
		},
		writes: map[byte][]byte{},
	}
}

func (b *fakeBus) ReadReg(reg byte, buf []byte) error {
	data, ok := b.regs[reg]
	if !ok || len(data) < len(buf) {
		return fmt.Errorf("no register 0x%02X", reg)
	}
	copy(buf, data)
	return nil
}

func (b *fakeBus) WriteReg(reg byte, buf []byte) error {
	b.writes[reg] = append([]byte(nil), buf...)
	b.order = append(b.order, reg)
	return nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

// Calibration words chosen so the fixed-point pipelines come out to round
// numbers: T2 = 2048 makes t_fine equal adc>>3, P1 = 32768 reduces the
// pressure chain to a pure scale, H2 = 400 makes the humidity factor
// 51200 exactly.
func syntheticCal(bus *fakeBus) {
	b1 := make([]byte, 26)
	b1[2], b1[3] = 0x00, 0x08 // T2 = 2048
	b1[6], b1[7] = 0x00, 0x80 // P1 = 32768
	bus.regs[regCalib1] = b1

	b2 := make([]byte, 7)
	b2[0], b2[1] = 0x90, 0x01 // H2 = 400
	bus.regs[regCalib2] = b2
}

func TestDeviceRead(t *testing.T) {
	bus := newFakeBus()
	syntheticCal(bus)
	// adc_T = adc_P = 0x80000, adc_H = 0x1FFF.
	bus.regs[regData] = []byte{0x80, 0x00, 0x00, 0x80, 0x00, 0x00, 0x1F, 0xFF}

	d, err := New(bus)
	require.NoError(t, err)

	r, err := d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 12.80, r.Temperature, 0.01)
	assert.InDelta(t, 50.0, r.Humidity, 0.01)
	assert.InDelta(t, 100000.0, r.Pressure, 0.5) // 1000.00 hPa
}

func TestDeviceRejectsWrongChip(t *testing.T) {
	bus := newFakeBus()
	bus.regs[regChipID] = []byte{0x58} // BMP280, no humidity sensing

	_, err := New(bus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chip id")
}

func TestInitRegisterSequence(t *testing.T) {
	bus := newFakeBus()
	_, err := New(bus)
	require.NoError(t, err)

	assert.Equal(t, []byte{resetCode}, bus.writes[regReset])
	assert.Equal(t, []byte{0x05}, bus.writes[regCtrlHum])
	assert.Equal(t, []byte{0x00}, bus.writes[regConfig])
	assert.Equal(t, []byte{0xB7}, bus.writes[regCtrlMeas])

	pos := func(reg byte) int {
		for i, r := range bus.order {
			if r == reg {
				return i
			}
		}
		return -1
	}
	assert.Less(t, pos(regCtrlHum), pos(regCtrlMeas),
		"ctrl_hum only latches on the following ctrl_meas write")
	assert.Less(t, pos(regConfig), pos(regCtrlMeas),
		"config must be written before normal mode is entered")
}

func TestParseCalibration(t *testing.T) {
	var b1 [26]byte
	b1[0], b1[1] = 0x88, 0x6D // T1 = 28040
	b1[2], b1[3] = 0x67, 0x68 // T2 = 26727
	b1[8], b1[9] = 0x75, 0xD6 // P2 = -10635
	b1[25] = 75               // H1

	var b2 [7]byte
	b2[0], b2[1] = 0x90, 0x01 // H2 = 400
	b2[3] = 0xAB              // H4 high byte
	b2[4] = 0xCD              // H5 nibble << 4 | H4 nibble
	b2[5] = 0x12              // H5 high byte
	b2[6] = 0x9C              // H6 = -100

	cal := parseCalibration(b1, b2)
	assert.Equal(t, uint16(28040), cal.T1)
	assert.Equal(t, int16(26727), cal.T2)
	assert.Equal(t, int16(-10635), cal.P2)
	assert.Equal(t, uint8(75), cal.H1)
	assert.Equal(t, int16(400), cal.H2)
	assert.Equal(t, int16(0xABD), cal.H4)
	assert.Equal(t, int16(0x12C), cal.H5)
	assert.Equal(t, int8(-100), cal.H6)
}

func TestReadZeroCalibration(t *testing.T) {
	// An all-zero calibration must not divide by zero; the reference
	// code guards the pressure chain and returns 0 Pa.
	bus := newFakeBus()
	bus.regs[regData] = []byte{0x55, 0xAA, 0x00, 0x55, 0xAA, 0x00, 0x12, 0x34}

	d, err := New(bus)
	require.NoError(t, err)

	r, err := d.Read()
	require.NoError(t, err)
	assert.Zero(t, r.Pressure)
}

func TestClose(t *testing.T) {
	bus := newFakeBus()
	d, err := New(bus)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.True(t, bus.closed)
}
