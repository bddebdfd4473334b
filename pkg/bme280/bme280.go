// Package bme280 is a register-level driver for the Bosch BME280
// environmental sensor over I2C. It reads the factory calibration from
// NVM and applies Bosch's fixed-point compensation to the raw ADC words,
// yielding temperature, relative humidity and pressure.
package bme280

import (
	"fmt"
	"time"

	"golang.org/x/exp/io/i2c"
)

const (
	regCalib1   = 0x88 // 26 bytes: dig_T1..dig_P9, dig_H1
	regChipID   = 0xD0
	regReset    = 0xE0
	regCalib2   = 0xE1 // 7 bytes: dig_H2..dig_H6
	regCtrlHum  = 0xF2
	regStatus   = 0xF3
	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regData     = 0xF7 // 8 bytes: pressure, temperature, humidity

	chipID         = 0x60
	resetCode      = 0xB6
	statusImUpdate = 0x01
)

// DefaultAddrs are the two bus addresses the sensor can be strapped to.
var DefaultAddrs = []int{0x76, 0x77}

// Reading is one compensated measurement.
type Reading struct {
	Temperature float32 // degC
	Humidity    float32 // %RH
	Pressure    float32 // Pa
}

// Bus is the register transport to the sensor.
type Bus interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// Ensure the x/exp i2c device satisfies Bus.
var _ Bus = (*i2c.Device)(nil)

// Device is a configured sensor ready to read.
type Device struct {
	bus Bus
	cal calibration
}

// Open probes the named I2C device node for a sensor at each address in
// turn (DefaultAddrs when none are given) and returns the first that
// identifies as a BME280.
func Open(dev string, addrs ...int) (*Device, error) {
	if len(addrs) == 0 {
		addrs = DefaultAddrs
	}

	var lastErr error
	for _, addr := range addrs {
		bus, err := i2c.Open(&i2c.Devfs{Dev: dev}, addr)
		if err != nil {
			lastErr = fmt.Errorf("open %s addr 0x%02X: %w", dev, addr, err)
			continue
		}
		d, err := New(bus)
		if err != nil {
			bus.Close()
			lastErr = err
			continue
		}
		return d, nil
	}
	return nil, fmt.Errorf("no sensor found on %s: %w", dev, lastErr)
}

// New initializes a Device on an already open bus.
func New(bus Bus) (*Device, error) {
	d := &Device{bus: bus}
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// Init verifies the chip identity, soft-resets it, reloads the factory
// calibration and programs oversampling. It is also the recovery path
// after the sensor has been declared offline.
func (d *Device) Init() error {
	var id [1]byte
	if err := d.bus.ReadReg(regChipID, id[:]); err != nil {
		return fmt.Errorf("read chip id: %w", err)
	}
	if id[0] != chipID {
		return fmt.Errorf("unexpected chip id 0x%02X, want 0x%02X", id[0], chipID)
	}

	if err := d.bus.WriteReg(regReset, []byte{resetCode}); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	// The chip copies calibration out of NVM after reset; im_update
	// clears when the copy is done.
	for i := 0; i < 10; i++ {
		var st [1]byte
		if err := d.bus.ReadReg(regStatus, st[:]); err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		if st[0]&statusImUpdate == 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := d.readCalibration(); err != nil {
		return err
	}

	// Humidity oversampling only latches on the next ctrl_meas write,
	// and config is only writable before normal mode is entered.
	if err := d.bus.WriteReg(regCtrlHum, []byte{0x05}); err != nil { // osrs_h x16
		return fmt.Errorf("ctrl_hum: %w", err)
	}
	if err := d.bus.WriteReg(regConfig, []byte{0x00}); err != nil { // filter off, 0.5ms standby
		return fmt.Errorf("config: %w", err)
	}
	if err := d.bus.WriteReg(regCtrlMeas, []byte{0xB7}); err != nil { // osrs_t/p x16, normal mode
		return fmt.Errorf("ctrl_meas: %w", err)
	}
	return nil
}

// Read returns one compensated measurement.
func (d *Device) Read() (Reading, error) {
	var buf [8]byte
	if err := d.bus.ReadReg(regData, buf[:]); err != nil {
		return Reading{}, fmt.Errorf("read data: %w", err)
	}

	adcP := int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4
	adcT := int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4
	adcH := int32(buf[6])<<8 | int32(buf[7])

	centi, tFine := d.cal.temperature(adcT)
	return Reading{
		Temperature: float32(centi) / 100,
		Humidity:    float32(d.cal.humidity(adcH, tFine)) / 1024,
		Pressure:    float32(d.cal.pressure(adcP, tFine)) / 256,
	}, nil
}

// Close releases the bus.
func (d *Device) Close() error {
	return d.bus.Close()
}

func (d *Device) readCalibration() error {
	var b1 [26]byte
	if err := d.bus.ReadReg(regCalib1, b1[:]); err != nil {
		return fmt.Errorf("read calibration: %w", err)
	}
	var b2 [7]byte
	if err := d.bus.ReadReg(regCalib2, b2[:]); err != nil {
		return fmt.Errorf("read calibration: %w", err)
	}
	d.cal = parseCalibration(b1, b2)
	return nil
}
