package pms

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the sensor's fixed UART rate (8N1).
	DefaultBaudRate = 9600

	// readPoll is how long a Read on the serial port waits for data
	// before returning empty, keeping ReadFrame's deadline responsive.
	readPoll = 20 * time.Millisecond
)

// Ensure the serial library's port satisfies Port.
var _ Port = (serial.Port)(nil)

// OpenSerial opens the named serial port configured for the sensor and
// returns it ready to hand to New. The caller owns closing it.
func OpenSerial(name string) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: DefaultBaudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return port, nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
