package pms

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultReadTimeout bounds ReadFrame when the caller passes no timeout.
const DefaultReadTimeout = 1000 * time.Millisecond

// ErrReadTimeout is returned by ReadFrame when no valid frame arrived
// before the deadline. A single timeout is not a fault; callers count
// consecutive occurrences before declaring the sensor offline.
var ErrReadTimeout = errors.New("no frame before deadline")

// Port is the byte link to the sensor. Read must not block indefinitely:
// implementations return n == 0 after a short internal poll interval when
// nothing is buffered, so ReadFrame can enforce its own deadline.
type Port interface {
	io.ReadWriter
	ResetInputBuffer() error
}

// Sensor wraps a Port with the sensor's framing and command protocol.
// Not safe for concurrent use; the acquisition loop is its only caller.
type Sensor struct {
	port Port
	dec  Decoder
	rbuf [64]byte
	now  func() time.Time
}

// New returns a Sensor reading from port.
func New(port Port) *Sensor {
	return &Sensor{port: port, now: time.Now}
}

// ReadFrame polls the port until a valid frame is decoded or timeout
// elapses, whichever comes first. A non-positive timeout selects
// DefaultReadTimeout. Bytes queued before the call are discarded first:
// stale output from an earlier, unconsumed transmission would
// desynchronize the decode.
func (s *Sensor) ReadFrame(timeout time.Duration) (Frame, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := s.Drain(); err != nil {
		return Frame{}, fmt.Errorf("drain: %w", err)
	}
	s.dec.Reset()

	deadline := s.now().Add(timeout)
	for {
		n, err := s.port.Read(s.rbuf[:])
		if err != nil {
			return Frame{}, fmt.Errorf("read: %w", err)
		}
		now := s.now()
		for _, b := range s.rbuf[:n] {
			if f, ok := s.dec.Feed(b, now); ok {
				return f, nil
			}
		}
		if !now.Before(deadline) {
			return Frame{}, ErrReadTimeout
		}
	}
}

// Drain discards any bytes queued on the link.
func (s *Sensor) Drain() error {
	return s.port.ResetInputBuffer()
}

// Wake powers the fan and laser back up. The airflow needs around thirty
// seconds to stabilize before readings are trustworthy.
func (s *Sensor) Wake() error { return s.send(cmdWakeSleep, 1) }

// Sleep stops the fan and laser to conserve them between reads.
func (s *Sensor) Sleep() error { return s.send(cmdWakeSleep, 0) }

// SetPassive switches the sensor to respond only to RequestRead instead
// of streaming frames continuously.
func (s *Sensor) SetPassive() error { return s.send(cmdChangeMode, 0) }

// SetActive switches the sensor back to streaming frames on its own.
func (s *Sensor) SetActive() error { return s.send(cmdChangeMode, 1) }

// RequestRead asks a passive-mode sensor for one measurement frame.
func (s *Sensor) RequestRead() error { return s.send(cmdRequestRead, 0) }

// Stats returns the decoder's counters.
func (s *Sensor) Stats() Stats { return s.dec.Stats() }

func (s *Sensor) send(cmd byte, arg uint16) error {
	c := command(cmd, arg)
	n, err := s.port.Write(c[:])
	if err != nil {
		return fmt.Errorf("send 0x%02X: %w", cmd, err)
	}
	if n != len(c) {
		return fmt.Errorf("send 0x%02X: short write (%d of %d)", cmd, n, len(c))
	}
	return nil
}
