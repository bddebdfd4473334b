// Package sim provides simulated sensors for running the station
// without hardware. The particle simulator speaks the real wire
// protocol so the whole decode path is exercised.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/pms"
)

const (
	// responseDelay models the gap between a request command and the
	// first response byte on the wire. Requested frames queued behind
	// it survive a buffer flush, like bytes still in flight do.
	responseDelay = 20 * time.Millisecond

	readIdleDelay = 10 * time.Millisecond

	cmdSync0       = 0x42
	cmdSync1       = 0x4D
	cmdChangeMode  = 0xE1
	cmdRequestRead = 0xE2
	cmdWakeSleep   = 0xE4
)

// ParticlePort emulates the particle sensor behind its serial link. It
// parses the 7-byte command set and produces checksummed frames, so it
// can stand in for a serial port under the real driver. The device
// powers up awake in active reporting mode.
type ParticlePort struct {
	mu      sync.Mutex
	cfg     config.SimConfig
	pending []byte
	readyAt time.Time
	awake   bool
	active  bool
	start   time.Time
	now     func() time.Time
}

var _ pms.Port = (*ParticlePort)(nil)

// NewParticlePort creates a simulated particle sensor.
func NewParticlePort(cfg config.SimConfig) *ParticlePort {
	if cfg.BasePM25 == 0 {
		cfg.BasePM25 = 12
	}
	return &ParticlePort{
		cfg:    cfg,
		awake:  true,
		active: true,
		start:  time.Now(),
		now:    time.Now,
	}
}

// Write accepts command frames. Malformed or bad-checksum commands are
// ignored, as the hardware does.
func (s *ParticlePort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p) != 7 || p[0] != cmdSync0 || p[1] != cmdSync1 {
		return len(p), nil
	}
	var sum uint16
	for _, b := range p[:5] {
		sum += uint16(b)
	}
	if sum != uint16(p[5])<<8|uint16(p[6]) {
		return len(p), nil
	}

	arg := uint16(p[3])<<8 | uint16(p[4])
	switch p[2] {
	case cmdWakeSleep:
		s.awake = arg == 1
		if !s.awake {
			s.pending = nil
		}
	case cmdChangeMode:
		s.active = arg == 1
	case cmdRequestRead:
		if s.awake && !s.active {
			s.pending = s.frameBytes()
			s.readyAt = s.now().Add(responseDelay)
		}
	}
	return len(p), nil
}

// Read returns pending response bytes, or generates frames continuously
// in active mode. With nothing to send it idles briefly and returns a
// zero count, like a serial read timeout.
func (s *ParticlePort) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.pending) == 0 && s.awake && s.active {
		s.pending = s.frameBytes()
		s.readyAt = s.now()
	}
	if len(s.pending) == 0 || s.now().Before(s.readyAt) {
		s.mu.Unlock()
		time.Sleep(readIdleDelay)
		return 0, nil
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	s.mu.Unlock()
	return n, nil
}

// ResetInputBuffer discards received bytes. A requested frame still
// inside the response delay has not arrived yet and is kept.
func (s *ParticlePort) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.now().Before(s.readyAt) {
		s.pending = nil
	}
	return nil
}

func (s *ParticlePort) frameBytes() []byte {
	f := s.frame()
	b, _ := f.MarshalBinary()
	return b
}

// frame synthesizes a plausible measurement: a slow hour-scale swell
// over the configured baseline plus deterministic jitter.
func (s *ParticlePort) frame() pms.Frame {
	elapsed := s.now().Sub(s.start).Seconds()

	drift := 1 + 0.25*math.Sin(2*math.Pi*elapsed/3600)
	jitter := 1 + s.cfg.Noise*0.5*(math.Sin(elapsed*0.7)+math.Cos(elapsed*1.3))

	pm25 := math.Max(0, s.cfg.BasePM25*drift*jitter)
	pm1 := 0.6 * pm25
	pm10 := 1.3 * pm25

	conc := func(v float64) uint16 { return uint16(math.Round(v)) }
	count := func(scale float64) uint16 { return uint16(math.Round(pm25 * scale)) }

	return pms.Frame{
		StdPM1:   conc(pm1),
		StdPM25:  conc(pm25),
		StdPM10:  conc(pm10),
		AtmPM1:   conc(pm1),
		AtmPM25:  conc(pm25),
		AtmPM10:  conc(pm10),
		Count03:  count(120),
		Count05:  count(36),
		Count10:  count(8),
		Count25:  count(1.2),
		Count50:  count(0.3),
		Count100: count(0.1),
	}
}
