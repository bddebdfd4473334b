// Package station runs the acquisition pipeline: it duty-cycles the
// particle sensor, reads both sensors on a shared schedule, feeds the
// channel filters, derives the physical quantities and publishes the
// result as an atomically swapped Snapshot.
package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zmilosevic/vazduh/pkg/bme280"
	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/derive"
	"github.com/zmilosevic/vazduh/pkg/filter"
	"github.com/zmilosevic/vazduh/pkg/pms"
)

const (
	tickInterval = time.Second

	// wakeAhead is how long before a scheduled read the particle
	// sensor's fan is started so airflow can stabilize.
	wakeAhead = 30 * time.Second

	// Plausibility bounds for environmental readings. Humidity up to
	// 110 %RH is accepted and saturated to 100 rather than rejected,
	// so fog does not flag the sensor offline; the 110 ceiling is an
	// empirically tuned tolerance for sensor overshoot.
	tempMinValid = -40.0
	tempMaxValid = 85.0
	humMaxValid  = 110.0
)

// ParticleSensor is the duty-cycled particulate matter sensor.
type ParticleSensor interface {
	ReadFrame(timeout time.Duration) (pms.Frame, error)
	RequestRead() error
	Wake() error
	Sleep() error
	SetPassive() error
	Drain() error
	Stats() pms.Stats
}

var _ ParticleSensor = (*pms.Sensor)(nil)

// EnvSensor is the environmental (temperature, humidity, pressure)
// sensor.
type EnvSensor interface {
	Init() error
	Read() (bme280.Reading, error)
}

var _ EnvSensor = (*bme280.Device)(nil)

// Stats counts pipeline activity since startup.
type Stats struct {
	Cycles           uint64
	ParticleReads    uint64
	ParticleFailures uint64
	EnvReads         uint64
	EnvFailures      uint64
	Decode           pms.Stats
}

// Station owns the read cycle and the current Snapshot.
type Station struct {
	particle ParticleSensor
	env      EnvSensor
	log      *zap.Logger

	mu   sync.RWMutex
	snap Snapshot

	// acquisition parameters, guarded by mu
	publishMinutes int
	window         int
	smoothing      string
	readTimeout    time.Duration
	continuous     bool
	altitude       int
	pm25Factor     float32
	pm10Factor     float32
	tempOffset     float32
	humOffset      float32

	fPM1, fPM25, fPM10 filter.Filter
	fTemp, fHum, fPres filter.Filter

	particleHealth *tracker
	envHealth      *tracker

	stats Stats

	cbMu      sync.Mutex
	callbacks []func(Snapshot)

	// scheduler state, touched only by the Run goroutine
	lastRead time.Time
	awake    bool

	now func() time.Time
}

// New creates a Station from the application configuration. The sensors
// are not touched until Run.
func New(cfg *config.Config, particle ParticleSensor, env EnvSensor, log *zap.Logger) (*Station, error) {
	if log == nil {
		log = zap.NewNop()
	}

	a := cfg.Acquisition
	mk := func() (filter.Filter, error) { return filter.ForName(a.Smoothing, a.Window) }

	s := &Station{
		particle:       particle,
		env:            env,
		log:            log,
		publishMinutes: a.PublishMinutes,
		window:         a.Window,
		smoothing:      a.Smoothing,
		readTimeout:    a.ReadTimeout,
		continuous:     a.Continuous,
		altitude:       a.AltitudeMeters,
		pm25Factor:     cfg.Calibration.PM25Factor,
		pm10Factor:     cfg.Calibration.PM10Factor,
		tempOffset:     cfg.Calibration.TempOffset,
		humOffset:      cfg.Calibration.HumOffset,
		particleHealth: newTracker(),
		envHealth:      newTracker(),
		now:            time.Now,
	}

	var err error
	for _, f := range []*filter.Filter{&s.fPM1, &s.fPM25, &s.fPM10, &s.fTemp, &s.fHum, &s.fPres} {
		if *f, err = mk(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OnUpdate registers a callback invoked with every published Snapshot.
// Callbacks run on the acquisition goroutine and must not block.
func (s *Station) OnUpdate(cb func(Snapshot)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

func (s *Station) notify(snap Snapshot) {
	s.cbMu.Lock()
	cbs := make([]func(Snapshot), len(s.callbacks))
	copy(cbs, s.callbacks)
	s.cbMu.Unlock()

	for _, cb := range cbs {
		cb(snap)
	}
}

// Snapshot returns the most recently published snapshot.
func (s *Station) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Stats returns acquisition counters. The decoder counters are sampled
// once per cycle, so they can lag the wire by one read.
func (s *Station) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Run drives the acquisition loop until the context is cancelled. The
// particle sensor is woken on entry and put to sleep on exit.
func (s *Station) Run(ctx context.Context) error {
	if err := s.initParticle(); err != nil {
		s.log.Warn("particle sensor init failed", zap.Error(err))
	} else {
		s.awake = true
	}
	s.lastRead = s.now()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer func() {
		if err := s.particle.Drain(); err == nil {
			_ = s.particle.Sleep()
		}
	}()

	s.log.Info("station started",
		zap.Duration("read_interval", s.readInterval()),
		zap.Int("window", s.Window()),
		zap.Bool("continuous", s.Continuous()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(s.now())
		}
	}
}

// initParticle puts the particle sensor into the known state the cycle
// expects: awake, passive reporting and an empty receive buffer.
func (s *Station) initParticle() error {
	if err := s.particle.Wake(); err != nil {
		return err
	}
	if err := s.particle.SetPassive(); err != nil {
		return err
	}
	return s.particle.Drain()
}

func (s *Station) readInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readIntervalLocked()
}

// readIntervalLocked derives the per-sample interval so that one full
// filter window accumulates between publishes.
func (s *Station) readIntervalLocked() time.Duration {
	return time.Duration(s.publishMinutes) * time.Minute / time.Duration(s.window)
}

func (s *Station) tick(now time.Time) {
	s.mu.RLock()
	interval := s.readIntervalLocked()
	cont := s.continuous
	s.mu.RUnlock()

	remaining := interval - now.Sub(s.lastRead)

	if !s.awake && (cont || remaining <= wakeAhead) {
		if err := s.particle.Wake(); err != nil {
			s.log.Warn("particle wake failed", zap.Error(err))
		}
		s.awake = true
	}

	if remaining > 0 {
		return
	}
	s.lastRead = now
	s.cycle(now)

	if !cont {
		if err := s.particle.Drain(); err != nil {
			s.log.Warn("particle drain failed", zap.Error(err))
		}
		if err := s.particle.Sleep(); err != nil {
			s.log.Warn("particle sleep failed", zap.Error(err))
		}
		s.awake = false
	}
}

// cycle performs one read of both sensors and publishes a new Snapshot.
func (s *Station) cycle(now time.Time) {
	s.mu.RLock()
	timeout := s.readTimeout
	s.mu.RUnlock()

	frame, perr := s.readParticleFrame(timeout)
	reading, eerr := s.env.Read()

	var reinitParticle, reinitEnv bool

	s.mu.Lock()
	prev := s.snap
	next := prev
	next.Time = now
	s.stats.Cycles++
	s.stats.Decode = s.particle.Stats()

	if perr != nil {
		s.stats.ParticleFailures++
		status, crossed := s.particleHealth.observeFailure()
		next.ParticleStatus = status
		if crossed {
			s.fPM1.Reset()
			s.fPM25.Reset()
			s.fPM10.Reset()
		}
		reinitParticle = status == StatusOffline
	} else {
		s.stats.ParticleReads++
		s.applyParticles(&next, frame)
	}

	if eerr == nil && !s.applyEnv(&next, reading) {
		eerr = fmt.Errorf("implausible reading: %.1f degC, %.1f %%RH", reading.Temperature, reading.Humidity)
	}
	if eerr != nil {
		s.stats.EnvFailures++
		status, crossed := s.envHealth.observeFailure()
		next.EnvStatus = status
		if crossed {
			s.fTemp.Reset()
			s.fHum.Reset()
			s.fPres.Reset()
		}
		reinitEnv = status == StatusOffline
	} else {
		s.stats.EnvReads++
	}

	// Corrected PM always comes from this snapshot's own PM and
	// humidity, never carried over independently.
	next.PM1Corrected = derive.CorrectPM(next.PM1, next.Humidity)
	next.PM25Corrected = derive.CorrectPM(next.PM25, next.Humidity)
	next.PM10Corrected = derive.CorrectPM(next.PM10, next.Humidity)
	next.AirQuality = derive.AirQualityFromPM10(next.PM10)

	s.snap = next
	s.mu.Unlock()

	if perr != nil {
		s.log.Warn("particle read failed", zap.Error(perr))
	}
	if eerr != nil {
		s.log.Warn("environmental read failed", zap.Error(eerr))
	}
	s.logTransition("particle", prev.ParticleStatus, next.ParticleStatus)
	s.logTransition("environment", prev.EnvStatus, next.EnvStatus)

	if reinitParticle {
		if err := s.initParticle(); err != nil {
			s.log.Warn("particle reinit failed", zap.Error(err))
		}
		s.awake = true
	}
	if reinitEnv {
		if err := s.env.Init(); err != nil {
			s.log.Warn("environmental reinit failed", zap.Error(err))
		}
	}

	s.notify(next)
}

// readParticleFrame runs one passive-mode exchange: request a report,
// then decode until a valid frame or the deadline.
func (s *Station) readParticleFrame(timeout time.Duration) (pms.Frame, error) {
	if err := s.particle.RequestRead(); err != nil {
		return pms.Frame{}, fmt.Errorf("request read: %w", err)
	}
	return s.particle.ReadFrame(timeout)
}

// applyParticles folds a decoded frame into the snapshot. Atmospheric
// concentrations feed the filters; calibration factors are applied to
// the filtered values.
func (s *Station) applyParticles(next *Snapshot, f pms.Frame) {
	pm1 := s.fPM1.Push(int(f.AtmPM1))
	pm25 := s.fPM25.Push(int(f.AtmPM25))
	pm10 := s.fPM10.Push(int(f.AtmPM10))

	if s.pm25Factor != 1.0 {
		pm25 = int(float32(pm25) * s.pm25Factor)
	}
	if s.pm10Factor != 1.0 {
		pm10 = int(float32(pm10) * s.pm10Factor)
	}

	next.PM1 = pm1
	next.PM25 = pm25
	next.PM10 = pm10
	next.Count03 = int(f.Count03)
	next.Count05 = int(f.Count05)
	next.Count10 = int(f.Count10)
	next.Count25 = int(f.Count25)
	next.Count50 = int(f.Count50)
	next.Count100 = int(f.Count100)
	next.ParticleStatus = s.particleHealth.observeReading(pm1, pm25, pm10)
}

// applyEnv folds an environmental reading into the snapshot. It reports
// false when the reading falls outside the plausibility bounds, in
// which case the snapshot is untouched.
func (s *Station) applyEnv(next *Snapshot, r bme280.Reading) bool {
	temp := r.Temperature + s.tempOffset
	hum := derive.CompensateHumidity(r.Humidity, r.Temperature, temp) + s.humOffset
	if r.Temperature <= tempMinValid || r.Temperature >= tempMaxValid ||
		hum <= 0 || hum > humMaxValid {
		return false
	}
	if hum > 100 {
		hum = 100
	}
	pres := r.Pressure / 100 // Pa to hPa

	// Fixed-point push keeps two decimals through the integer filters.
	ftemp := float32(s.fTemp.Push(int(temp*100))) / 100
	fhum := float32(s.fHum.Push(int(hum*100))) / 100
	fpres := float32(s.fPres.Push(int(pres*100))) / 100

	next.Temperature = ftemp
	next.Humidity = fhum
	next.Pressure = fpres
	next.DewPoint = derive.DewPoint(ftemp, fhum)
	next.AbsoluteHumidity = derive.AbsoluteHumidity(ftemp, fhum)
	next.HeatIndex = derive.HeatIndex(ftemp, fhum)
	next.SeaLevelPressure = derive.SeaLevelPressure(fpres, s.altitude)
	next.Altitude = derive.PressureAltitude(fpres, derive.StandardSeaLevelPressure)
	next.EnvStatus = s.envHealth.observeValid()
	return true
}

func (s *Station) logTransition(sensor string, from, to Status) {
	if from == to {
		return
	}
	if to == StatusOK {
		s.log.Info("sensor online", zap.String("sensor", sensor))
		return
	}
	s.log.Warn("sensor status changed",
		zap.String("sensor", sensor),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
}

// SetPublishInterval changes the publish interval in minutes. The
// per-sample read interval follows from it.
func (s *Station) SetPublishInterval(minutes int) error {
	if minutes < 1 || minutes > 60 {
		return fmt.Errorf("publish interval %d out of range [1,60] minutes", minutes)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishMinutes = minutes
	return nil
}

// PublishInterval returns the publish interval in minutes.
func (s *Station) PublishInterval() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publishMinutes
}

// Window returns the number of samples per filter window.
func (s *Station) Window() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// SetContinuous toggles keeping the particle sensor awake between
// reads.
func (s *Station) SetContinuous(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.continuous = on
}

// Continuous reports whether the particle sensor is held awake.
func (s *Station) Continuous() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.continuous
}

// SetAltitude changes the station altitude used for sea-level pressure
// extrapolation.
func (s *Station) SetAltitude(meters int) error {
	if meters < 0 || meters > 8850 {
		return fmt.Errorf("altitude %d out of range [0,8850] m", meters)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.altitude = meters
	return nil
}

// Altitude returns the configured station altitude in meters.
func (s *Station) Altitude() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.altitude
}

// SetPMFactors changes the per-unit PM calibration factors. They apply
// to filtered values, so no filter reset is needed.
func (s *Station) SetPMFactors(pm25, pm10 float32) error {
	if pm25 < 0.1 || pm25 > 10 {
		return fmt.Errorf("pm2.5 factor %.2f out of range [0.1,10.0]", pm25)
	}
	if pm10 < 0.1 || pm10 > 10 {
		return fmt.Errorf("pm10 factor %.2f out of range [0.1,10.0]", pm10)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pm25Factor = pm25
	s.pm10Factor = pm10
	return nil
}

// PMFactors returns the PM2.5 and PM10 calibration factors.
func (s *Station) PMFactors() (pm25, pm10 float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pm25Factor, s.pm10Factor
}

// SetTempOffset changes the temperature offset. The offset feeds the
// filters, so the temperature and humidity histories are discarded
// (compensated humidity depends on the adjusted temperature).
func (s *Station) SetTempOffset(offset float32) error {
	if offset < -20 || offset > 20 {
		return fmt.Errorf("temperature offset %.1f out of range [-20,20]", offset)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempOffset = offset
	s.fTemp.Reset()
	s.fHum.Reset()
	return nil
}

// TempOffset returns the configured temperature offset in degC.
func (s *Station) TempOffset() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tempOffset
}

// SetHumOffset changes the humidity offset. Like the temperature
// offset it feeds the filters, so their history is discarded.
func (s *Station) SetHumOffset(offset float32) error {
	if offset < -30 || offset > 30 {
		return fmt.Errorf("humidity offset %.1f out of range [-30,30]", offset)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.humOffset = offset
	s.fHum.Reset()
	return nil
}

// HumOffset returns the configured humidity offset in %RH.
func (s *Station) HumOffset() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.humOffset
}
