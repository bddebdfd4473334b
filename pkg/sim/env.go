package sim

import (
	"math"
	"sync"
	"time"

	"github.com/zmilosevic/vazduh/pkg/bme280"
	"github.com/zmilosevic/vazduh/pkg/config"
	"github.com/zmilosevic/vazduh/pkg/station"
)

// Env emulates the environmental sensor with a slow daily swing around
// the configured baselines.
type Env struct {
	mu    sync.Mutex
	cfg   config.SimConfig
	start time.Time
	now   func() time.Time
}

var _ station.EnvSensor = (*Env)(nil)

// NewEnv creates a simulated environmental sensor.
func NewEnv(cfg config.SimConfig) *Env {
	if cfg.BaseTemperature == 0 {
		cfg.BaseTemperature = 21
	}
	if cfg.BaseHumidity == 0 {
		cfg.BaseHumidity = 45
	}
	if cfg.BasePressure == 0 {
		cfg.BasePressure = 1007
	}
	return &Env{
		cfg:   cfg,
		start: time.Now(),
		now:   time.Now,
	}
}

func (e *Env) Init() error { return nil }

// Read returns the simulated reading. Pressure is in Pa, matching the
// hardware driver.
func (e *Env) Read() (bme280.Reading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.now().Sub(e.start).Seconds()
	day := 2 * math.Pi * elapsed / 86400
	noise := e.cfg.Noise * (math.Sin(elapsed*0.9) + math.Cos(elapsed*1.7)) * 0.5

	temp := e.cfg.BaseTemperature + 3*math.Sin(day) + noise*2
	hum := e.cfg.BaseHumidity - 8*math.Sin(day) + noise*10
	hum = math.Min(99, math.Max(1, hum))
	pres := e.cfg.BasePressure * (1 + 0.001*math.Sin(day/2) + noise*0.0002)

	return bme280.Reading{
		Temperature: float32(temp),
		Humidity:    float32(hum),
		Pressure:    float32(pres * 100),
	}, nil
}
