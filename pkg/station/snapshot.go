package station

import (
	"time"

	"github.com/zmilosevic/vazduh/pkg/derive"
)

// Status is the health classification of a physical sensor.
type Status int

const (
	StatusInitializing Status = iota
	StatusOK
	StatusFanStuck
	StatusZeroData
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "Initializing"
	case StatusOK:
		return "OK"
	case StatusFanStuck:
		return "Fan Stuck"
	case StatusZeroData:
		return "Zero Data"
	case StatusOffline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// Snapshot is the station's externally visible output, rewritten as a
// whole at the end of each read cycle. Fields from a sensor that failed
// its read keep their previous values; the status fields say which
// sensors are current.
type Snapshot struct {
	Time time.Time

	// Filtered particulate concentrations, ug/m3.
	PM1  int
	PM25 int
	PM10 int

	// Humidity-corrected concentrations, derived from this snapshot's
	// PM and humidity.
	PM1Corrected  int
	PM25Corrected int
	PM10Corrected int

	// Particle counts per 0.1 L of air, by minimum particle diameter.
	Count03  int
	Count05  int
	Count10  int
	Count25  int
	Count50  int
	Count100 int

	Temperature float32 // degC, offset applied, filtered
	Humidity    float32 // %RH, compensated and clamped, filtered
	Pressure    float32 // hPa, filtered

	DewPoint         float32 // degC
	AbsoluteHumidity float32 // g/m3
	HeatIndex        float32 // degC
	SeaLevelPressure float32 // hPa, extrapolated using the configured altitude
	Altitude         float32 // m, derived from pressure vs the standard atmosphere

	AirQuality derive.AirQuality

	ParticleStatus Status
	EnvStatus      Status
}

// CombinedStatus folds both sensor healths into one display string,
// worst condition first.
func CombinedStatus(particle, env Status) string {
	switch {
	case particle == StatusOffline && env == StatusOffline:
		return "All Sensors Offline"
	case particle == StatusOffline:
		return "PMS Offline"
	case env == StatusOffline:
		return "BME Offline"
	case particle == StatusInitializing || env == StatusInitializing:
		return "Initializing"
	case particle == StatusFanStuck:
		return "Fan Stuck"
	case particle == StatusZeroData:
		return "Zero Data"
	default:
		return "OK"
	}
}
