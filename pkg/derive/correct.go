package derive

// HumidityFactor returns the EPA correction divisor for optical PM readings
// at the given relative humidity. Hygroscopic particle growth above 30% RH
// makes optical counters over-read; the factor grows piecewise linearly
// with humidity.
//
// Reference: https://www.epa.gov/air-sensor-toolbox
func HumidityFactor(humidity float32) float32 {
	switch {
	case humidity <= 30:
		return 1.0
	case humidity <= 50:
		return 1.0 + 0.005*(humidity-30)
	case humidity <= 70:
		return 1.1 + 0.01*(humidity-50)
	case humidity <= 90:
		return 1.3 + 0.02*(humidity-70)
	default:
		return 1.7 + 0.03*(humidity-90)
	}
}

// CorrectPM divides a PM concentration in ug/m3 by the EPA humidity factor
// and truncates back to an integer concentration.
func CorrectPM(pm int, humidity float32) int {
	return int(float32(pm) / HumidityFactor(humidity))
}
