// Package derive computes quantities derived from the measured channels:
// dew point, absolute humidity, heat index, pressure reductions and the
// EPA humidity correction for optical PM readings.
package derive

import (
	"github.com/chewxy/math32"
)

// Magnus formula constants, valid for -45..60 degC over water.
const (
	MagnusBeta  float32 = 17.62
	MagnusGamma float32 = 243.12
)

// StandardSeaLevelPressure is the ISA reference pressure in hPa.
const StandardSeaLevelPressure float32 = 1013.25

// DewPoint returns the dew point in degC for a temperature in degC and a
// relative humidity in percent.
func DewPoint(temperature, humidity float32) float32 {
	alpha := (MagnusBeta*temperature)/(MagnusGamma+temperature) + math32.Log(humidity/100)
	return (MagnusGamma * alpha) / (MagnusBeta - alpha)
}

// AbsoluteHumidity returns the water vapour content in g/m3 for a
// temperature in degC and a relative humidity in percent.
func AbsoluteHumidity(temperature, humidity float32) float32 {
	return (6.112 * math32.Exp((MagnusBeta*temperature)/(MagnusGamma+temperature)) *
		humidity * 2.1674) / (273.15 + temperature)
}

// SeaLevelPressure reduces a station pressure in hPa to sea level using the
// barometric formula. An altitude of zero returns the pressure unchanged.
func SeaLevelPressure(pressure float32, altitude int) float32 {
	if altitude == 0 {
		return pressure
	}
	return pressure / math32.Pow(1-float32(altitude)/44330, 5.255)
}

// PressureAltitude returns the barometric altitude in meters implied by a
// station pressure in hPa against the given sea-level reference.
func PressureAltitude(pressure, seaLevel float32) float32 {
	return 44330 * (1 - math32.Pow(pressure/seaLevel, 0.1903))
}

// HeatIndex returns the apparent temperature in degC using the Rothfusz
// regression. Below 20 degC the regression does not apply and the input
// temperature is returned; between 20 and 26.7 degC the result is blended
// linearly with the input so the curve has no step at the threshold.
func HeatIndex(temperature, humidity float32) float32 {
	const (
		threshold       float32 = 26.7
		transitionStart float32 = 20.0
	)

	if temperature < transitionStart {
		return temperature
	}

	// Rothfusz regression coefficients for degC.
	const (
		c1 = -8.78469475556
		c2 = 1.61139411
		c3 = 2.33854883889
		c4 = -0.14611605
		c5 = -0.012308094
		c6 = -0.0164248277778
		c7 = 0.002211732
		c8 = 0.00072546
		c9 = -0.000003582
	)

	T := float64(temperature)
	R := float64(humidity)
	A := ((c5 * T) + c2) * T + c1
	B := ((c7 * T) + c4) * T + c3
	C := ((c9 * T) + c8) * T + c6
	full := float32((C*R+B)*R + A)

	if temperature >= threshold {
		return full
	}

	blend := (temperature - transitionStart) / (threshold - transitionStart)
	return temperature*(1-blend) + full*blend
}

// CompensateHumidity rescales a relative humidity measured at rawTemp so it
// refers to temp instead, assuming the absolute water content is unchanged.
// Used when a calibration offset moves the temperature reading away from
// what the sensor die actually measured.
func CompensateHumidity(humidity, rawTemp, temp float32) float32 {
	return humidity * math32.Exp(MagnusGamma*MagnusBeta*
		(rawTemp-temp)/(MagnusGamma+rawTemp)/(MagnusGamma+temp))
}
