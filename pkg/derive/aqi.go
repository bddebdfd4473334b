package derive

// AirQuality is the European Air Quality Index category for a PM10
// concentration.
type AirQuality int

const (
	Excellent AirQuality = iota
	Good
	Acceptable
	Polluted
	VeryPolluted
)

// EAQI category upper bounds for PM10 in ug/m3.
const (
	excellentMax  = 20
	goodMax       = 40
	acceptableMax = 50
	pollutedMax   = 100
)

// AirQualityFromPM10 maps a PM10 concentration in ug/m3 to its EAQI
// category.
func AirQualityFromPM10(pm10 int) AirQuality {
	switch {
	case pm10 <= excellentMax:
		return Excellent
	case pm10 <= goodMax:
		return Good
	case pm10 <= acceptableMax:
		return Acceptable
	case pm10 <= pollutedMax:
		return Polluted
	default:
		return VeryPolluted
	}
}

func (q AirQuality) String() string {
	switch q {
	case Excellent:
		return "Excellent"
	case Good:
		return "Good"
	case Acceptable:
		return "Acceptable"
	case Polluted:
		return "Polluted"
	case VeryPolluted:
		return "Very Polluted"
	}
	return "Unknown"
}
