// Package metrics provides pure derived values over a sensor reading.
// There is no I/O and no side effects; all functions are safe to call from
// any goroutine.
package metrics

import (
	"math"
	"strconv"

	"github.com/sweeney/tapo-statusbar/internal/sensor"
)

// Humidity bands reported by Metrics.HumidityBand.
const (
	BandDry         = "dry"
	BandComfortable = "comfortable"
	BandHumid       = "humid"
)

// Relative humidity limits of the comfortable band, in percent.
const (
	dryBelow   = 30
	humidAbove = 60
)

// Magnus coefficients for water over a flat surface (Sonntag 1990).
const (
	magnusB = 17.62
	magnusC = 243.12
)

// Metrics holds values derived from a single reading.
//
// JSON tags define the canonical field names used in both the MQTT state
// topic and the per-metric computed/ topics. When adding a field, update
// Compute, AsTopicMap, and the test table.
type Metrics struct {
	DewPoint         float64 `json:"dew_point"`
	AbsoluteHumidity float64 `json:"absolute_humidity"`
	HumidityBand     string  `json:"humidity_band"`
}

// AsTopicMap returns each metric as a topic-name → string-payload pair,
// ready to publish as individual MQTT computed/ topics.
func (m Metrics) AsTopicMap() map[string]string {
	return map[string]string{
		"dew_point":         formatFloat(m.DewPoint),
		"absolute_humidity": formatFloat(m.AbsoluteHumidity),
		"humidity_band":     m.HumidityBand,
	}
}

// Compute derives all metrics from r. Temperatures are in °C. A reading
// without humidity (0%) yields zero values rather than infinities.
func Compute(r sensor.Reading) Metrics {
	return Metrics{
		DewPoint:         computeDewPoint(r.Temperature, r.Humidity),
		AbsoluteHumidity: computeAbsoluteHumidity(r.Temperature, r.Humidity),
		HumidityBand:     computeHumidityBand(r.Humidity),
	}
}

func computeDewPoint(temp float64, humidity int) float64 {
	if humidity <= 0 {
		return 0
	}
	gamma := math.Log(float64(humidity)/100) + magnusB*temp/(magnusC+temp)
	return round2(magnusC * gamma / (magnusB - gamma))
}

// computeAbsoluteHumidity returns grams of water vapour per cubic metre.
func computeAbsoluteHumidity(temp float64, humidity int) float64 {
	if humidity <= 0 {
		return 0
	}
	saturation := 6.112 * math.Exp(17.67*temp/(temp+243.5)) // hPa
	return round2(saturation * float64(humidity) * 2.1674 / (273.15 + temp))
}

func computeHumidityBand(humidity int) string {
	switch {
	case humidity < dryBelow:
		return BandDry
	case humidity > humidAbove:
		return BandHumid
	default:
		return BandComfortable
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatFloat returns the shortest decimal representation of v with no
// trailing zeros (e.g. 9.0 → "9", 8.64 → "8.64").
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
