// Package format renders a poll outcome as the single status-bar line.
// There is no I/O and no state; Render is safe to call from any goroutine.
package format

import (
	"fmt"
	"strconv"

	"github.com/sweeney/tapo-statusbar/internal/sensor"
)

// Nerd Font glyphs framing a reading.
const (
	GlyphThermometer  = "\U000F07D0"
	GlyphWaterPercent = "\U000F0504"
	GlyphPercent      = "\uE373"
)

// Sentinel lines for outcomes that carry no single reading.
const (
	NoSensor  = "NO_SENS"
	Ambiguous = "MULTI_SENS"
)

// Render returns the status line for o, without a trailing newline.
func Render(o sensor.Outcome) string {
	switch o.Kind {
	case sensor.Unique:
		return Reading(o.Reading)
	case sensor.Ambiguous:
		return Ambiguous
	default:
		return NoSensor
	}
}

// Reading formats temperature with one decimal and humidity with at least
// two digits.
func Reading(r sensor.Reading) string {
	return fmt.Sprintf("%s %s%s %02d%s",
		GlyphThermometer, Temperature(r.Temperature), GlyphWaterPercent, r.Humidity, GlyphPercent)
}

// Temperature renders t with exactly one decimal place.
func Temperature(t float64) string {
	return strconv.FormatFloat(t, 'f', 1, 64)
}
