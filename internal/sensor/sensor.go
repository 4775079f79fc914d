// Package sensor turns a hub's child-device list into at most one reading.
// Select is pure: same devices and target in, same Outcome out.
package sensor

import (
	"context"
	"sort"

	"github.com/sweeney/tapo-statusbar/internal/tapo"
)

// Kind tags an Outcome.
type Kind int

const (
	// None means the hub has no temperature/humidity sensor.
	None Kind = iota
	// Unique means exactly one reading was selected.
	Unique
	// Ambiguous means several sensors exist and none could be chosen.
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	}
	return "unknown"
}

// Reading is one sensor's current values.
type Reading struct {
	DeviceID    string  `json:"device_id"`
	Nickname    string  `json:"nickname,omitempty"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
}

// Outcome is the result of one poll. Reading is set for Unique;
// Candidates (and Requested, if a device id was given) for Ambiguous.
type Outcome struct {
	Kind       Kind
	Reading    Reading
	Candidates map[string]Reading
	Requested  string
}

// CandidateIDs returns the ambiguous candidates' device ids in sorted order.
func (o Outcome) CandidateIDs() []string {
	ids := make([]string, 0, len(o.Candidates))
	for id := range o.Candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeviceLister is the part of a hub session the reader needs.
type DeviceLister interface {
	ChildDevices(ctx context.Context) ([]tapo.ChildDevice, error)
}

// Read fetches the current child list and applies Select. Fetch errors are
// returned unchanged.
func Read(ctx context.Context, lister DeviceLister, target string) (Outcome, error) {
	devices, err := lister.ChildDevices(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Select(devices, target), nil
}

// Select applies the disambiguation policy:
//   - no sensors: None
//   - one sensor: Unique, whatever target says
//   - several, target matches one: Unique
//   - several otherwise: Ambiguous, never an arbitrary pick
func Select(devices []tapo.ChildDevice, target string) Outcome {
	var readings []Reading
	for _, d := range devices {
		if !d.IsTemperatureSensor() {
			continue
		}
		readings = append(readings, fromDevice(d))
	}

	switch len(readings) {
	case 0:
		return Outcome{Kind: None}
	case 1:
		return Outcome{Kind: Unique, Reading: readings[0]}
	}

	if target != "" {
		for _, r := range readings {
			if r.DeviceID == target {
				return Outcome{Kind: Unique, Reading: r}
			}
		}
	}

	candidates := make(map[string]Reading, len(readings))
	for _, r := range readings {
		candidates[r.DeviceID] = r
	}
	return Outcome{Kind: Ambiguous, Candidates: candidates, Requested: target}
}

func fromDevice(d tapo.ChildDevice) Reading {
	return Reading{
		DeviceID:    d.DeviceID,
		Nickname:    string(d.Nickname),
		Temperature: d.CurrentTemperature,
		Humidity:    d.CurrentHumidity,
	}
}
