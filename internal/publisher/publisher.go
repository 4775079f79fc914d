// Package publisher mirrors poll outcomes to an MQTT broker: per-sensor
// value and computed/ topics plus a combined JSON state topic.
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/tapo-statusbar/internal/format"
	"github.com/sweeney/tapo-statusbar/internal/metrics"
	"github.com/sweeney/tapo-statusbar/internal/sensor"
)

// Message is a single MQTT publish request.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// Publisher is the minimal interface the rest of the codebase uses to send
// MQTT messages. The real MQTT client and FakePublisher both implement it.
type Publisher interface {
	Publish(msg Message) error
	Close() error
}

// PublishConfig groups the MQTT routing parameters.
type PublishConfig struct {
	Prefix   string
	Retained bool
}

// StateMessage is the JSON payload for the combined state topic.
type StateMessage struct {
	Timestamp  string                    `json:"timestamp"`
	Status     string                    `json:"status"`
	Line       string                    `json:"line"`
	Reading    *sensor.Reading           `json:"reading,omitempty"`
	Computed   *metrics.Metrics          `json:"computed,omitempty"`
	Requested  string                    `json:"requested,omitempty"`
	Candidates map[string]sensor.Reading `json:"candidates,omitempty"`
}

// OnlineState is the LWT / online-announcement payload.
type OnlineState struct {
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

// PublishOutcome publishes the selected reading's value and computed/
// topics (Unique only) followed by the combined JSON state topic. It
// returns the first publish error encountered.
func PublishOutcome(o sensor.Outcome, cfg PublishConfig, pub Publisher) error {
	if o.Kind == sensor.Unique {
		r := o.Reading
		base := fmt.Sprintf("%s/%s", cfg.Prefix, r.DeviceID)

		values := map[string]string{
			"temperature": format.Temperature(r.Temperature),
			"humidity":    fmt.Sprintf("%d", r.Humidity),
		}
		for name, payload := range values {
			if err := pub.Publish(Message{Topic: base + "/" + name, Payload: payload, Retained: cfg.Retained}); err != nil {
				return err
			}
		}

		for name, payload := range metrics.Compute(r).AsTopicMap() {
			if err := pub.Publish(Message{Topic: base + "/computed/" + name, Payload: payload, Retained: cfg.Retained}); err != nil {
				return err
			}
		}
	}
	return publishState(o, cfg, pub)
}

// FormatOnline returns the JSON payload for the online/offline announcement.
func FormatOnline(online bool) string {
	payload, _ := json.Marshal(OnlineState{
		Online:    online,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(payload)
}

// StateTopic returns the MQTT topic used for the combined state message.
func StateTopic(prefix string) string {
	return prefix + "/state"
}

// OnlineTopic returns the MQTT topic carrying the LWT.
func OnlineTopic(prefix string) string {
	return prefix + "/online"
}

func publishState(o sensor.Outcome, cfg PublishConfig, pub Publisher) error {
	state := StateMessage{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    o.Kind.String(),
		Line:      format.Render(o),
	}
	switch o.Kind {
	case sensor.Unique:
		r := o.Reading
		m := metrics.Compute(r)
		state.Reading = &r
		state.Computed = &m
	case sensor.Ambiguous:
		state.Requested = o.Requested
		state.Candidates = o.Candidates
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	return pub.Publish(Message{
		Topic:    StateTopic(cfg.Prefix),
		Payload:  string(payload),
		Retained: cfg.Retained,
	})
}
