package publisher_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sweeney/tapo-statusbar/internal/format"
	"github.com/sweeney/tapo-statusbar/internal/metrics"
	"github.com/sweeney/tapo-statusbar/internal/publisher"
	"github.com/sweeney/tapo-statusbar/internal/sensor"
)

var cfg = publisher.PublishConfig{Prefix: "home/temp", Retained: true}

var uniqueOutcome = sensor.Outcome{
	Kind:    sensor.Unique,
	Reading: sensor.Reading{DeviceID: "B", Nickname: "Bedroom", Temperature: 21.45, Humidity: 57},
}

func publish(t *testing.T, o sensor.Outcome) *publisher.FakePublisher {
	t.Helper()
	fp := &publisher.FakePublisher{}
	if err := publisher.PublishOutcome(o, cfg, fp); err != nil {
		t.Fatalf("PublishOutcome: %v", err)
	}
	return fp
}

func decodeState(t *testing.T, fp *publisher.FakePublisher) publisher.StateMessage {
	t.Helper()
	msg, ok := fp.Find("home/temp/state")
	if !ok {
		t.Fatal("state topic not published")
	}
	var state publisher.StateMessage
	if err := json.Unmarshal([]byte(msg.Payload), &state); err != nil {
		t.Fatalf("state payload is not JSON: %v", err)
	}
	if state.Timestamp == "" {
		t.Error("state timestamp missing")
	}
	return state
}

func TestPublishOutcome_Unique_ValueTopics(t *testing.T) {
	fp := publish(t, uniqueOutcome)

	msg, ok := fp.Find("home/temp/B/temperature")
	if !ok {
		t.Fatal("temperature topic not published")
	}
	if msg.Payload != "21.4" {
		t.Errorf("temperature payload = %q, want 21.4", msg.Payload)
	}
	if !msg.Retained {
		t.Error("message should be retained")
	}
	if msg, ok := fp.Find("home/temp/B/humidity"); !ok || msg.Payload != "57" {
		t.Errorf("humidity = %+v (found %v), want 57", msg, ok)
	}
}

func TestPublishOutcome_Unique_State(t *testing.T) {
	fp := publish(t, uniqueOutcome)
	state := decodeState(t, fp)
	if state.Status != "unique" {
		t.Errorf("Status = %q, want unique", state.Status)
	}
	if state.Reading == nil || *state.Reading != uniqueOutcome.Reading {
		t.Errorf("Reading = %+v, want %+v", state.Reading, uniqueOutcome.Reading)
	}
	if state.Line != format.Render(uniqueOutcome) {
		t.Errorf("Line = %q, want rendered status line", state.Line)
	}
	if len(state.Candidates) != 0 {
		t.Errorf("Candidates = %v, want none", state.Candidates)
	}
}

func TestPublishOutcome_Unique_ComputedTopics(t *testing.T) {
	fp := publish(t, uniqueOutcome)
	want := metrics.Compute(uniqueOutcome.Reading).AsTopicMap()
	for name, payload := range want {
		msg, ok := fp.Find("home/temp/B/computed/" + name)
		if !ok {
			t.Errorf("computed/%s not published", name)
			continue
		}
		if msg.Payload != payload {
			t.Errorf("computed/%s = %q, want %q", name, msg.Payload, payload)
		}
	}

	state := decodeState(t, fp)
	if state.Computed == nil || state.Computed.HumidityBand != metrics.BandComfortable {
		t.Errorf("state computed = %+v, want comfortable band", state.Computed)
	}
}

func TestPublishOutcome_StateIsLast(t *testing.T) {
	fp := publish(t, uniqueOutcome)
	topics := fp.Topics()
	if len(topics) != 6 {
		t.Fatalf("published %d messages, want 6: %v", len(topics), topics)
	}
	if topics[5] != "home/temp/state" {
		t.Errorf("last topic = %q, want state", topics[5])
	}
}

func TestPublishOutcome_Ambiguous(t *testing.T) {
	o := sensor.Outcome{
		Kind:      sensor.Ambiguous,
		Requested: "Z",
		Candidates: map[string]sensor.Reading{
			"A": {DeviceID: "A", Temperature: 20, Humidity: 40},
			"B": {DeviceID: "B", Temperature: 25, Humidity: 60},
		},
	}
	fp := publish(t, o)
	if len(fp.Messages) != 1 {
		t.Errorf("published %v, want only the state topic", fp.Topics())
	}
	state := decodeState(t, fp)
	if state.Status != "ambiguous" || state.Requested != "Z" || len(state.Candidates) != 2 {
		t.Errorf("state = %+v", state)
	}
	if state.Reading != nil {
		t.Errorf("ambiguous state carries a reading: %+v", state.Reading)
	}
	if state.Line != format.Ambiguous {
		t.Errorf("Line = %q, want %q", state.Line, format.Ambiguous)
	}
}

func TestPublishOutcome_None(t *testing.T) {
	fp := publish(t, sensor.Outcome{Kind: sensor.None})
	state := decodeState(t, fp)
	if state.Status != "none" || state.Line != format.NoSensor {
		t.Errorf("state = %+v", state)
	}
}

func TestPublishOutcome_NotRetained(t *testing.T) {
	fp := &publisher.FakePublisher{}
	if err := publisher.PublishOutcome(uniqueOutcome, publisher.PublishConfig{Prefix: "p"}, fp); err != nil {
		t.Fatalf("PublishOutcome: %v", err)
	}
	for _, m := range fp.Messages {
		if m.Retained {
			t.Errorf("%s retained, want not retained", m.Topic)
		}
	}
}

func TestPublishOutcome_PublishError(t *testing.T) {
	fp := &publisher.FakePublisher{PublishError: errors.New("broker down")}
	if err := publisher.PublishOutcome(uniqueOutcome, cfg, fp); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestFormatOnline(t *testing.T) {
	for _, online := range []bool{true, false} {
		var s publisher.OnlineState
		if err := json.Unmarshal([]byte(publisher.FormatOnline(online)), &s); err != nil {
			t.Fatalf("FormatOnline(%v) not JSON: %v", online, err)
		}
		if s.Online != online || s.Timestamp == "" {
			t.Errorf("FormatOnline(%v) = %+v", online, s)
		}
	}
}

func TestTopics(t *testing.T) {
	if got := publisher.StateTopic("a/b"); got != "a/b/state" {
		t.Errorf("StateTopic = %q", got)
	}
	if got := publisher.OnlineTopic("a/b"); got != "a/b/online" {
		t.Errorf("OnlineTopic = %q", got)
	}
}

func TestFakePublisher_Reset(t *testing.T) {
	fp := &publisher.FakePublisher{PublishError: errors.New("x"), Closed: true}
	fp.Messages = []publisher.Message{{Topic: "t"}}
	fp.Reset()
	if fp.Messages != nil || fp.PublishError != nil || fp.Closed {
		t.Errorf("Reset left state: %+v", fp)
	}
}
