// Package poll drives the read → render → print cycle for the lifetime of
// the process. Per-cycle failures are logged and never end the loop.
package poll

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/tapo-statusbar/internal/format"
	"github.com/sweeney/tapo-statusbar/internal/publisher"
	"github.com/sweeney/tapo-statusbar/internal/sensor"
)

// Loop polls one hub session on a fixed interval. It is not safe for
// concurrent use; Run owns it until it returns.
type Loop struct {
	Session  sensor.DeviceLister
	Target   string
	Interval time.Duration
	// FetchTimeout bounds each device-list fetch. Zero means half of
	// Interval.
	FetchTimeout time.Duration

	// Out receives exactly one line per successful cycle.
	Out    io.Writer
	Logger *zap.SugaredLogger

	// Publisher, when set, mirrors every outcome over MQTT.
	Publisher     publisher.Publisher
	PublishConfig publisher.PublishConfig

	// After waits between cycles; nil means time.After.
	After func(time.Duration) <-chan time.Time
}

// Run polls immediately and then once per Interval until ctx is cancelled,
// at which point it returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log().Errorf("poll error: %v", err)
		}

		l.log().Debugf("sleeping for %s", l.Interval)
		select {
		case <-ctx.Done():
			return nil
		case <-l.after(l.Interval):
		}
	}
}

// Cycle runs one fetch and, on success, writes the status line. The
// returned error is always a fetch or write failure.
func (l *Loop) Cycle(ctx context.Context) error {
	l.log().Debug("fetching")

	fetchCtx, cancel := l.fetchContext(ctx)
	defer cancel()

	outcome, err := sensor.Read(fetchCtx, l.Session, l.Target)
	if err != nil {
		return fmt.Errorf("fetching child devices: %w", err)
	}

	l.report(outcome)
	if _, err := fmt.Fprintln(l.Out, format.Render(outcome)); err != nil {
		return fmt.Errorf("writing status line: %w", err)
	}

	if l.Publisher != nil {
		if err := publisher.PublishOutcome(outcome, l.PublishConfig, l.Publisher); err != nil {
			l.log().Warnf("mirroring reading to MQTT: %v", err)
		}
	}
	return nil
}

func (l *Loop) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := l.FetchTimeout
	if timeout <= 0 {
		timeout = l.Interval / 2
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// report logs what the outcome means for someone reading the logs; the
// status line itself carries no explanation.
func (l *Loop) report(o sensor.Outcome) {
	log := l.log()
	switch o.Kind {
	case sensor.None:
		log.Warn("no temperature sensors found")
	case sensor.Unique:
		if l.Target != "" && o.Reading.DeviceID != l.Target {
			log.Warnf("device %q not found; using the only sensor %s", l.Target, o.Reading.DeviceID)
		}
		log.Debugf("using sensor %s (%s): %.2f°, %d%%",
			o.Reading.DeviceID, o.Reading.Nickname, o.Reading.Temperature, o.Reading.Humidity)
	case sensor.Ambiguous:
		ids := strings.Join(o.CandidateIDs(), ", ")
		if o.Requested != "" {
			log.Warnf("could not find temperature data for device %q: not found among %d known devices (%s)",
				o.Requested, len(o.Candidates), ids)
		} else {
			log.Warnf("%d temperature sensors found; choose one with --device (%s)", len(o.Candidates), ids)
		}
	}
}

func (l *Loop) after(d time.Duration) <-chan time.Time {
	if l.After != nil {
		return l.After(d)
	}
	return time.After(d)
}

func (l *Loop) log() *zap.SugaredLogger {
	if l.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return l.Logger
}
