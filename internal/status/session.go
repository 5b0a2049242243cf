package status

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"audio-job-service/internal/telemetry"
)

const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultSessionTimeout = 5 * time.Minute
)

// Source produces the event for one tick. *Poller is the production Source.
type Source interface {
	Poll(ctx context.Context, jobID, ownerID string) Event
}

// Sink delivers events to the one connected client, in order.
type Sink interface {
	Send(ev Event) error
}

type SinkFunc func(ev Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }

type Config struct {
	// PollInterval is the delay between the end of one poll and the start of
	// the next.
	PollInterval time.Duration
	// Timeout caps the session lifetime from open to forced close.
	Timeout time.Duration
	// PollOnOpen runs the first poll immediately instead of after one interval.
	PollOnOpen bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultSessionTimeout
	}
	return c
}

type Outcome string

const (
	OutcomeTerminal     Outcome = "terminal"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeDisconnected Outcome = "disconnected"
	OutcomeSinkFailed   Outcome = "sink_failed"
)

// Session streams the status of one job to one client. It is single use.
type Session struct {
	source  Source
	sink    Sink
	cfg     Config
	jobID   string
	ownerID string

	sent int
}

func NewSession(source Source, sink Sink, jobID, ownerID string, cfg Config) *Session {
	return &Session{
		source:  source,
		sink:    sink,
		cfg:     cfg.withDefaults(),
		jobID:   jobID,
		ownerID: ownerID,
	}
}

// Run polls until exactly one exit condition holds and returns which one.
// Cancelling ctx is the client-disconnect path: nothing further is emitted.
// The session deadline is a child context of ctx, so every exit path tears
// down both the poll timer and the deadline through the deferred calls below.
func (s *Session) Run(ctx context.Context) Outcome {
	started := time.Now()
	m := telemetry.GetMetrics()
	m.ActiveStreams.Add(ctx, 1)

	outcome := s.run(ctx)

	bg := context.WithoutCancel(ctx)
	m.ActiveStreams.Add(bg, -1)
	m.SessionOutcomes.Add(bg, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))

	zerolog.Ctx(ctx).Debug().
		Str("job_id", s.jobID).
		Str("outcome", string(outcome)).
		Int("events", s.sent).
		Dur("duration", time.Since(started)).
		Msg("status session closed")

	return outcome
}

func (s *Session) run(ctx context.Context) Outcome {
	sessCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	delay := s.cfg.PollInterval
	if s.cfg.PollOnOpen {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-sessCtx.Done():
			return s.expire(ctx)
		case <-timer.C:
		}

		ev := s.source.Poll(sessCtx, s.jobID, s.ownerID)

		// A deadline or disconnect that lands while the poll is in flight
		// wins; the poll result is dropped.
		if sessCtx.Err() != nil {
			return s.expire(ctx)
		}

		if err := s.emit(ev); err != nil {
			return OutcomeSinkFailed
		}
		if ev.Terminal() {
			return OutcomeTerminal
		}

		// Rescheduled only after the poll finished, so polls never overlap.
		timer.Reset(s.cfg.PollInterval)
	}
}

// expire handles the session context ending: a cancelled parent means the
// client went away, otherwise the deadline elapsed.
func (s *Session) expire(parent context.Context) Outcome {
	if parent.Err() != nil {
		return OutcomeDisconnected
	}
	if err := s.emit(Timeout()); err != nil {
		return OutcomeSinkFailed
	}
	return OutcomeTimeout
}

func (s *Session) emit(ev Event) error {
	if err := s.sink.Send(ev); err != nil {
		return err
	}
	s.sent++
	telemetry.GetMetrics().StatusEvents.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", string(ev.Status))))
	return nil
}
