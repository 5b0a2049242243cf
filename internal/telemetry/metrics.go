package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "audio-job-service"

// Metrics holds the OpenTelemetry instruments shared by the api and worker.
type Metrics struct {
	// Status stream metrics
	ActiveStreams   metric.Int64UpDownCounter
	StatusEvents    metric.Int64Counter
	SessionOutcomes metric.Int64Counter
	PollDuration    metric.Float64Histogram

	// Executor metrics
	JobsEnqueued     metric.Int64Counter
	JobsProcessed    metric.Int64Counter
	JobsRetried      metric.Int64Counter
	JobsDeadLettered metric.Int64Counter
	JobsRequeued     metric.Int64Counter
	JobsDeferred     metric.Int64Counter
	GenerateDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics, bound to whatever meter provider is
// global at first use (no-op unless Init ran).
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

func initMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.ActiveStreams, _ = meter.Int64UpDownCounter(
		"audio.status.streams.active",
		metric.WithDescription("Number of open status stream sessions"),
		metric.WithUnit("{stream}"),
	)
	m.StatusEvents, _ = meter.Int64Counter(
		"audio.status.events.total",
		metric.WithDescription("Status events pushed to clients, by status"),
		metric.WithUnit("{event}"),
	)
	m.SessionOutcomes, _ = meter.Int64Counter(
		"audio.status.sessions.total",
		metric.WithDescription("Closed status sessions, by outcome"),
		metric.WithUnit("{session}"),
	)
	m.PollDuration, _ = meter.Float64Histogram(
		"audio.status.poll.duration",
		metric.WithDescription("Duration of one status poll including URL resolution"),
		metric.WithUnit("ms"),
	)

	m.JobsEnqueued, _ = meter.Int64Counter(
		"audio.jobs.enqueued.total",
		metric.WithDescription("Generation jobs enqueued"),
		metric.WithUnit("{job}"),
	)
	m.JobsProcessed, _ = meter.Int64Counter(
		"audio.jobs.processed.total",
		metric.WithDescription("Generation jobs processed, by outcome"),
		metric.WithUnit("{job}"),
	)
	m.JobsRetried, _ = meter.Int64Counter(
		"audio.jobs.retried.total",
		metric.WithDescription("Generation jobs put back on the queue after an error"),
		metric.WithUnit("{job}"),
	)
	m.JobsDeadLettered, _ = meter.Int64Counter(
		"audio.jobs.dead_lettered.total",
		metric.WithDescription("Generation jobs moved to the dead letter list"),
		metric.WithUnit("{job}"),
	)
	m.JobsRequeued, _ = meter.Int64Counter(
		"audio.jobs.requeued.total",
		metric.WithDescription("Stale processing entries returned to the queue by the reaper"),
		metric.WithUnit("{job}"),
	)
	m.JobsDeferred, _ = meter.Int64Counter(
		"audio.jobs.deferred.total",
		metric.WithDescription("Generation jobs put back because their user was at the concurrency limit"),
		metric.WithUnit("{job}"),
	)
	m.GenerateDuration, _ = meter.Float64Histogram(
		"audio.jobs.generate.duration",
		metric.WithDescription("Duration of generation backend calls"),
		metric.WithUnit("ms"),
	)

	return m
}
