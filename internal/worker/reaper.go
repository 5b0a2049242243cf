package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"audio-job-service/internal/service"
	"audio-job-service/internal/telemetry"
)

const (
	DefaultReapInterval = 30 * time.Second
	reapBatch           = 100
)

// Reaper периодически возвращает jobs из processing обратно в queue
// (если воркер падал/перезапускался).
type Reaper struct {
	queue      service.Queue
	interval   time.Duration
	staleAfter time.Duration
	log        zerolog.Logger
}

// NewReaper returns a reaper that sweeps every interval and treats claims
// older than staleAfter as abandoned. staleAfter must exceed the longest
// generation call, or live jobs get delivered twice.
func NewReaper(queue service.Queue, interval, staleAfter time.Duration, log zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{queue: queue, interval: interval, staleAfter: staleAfter, log: log}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) int64 {
	n, err := r.queue.RequeueStale(ctx, r.staleAfter, reapBatch)
	if n > 0 {
		telemetry.GetMetrics().JobsRequeued.Add(ctx, n)
		r.log.Info().Int64("requeued", n).Msg("requeued stale jobs from processing")
	}
	if err != nil && ctx.Err() == nil {
		r.log.Error().Err(err).Msg("requeue failed")
	}
	return n
}
