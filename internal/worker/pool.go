package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"audio-job-service/internal/service"
	"audio-job-service/internal/telemetry"
)

const DefaultMaxRetries = 2

type Pool struct {
	queue        service.Queue
	processor    *Processor
	workers      int
	maxRetries   int
	claimDelay   time.Duration
	// wait between claims after a queue error, grows up to claimMaxWait
	claimMinWait time.Duration
	claimMaxWait time.Duration
	// how long a job of a busy user is held before it goes back to the queue
	busyDelay    time.Duration
	log          zerolog.Logger
}

func NewPool(queue service.Queue, processor *Processor, workers, maxRetries int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Pool{
		queue:        queue,
		processor:    processor,
		workers:      workers,
		maxRetries:   maxRetries,
		claimDelay:   5 * time.Second,
		claimMinWait: 200 * time.Millisecond,
		claimMaxWait: 10 * time.Second,
		busyDelay:    time.Second,
		log:          log,
	}
}

// Run claims jobs until ctx is cancelled, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Int("max_retries", p.maxRetries).Msg("worker pool started")

	jobCh := make(chan string)
	var wg sync.WaitGroup

	// N воркеров
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log := p.log.With().Int("worker", n).Logger()
			for jobID := range jobCh {
				p.handle(log.WithContext(ctx), jobID)
			}
		}(i + 1)
	}

	defer func() {
		close(jobCh)
		wg.Wait()
		p.log.Info().Msg("worker pool stopped")
	}()

	claimBackoff := backoff.NewExponentialBackOff()
	claimBackoff.InitialInterval = p.claimMinWait
	claimBackoff.MaxInterval = p.claimMaxWait

	// Listener: atomically claim from queue -> processing
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				// пустая очередь, просто ждём дальше
				continue
			}
			wait := claimBackoff.NextBackOff()
			p.log.Warn().Err(err).Dur("retry_in", wait).Msg("claim failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		claimBackoff.Reset()
		select {
		case jobCh <- jobID:
		case <-ctx.Done():
			// остаётся в processing, reaper вернёт его в очередь
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, jobID string) {
	log := zerolog.Ctx(ctx).With().Str("clip_id", jobID).Logger()
	m := telemetry.GetMetrics()

	err := p.processor.Process(ctx, jobID)
	if err == nil {
		m.JobsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "done")))
		if ackErr := p.queue.Ack(ctx, jobID); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack failed")
		}
		return
	}

	if ctx.Err() != nil {
		// shutdown: leave the claim for the reaper
		return
	}

	if errors.Is(err, ErrUserBusy) {
		// у пользователя уже идут генерации: вернём job в очередь без попытки
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.busyDelay):
		}
		if dErr := p.queue.Defer(ctx, jobID); dErr != nil {
			log.Error().Err(dErr).Msg("defer failed")
			return
		}
		m.JobsDeferred.Add(ctx, 1)
		log.Debug().Msg("user busy, clip deferred")
		return
	}

	attempts, aErr := p.queue.Attempts(ctx, jobID)
	if aErr != nil {
		log.Warn().Err(aErr).Msg("read attempts failed")
	}

	if errors.Is(err, ErrPermanent) || attempts >= p.maxRetries {
		log.Error().Err(err).Int("attempts", attempts+1).Msg("clip failed")
		m.JobsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))

		if fErr := p.processor.Fail(ctx, jobID); fErr != nil {
			// not acked: the reaper brings it back and the failure path runs again
			log.Error().Err(fErr).Msg("mark failed failed")
			return
		}
		if dErr := p.queue.DeadLetter(ctx, jobID, err.Error()); dErr != nil {
			log.Error().Err(dErr).Msg("dead letter failed")
		}
		m.JobsDeadLettered.Add(ctx, 1)
		return
	}

	n, rErr := p.queue.Retry(ctx, jobID)
	if rErr != nil {
		log.Error().Err(rErr).Msg("retry failed")
		return
	}
	m.JobsRetried.Add(ctx, 1)
	log.Warn().Err(err).Int("attempt", n).Msg("clip generation failed, will retry")
}
