package status

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/repository"
	"audio-job-service/internal/telemetry"
)

// ClipFinder is the read side of the job record store. Implementations must
// return repository.ErrNotFound when the id is unknown or owned by someone else.
type ClipFinder interface {
	FindForOwner(ctx context.Context, id, userID string) (*entity.AudioClip, error)
}

// URLResolver turns an artifact key into a time-limited access URL.
type URLResolver interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

type Poller struct {
	clips ClipFinder
	urls  URLResolver
}

func NewPoller(clips ClipFinder, urls URLResolver) *Poller {
	return &Poller{clips: clips, urls: urls}
}

// Poll reads the job once and returns the event describing it. Lookup and
// resolution failures become error events; Poll itself never fails.
func (p *Poller) Poll(ctx context.Context, jobID, ownerID string) Event {
	started := time.Now()
	defer func() {
		telemetry.GetMetrics().PollDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}()

	log := zerolog.Ctx(ctx).With().Str("job_id", jobID).Logger()

	if jobID == "" || ownerID == "" {
		return Error(MsgNotFound)
	}

	clip, err := p.clips.FindForOwner(ctx, jobID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Error(MsgNotFound)
		}
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("status poll lookup failed")
		}
		return Error(MsgInternal)
	}

	switch Classify(clip) {
	case StatusFailed:
		return Failed()
	case StatusSuccess:
		url, err := p.urls.PresignedURL(ctx, *clip.S3Key)
		if err != nil {
			log.Error().Err(err).Str("s3_key", *clip.S3Key).Msg("status poll url resolution failed")
			return Error(MsgInternal)
		}
		return Success(url, clip.Service)
	default:
		return Processing()
	}
}
