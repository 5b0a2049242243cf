package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/generation"
	"audio-job-service/internal/repository"
	"audio-job-service/internal/service"
)

// CreditsPerClip is charged once a clip has been rendered.
const CreditsPerClip = 50

// ErrPermanent wraps failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// ErrUserBusy means the clip's owner is at the concurrency limit. The job is
// put back without counting an attempt.
var ErrUserBusy = errors.New("user at concurrency limit")

type ClipRepo interface {
	GetByID(ctx context.Context, id string) (*entity.AudioClip, error)
	SetArtifactKey(ctx context.Context, id, key string) error
	MarkFailed(ctx context.Context, id string) error
	DeductCredits(ctx context.Context, userID string, amount int) error
}

type Generator interface {
	Generate(ctx context.Context, clip *entity.AudioClip) (string, error)
}

type Processor struct {
	repo ClipRepo
	gen  Generator
	gate service.UserGate
}

func NewProcessor(repo ClipRepo, gen Generator) *Processor {
	return &Processor{repo: repo, gen: gen}
}

// WithUserGate limits how many clips of one user generate at the same time.
func (p *Processor) WithUserGate(gate service.UserGate) *Processor {
	p.gate = gate
	return p
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()
	log := zerolog.Ctx(ctx).With().Str("clip_id", jobID).Logger()

	clip, err := p.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: clip %s: %v", ErrPermanent, jobID, err)
		}
		return fmt.Errorf("get clip: %w", err)
	}

	// reaper/retry могут доставить job повторно, уже завершённые не трогаем
	if clip.Terminal() {
		log.Info().Bool("failed", clip.Failed).Msg("clip already finished, skipping")
		return nil
	}

	if p.gate != nil {
		ok, err := p.gate.Acquire(ctx, clip.UserID)
		if err != nil {
			return fmt.Errorf("acquire user slot: %w", err)
		}
		if !ok {
			return ErrUserBusy
		}
		defer func() {
			if err := p.gate.Release(context.WithoutCancel(ctx), clip.UserID); err != nil {
				log.Warn().Err(err).Str("user_id", clip.UserID).Msg("release user slot failed")
			}
		}()
	}

	log.Info().Str("service", string(clip.Service)).Msg("generating clip")

	key, err := p.gen.Generate(ctx, clip)
	if err != nil {
		if errors.Is(err, generation.ErrBackendRejected) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}

	if err := p.repo.SetArtifactKey(ctx, clip.ID, key); err != nil {
		return fmt.Errorf("set artifact key: %w", err)
	}

	// the clip is delivered at this point; a billing error must not trigger a
	// second generation
	if err := p.repo.DeductCredits(ctx, clip.UserID, CreditsPerClip); err != nil {
		log.Error().Err(err).Str("user_id", clip.UserID).Msg("deduct credits failed")
	}

	log.Info().
		Str("s3_key", key).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("clip generated")
	return nil
}

// Fail records the terminal failure of a clip.
func (p *Processor) Fail(ctx context.Context, jobID string) error {
	err := p.repo.MarkFailed(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
