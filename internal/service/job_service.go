package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/storage"
	"audio-job-service/internal/telemetry"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	MaxTextLength = 500
	HistoryLimit  = 10

	throttleWindow    = time.Minute
	throttleThreshold = 5
	titleLength       = 50
)

// Порт репозитория (реализации: postgresql.JobRepository, memory.JobStore)
type ClipRepository interface {
	Create(ctx context.Context, in entity.NewAudioClip) (string, error)
	FindForOwner(ctx context.Context, id, userID string) (*entity.AudioClip, error)
	ListCompleted(ctx context.Context, userID string, service entity.Service, limit int) ([]entity.AudioClip, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	EnsureUser(ctx context.Context, userID string) error
}

// Маленький порт очереди только для добавления задач в очередь.
// (Не называем Queue, чтобы не конфликтовать с queue_service.go)
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string, priority int) error
}

type ObjectStore interface {
	PresignedURL(ctx context.Context, key string) (string, error)
	UploadURL(ctx context.Context, fileType string) (storage.Upload, error)
}

type JobService struct {
	repo  ClipRepository
	queue JobQueue
	store ObjectStore
	now   func() time.Time
}

func NewJobService(repo ClipRepository, queue JobQueue, store ObjectStore) *JobService {
	return &JobService{repo: repo, queue: queue, store: store, now: time.Now}
}

type Submitted struct {
	AudioID                 string `json:"audioId"`
	ShouldShowThrottleAlert bool   `json:"shouldShowThrottleAlert"`
}

func (s *JobService) CreateTextToSpeech(ctx context.Context, userID, text, voice string, priority int) (Submitted, error) {
	text = strings.TrimSpace(text)
	if err := checkText("text", text); err != nil {
		return Submitted{}, err
	}
	if strings.TrimSpace(voice) == "" {
		return Submitted{}, fmt.Errorf("%w: voice is required", ErrInvalidInput)
	}
	return s.submit(ctx, entity.NewAudioClip{
		UserID:  userID,
		Service: entity.ServiceTextToSpeech,
		Text:    &text,
		Voice:   &voice,
	}, priority)
}

func (s *JobService) CreateSpeechToSpeech(ctx context.Context, userID, originalVoiceS3Key, voice string, priority int) (Submitted, error) {
	if strings.TrimSpace(originalVoiceS3Key) == "" {
		return Submitted{}, fmt.Errorf("%w: originalVoiceS3Key is required", ErrInvalidInput)
	}
	if strings.TrimSpace(voice) == "" {
		return Submitted{}, fmt.Errorf("%w: voice is required", ErrInvalidInput)
	}
	return s.submit(ctx, entity.NewAudioClip{
		UserID:             userID,
		Service:            entity.ServiceSpeechToSpeech,
		OriginalVoiceS3Key: &originalVoiceS3Key,
		Voice:              &voice,
	}, priority)
}

func (s *JobService) CreateSoundEffect(ctx context.Context, userID, prompt string, priority int) (Submitted, error) {
	prompt = strings.TrimSpace(prompt)
	if err := checkText("prompt", prompt); err != nil {
		return Submitted{}, err
	}
	return s.submit(ctx, entity.NewAudioClip{
		UserID:  userID,
		Service: entity.ServiceSoundEffect,
		Text:    &prompt,
	}, priority)
}

func checkText(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(v) > MaxTextLength {
		return fmt.Errorf("%w: %s is longer than %d characters", ErrInvalidInput, field, MaxTextLength)
	}
	return nil
}

func (s *JobService) submit(ctx context.Context, in entity.NewAudioClip, priority int) (Submitted, error) {
	if in.UserID == "" {
		return Submitted{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if priority < 0 || priority > 2 {
		priority = 1 // normal
	}

	if err := s.repo.EnsureUser(ctx, in.UserID); err != nil {
		return Submitted{}, err
	}
	id, err := s.repo.Create(ctx, in)
	if err != nil {
		return Submitted{}, err
	}
	if err := s.queue.Enqueue(ctx, id, priority); err != nil {
		return Submitted{}, err
	}
	telemetry.GetMetrics().JobsEnqueued.Add(ctx, 1,
		metric.WithAttributes(attribute.String("service", string(in.Service))))

	zerolog.Ctx(ctx).Info().
		Str("clip_id", id).
		Str("service", string(in.Service)).
		Int("priority", priority).
		Msg("generation job enqueued")

	// the alert is advisory; a failed count does not fail the submission
	n, err := s.repo.CountSince(ctx, in.UserID, s.now().Add(-throttleWindow))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("throttle count failed")
	}
	return Submitted{AudioID: id, ShouldShowThrottleAlert: n > throttleThreshold}, nil
}

// Snapshot is the one-shot answer to "is my clip ready". A pending clip
// reports Success with no URL.
type Snapshot struct {
	Success  bool    `json:"success"`
	AudioURL *string `json:"audioUrl"`
}

func (s *JobService) GenerationStatus(ctx context.Context, userID, id string) (Snapshot, error) {
	clip, err := s.repo.FindForOwner(ctx, id, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if clip.Failed {
		return Snapshot{Success: false}, nil
	}
	if clip.S3Key != nil && *clip.S3Key != "" {
		url, err := s.store.PresignedURL(ctx, *clip.S3Key)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Success: true, AudioURL: &url}, nil
	}
	return Snapshot{Success: true}, nil
}

type HistoryItem struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Voice     *string        `json:"voice"`
	AudioURL  string         `json:"audioUrl"`
	Service   entity.Service `json:"service"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (s *JobService) History(ctx context.Context, userID string, service entity.Service) ([]HistoryItem, error) {
	if !service.Valid() {
		return nil, fmt.Errorf("%w: unknown service %q", ErrInvalidInput, service)
	}

	clips, err := s.repo.ListCompleted(ctx, userID, service, HistoryLimit)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(clips))
	for _, clip := range clips {
		url, err := s.store.PresignedURL(ctx, *clip.S3Key)
		if err != nil {
			return nil, err
		}
		items = append(items, HistoryItem{
			ID:        clip.ID,
			Title:     historyTitle(clip),
			Voice:     clip.Voice,
			AudioURL:  url,
			Service:   clip.Service,
			CreatedAt: clip.CreatedAt,
		})
	}
	return items, nil
}

func historyTitle(clip entity.AudioClip) string {
	if clip.Service == entity.ServiceSpeechToSpeech {
		voice := ""
		if clip.Voice != nil {
			voice = *clip.Voice
		}
		return "Voice conversion to " + voice
	}
	if clip.Text == nil {
		return "Generated clip"
	}
	runes := []rune(*clip.Text)
	if len(runes) > titleLength {
		return string(runes[:titleLength]) + "..."
	}
	return *clip.Text
}

func (s *JobService) UploadURL(ctx context.Context, fileType string) (storage.Upload, error) {
	up, err := s.store.UploadURL(ctx, fileType)
	if errors.Is(err, storage.ErrUnsupportedType) {
		return storage.Upload{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return up, err
}
