// Package generation calls the model backends that render audio and upload
// it to object storage.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/telemetry"
)

// ErrBackendRejected marks a request the backend refused outright. Retrying
// it cannot succeed.
var ErrBackendRejected = errors.New("generation backend rejected request")

type Config struct {
	TextToSpeechURL   string
	SpeechToSpeechURL string
	SoundEffectURL    string
	ModalKey          string
	ModalSecret       string

	// Timeout bounds one backend call, MaxTries the attempts per Generate.
	Timeout         time.Duration
	MaxTries        uint
	InitialInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxTries == 0 {
		c.MaxTries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type ttsRequest struct {
	Text        string `json:"text"`
	TargetVoice string `json:"target_voice"`
}

type stsRequest struct {
	SourceAudioKey string `json:"source_audio_key"`
	TargetVoice    string `json:"target_voice"`
}

type sfxRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	S3Key string `json:"s3_key"`
}

// Generate renders the clip and returns the storage key of the result.
func (c *Client) Generate(ctx context.Context, clip *entity.AudioClip) (string, error) {
	endpoint, payload, err := c.request(clip)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	log := zerolog.Ctx(ctx).With().Str("clip_id", clip.ID).Str("service", string(clip.Service)).Logger()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval

	started := time.Now()
	key, err := backoff.Retry(ctx, func() (string, error) {
		return c.call(ctx, endpoint, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("generation call failed, retrying")
		}),
	)
	telemetry.GetMetrics().GenerateDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	if err != nil {
		return "", err
	}
	return key, nil
}

func (c *Client) request(clip *entity.AudioClip) (string, any, error) {
	switch clip.Service {
	case entity.ServiceTextToSpeech:
		if clip.Text == nil || clip.Voice == nil {
			return "", nil, fmt.Errorf("%w: text and voice are required", ErrBackendRejected)
		}
		return c.cfg.TextToSpeechURL, ttsRequest{Text: *clip.Text, TargetVoice: *clip.Voice}, nil
	case entity.ServiceSpeechToSpeech:
		if clip.OriginalVoiceS3Key == nil || clip.Voice == nil {
			return "", nil, fmt.Errorf("%w: source audio and voice are required", ErrBackendRejected)
		}
		return c.cfg.SpeechToSpeechURL, stsRequest{SourceAudioKey: *clip.OriginalVoiceS3Key, TargetVoice: *clip.Voice}, nil
	case entity.ServiceSoundEffect:
		if clip.Text == nil {
			return "", nil, fmt.Errorf("%w: prompt is required", ErrBackendRejected)
		}
		return c.cfg.SoundEffectURL, sfxRequest{Prompt: *clip.Text}, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown service %q", ErrBackendRejected, clip.Service)
	}
}

func (c *Client) call(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Modal-Key", c.cfg.ModalKey)
	req.Header.Set("Modal-Secret", c.cfg.ModalSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return "", backoff.RetryAfter(secs)
		}
		return "", fmt.Errorf("generation backend: status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("generation backend: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrBackendRejected, resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("generation backend: decode response: %w", err)
	}
	if out.S3Key == "" {
		return "", errors.New("generation backend: response has no s3_key")
	}
	return out.S3Key, nil
}
