package entity

import (
	"time"
)

type Service string

const (
	ServiceTextToSpeech   Service = "styletts2"
	ServiceSpeechToSpeech Service = "seedvc"
	ServiceSoundEffect    Service = "make-an-audio"
)

func (s Service) Valid() bool {
	switch s {
	case ServiceTextToSpeech, ServiceSpeechToSpeech, ServiceSoundEffect:
		return true
	default:
		return false
	}
}

// AudioClip is one generation job. The worker writes exactly one of S3Key or
// Failed; Failed is never cleared once set.
type AudioClip struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Service            Service   `json:"service"`
	Text               *string   `json:"text,omitempty"`
	Voice              *string   `json:"voice,omitempty"`
	OriginalVoiceS3Key *string   `json:"original_voice_s3_key,omitempty"`
	S3Key              *string   `json:"s3_key,omitempty"`
	Failed             bool      `json:"failed"`
	CreatedAt          time.Time `json:"created_at"`
}

// Terminal reports whether the executor has finished with the clip.
func (c *AudioClip) Terminal() bool {
	return c.Failed || (c.S3Key != nil && *c.S3Key != "")
}

type NewAudioClip struct {
	UserID             string
	Service            Service
	Text               *string
	Voice              *string
	OriginalVoiceS3Key *string
}
