// Package status turns job record reads into a stream of status events for
// one client: Classify maps a record to a coarse status, Poller performs one
// read, and Session drives the poller on a fixed cadence until a terminal
// event, the session deadline or a client disconnect.
package status

import (
	"encoding/json"
	"fmt"

	"audio-job-service/internal/entity"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
	StatusTimeout    Status = "timeout"
)

const (
	MsgNotFound         = "Audio not found"
	MsgInternal         = "Internal error"
	MsgConnectionFailed = "Connection failed"
)

// Terminal reports whether a status ends the stream.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusError, StatusTimeout:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	return s == StatusProcessing || s.Terminal()
}

// Event is the wire payload of one status update. AudioURL and Service are
// only set on success, Message only on error.
type Event struct {
	Status   Status `json:"status"`
	AudioURL string `json:"audioUrl,omitempty"`
	Service  string `json:"service,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (e Event) Terminal() bool { return e.Status.Terminal() }

func Processing() Event { return Event{Status: StatusProcessing} }
func Failed() Event     { return Event{Status: StatusFailed} }
func Timeout() Event    { return Event{Status: StatusTimeout} }

func Success(audioURL string, service entity.Service) Event {
	return Event{Status: StatusSuccess, AudioURL: audioURL, Service: string(service)}
}

func Error(msg string) Event {
	return Event{Status: StatusError, Message: msg}
}

// ParseEvent decodes one wire payload and rejects unknown statuses.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode status event: %w", err)
	}
	if !ev.Status.Valid() {
		return Event{}, fmt.Errorf("decode status event: unknown status %q", ev.Status)
	}
	return ev, nil
}

// Classify maps a record to processing, failed or success. Failure is checked
// first: a clip marked failed is never reported as a success, even when an
// artifact key was written before or after the failure flag.
func Classify(clip *entity.AudioClip) Status {
	if clip.Failed {
		return StatusFailed
	}
	if clip.S3Key != nil && *clip.S3Key != "" {
		return StatusSuccess
	}
	return StatusProcessing
}
