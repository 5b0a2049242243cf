package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"audio-job-service/internal/auth"
	"audio-job-service/internal/entity"
	"audio-job-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
	stream *StatusStreamer
}

func NewHandler(jobSvc *service.JobService, stream *StatusStreamer) *Handler {
	return &Handler{jobSvc: jobSvc, stream: stream}
}

type textToSpeechDTO struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Priority *int   `json:"priority,omitempty"` // 0=low,1=normal,2=high (nil => default 1)
}

type speechToSpeechDTO struct {
	OriginalVoiceS3Key string `json:"originalVoiceS3Key"`
	Voice              string `json:"voice"`
	Priority           *int   `json:"priority,omitempty"`
}

type soundEffectDTO struct {
	Prompt   string `json:"prompt"`
	Priority *int   `json:"priority,omitempty"`
}

type uploadDTO struct {
	FileType string `json:"fileType"`
}

func priorityOr(p *int) int {
	if p == nil {
		return 1
	}
	return *p
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// CreateTextToSpeech godoc
// @Summary Generate speech from text
// @Description Creates a clip record (pending) and enqueues it for the styletts2 backend.
// @Tags speech
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body textToSpeechDTO true "text, voice and optional priority (0=low,1=normal,2=high)"
// @Success 201 {object} service.Submitted
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 500 {object} apiError
// @Router /api/speech/text-to-speech [post]
func (h *Handler) CreateTextToSpeech(w http.ResponseWriter, r *http.Request) {
	var dto textToSpeechDTO
	if !decode(w, r, &dto) {
		return
	}
	res, err := h.jobSvc.CreateTextToSpeech(r.Context(), auth.UserIDFromContext(r.Context()), dto.Text, dto.Voice, priorityOr(dto.Priority))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CreateSpeechToSpeech godoc
// @Summary Convert a recording to another voice
// @Tags speech
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body speechToSpeechDTO true "uploaded source key and target voice"
// @Success 201 {object} service.Submitted
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 500 {object} apiError
// @Router /api/speech/speech-to-speech [post]
func (h *Handler) CreateSpeechToSpeech(w http.ResponseWriter, r *http.Request) {
	var dto speechToSpeechDTO
	if !decode(w, r, &dto) {
		return
	}
	res, err := h.jobSvc.CreateSpeechToSpeech(r.Context(), auth.UserIDFromContext(r.Context()), dto.OriginalVoiceS3Key, dto.Voice, priorityOr(dto.Priority))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CreateSoundEffect godoc
// @Summary Generate a sound effect from a prompt
// @Tags sound-effects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body soundEffectDTO true "prompt and optional priority"
// @Success 201 {object} service.Submitted
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 500 {object} apiError
// @Router /api/sound-effects [post]
func (h *Handler) CreateSoundEffect(w http.ResponseWriter, r *http.Request) {
	var dto soundEffectDTO
	if !decode(w, r, &dto) {
		return
	}
	res, err := h.jobSvc.CreateSoundEffect(r.Context(), auth.UserIDFromContext(r.Context()), dto.Prompt, priorityOr(dto.Priority))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetAudio godoc
// @Summary One-shot generation status
// @Description Pending clips report success=true with a null audioUrl.
// @Tags audio
// @Produce json
// @Security BearerAuth
// @Param id path string true "clip id (uuid)"
// @Success 200 {object} service.Snapshot
// @Failure 401 {object} apiError
// @Failure 404 {object} apiError
// @Router /api/audio/{id} [get]
func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	snap, err := h.jobSvc.GenerationStatus(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StreamStatus godoc
// @Summary Stream clip status (server-sent events)
// @Description Pushes {"status":...} events every poll interval until success, failed, error or timeout.
// @Tags audio
// @Produce text/event-stream
// @Security BearerAuth
// @Param id path string true "clip id"
// @Param token query string false "access token for clients that cannot set headers"
// @Success 200 {object} status.Event
// @Failure 401 {object} apiError
// @Router /api/audio-status/{id} [get]
func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeSSE(w, r, chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
}

// StreamStatusWS godoc
// @Summary Stream clip status over a websocket
// @Tags audio
// @Security BearerAuth
// @Param id path string true "clip id"
// @Param token query string false "access token"
// @Success 101 {object} status.Event
// @Failure 401 {object} apiError
// @Router /api/audio-status/{id}/ws [get]
func (h *Handler) StreamStatusWS(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeWS(w, r, chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
}

// History godoc
// @Summary Recently completed clips
// @Tags audio
// @Produce json
// @Security BearerAuth
// @Param service query string true "styletts2, seedvc or make-an-audio"
// @Success 200 {array} service.HistoryItem
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Router /api/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	svc := entity.Service(r.URL.Query().Get("service"))
	items, err := h.jobSvc.History(r.Context(), auth.UserIDFromContext(r.Context()), svc)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateUpload godoc
// @Summary Presigned upload URL for a source recording
// @Tags uploads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body uploadDTO true "MIME type of the recording"
// @Success 201 {object} storage.Upload
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Router /api/uploads [post]
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var dto uploadDTO
	if !decode(w, r, &dto) {
		return
	}
	up, err := h.jobSvc.UploadURL(r.Context(), dto.FileType)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, up)
}
