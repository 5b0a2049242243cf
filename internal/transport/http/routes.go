package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"audio-job-service/internal/auth"
)

type RouterConfig struct {
	Logger      zerolog.Logger
	Tokens      *auth.TokenService
	CORSOrigins []string
}

func Routes(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// базовые middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// наш логгер (после RequestID)
	r.Use(RequestLogger(cfg.Logger))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Tokens))

		r.Post("/speech/text-to-speech", h.CreateTextToSpeech)
		r.Post("/speech/speech-to-speech", h.CreateSpeechToSpeech)
		r.Post("/sound-effects", h.CreateSoundEffect)

		r.Get("/audio/{id}", h.GetAudio)
		r.Get("/audio-status/{id}", h.StreamStatus)
		r.Get("/audio-status/{id}/ws", h.StreamStatusWS)

		r.Get("/history", h.History)
		r.Post("/uploads", h.CreateUpload)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
