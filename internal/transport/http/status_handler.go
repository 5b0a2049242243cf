package httptransport

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"audio-job-service/internal/status"
)

const wsWriteWait = 10 * time.Second

// StatusStreamer serves status sessions over SSE and websockets. Both
// transports run the same status.Session; only the sink differs.
type StatusStreamer struct {
	source   status.Source
	cfg      status.Config
	upgrader websocket.Upgrader
}

func NewStatusStreamer(source status.Source, cfg status.Config, allowedOrigins []string) *StatusStreamer {
	s := &StatusStreamer{source: source, cfg: cfg}
	if len(allowedOrigins) > 0 {
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		}
	}
	return s
}

func (s *StatusStreamer) ServeSSE(w http.ResponseWriter, r *http.Request, jobID, ownerID string) {
	log := zerolog.Ctx(r.Context())

	// the server write timeout would cut long streams
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sink, err := status.NewSSEWriter(w)
	if err != nil {
		log.Error().Err(err).Msg("response does not support streaming")
		return
	}
	status.NewSession(s.source, sink, jobID, ownerID, s.cfg).Run(r.Context())
}

type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(ev status.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(ev)
}

func (s *StatusStreamer) ServeWS(w http.ResponseWriter, r *http.Request, jobID, ownerID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// a hijacked connection does not cancel the request context, so the read
	// side is the disconnect signal
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	outcome := status.NewSession(s.source, wsSink{conn: conn}, jobID, ownerID, s.cfg).Run(ctx)
	if outcome == status.OutcomeDisconnected {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(outcome)),
		time.Now().Add(time.Second))
}
