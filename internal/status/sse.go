package status

import (
	"net/http"

	"github.com/gin-contrib/sse"
)

// SSEWriter is a Sink that frames each event as one server-sent "data:" block
// and flushes it immediately.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSEWriter writes the event-stream headers and commits the response.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &SSEWriter{w: w, rc: rc}, nil
}

func (s *SSEWriter) Send(ev Event) error {
	if err := sse.Encode(s.w, sse.Event{Data: ev}); err != nil {
		return err
	}
	return s.rc.Flush()
}
