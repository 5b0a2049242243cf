// Package statusclient follows the status stream of one job at a time and
// keeps the most recent event for display.
package statusclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"audio-job-service/internal/status"
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on every stream request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithOnEvent registers a callback invoked for every event applied to the
// client state. It runs on the stream goroutine.
func WithOnEvent(fn func(jobID string, ev status.Event)) Option {
	return func(c *Client) { c.onEvent = fn }
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
	log     zerolog.Logger
	onEvent func(jobID string, ev status.Event)

	mu     sync.Mutex
	jobID  string
	latest *status.Event
	gen    uint64
	cancel context.CancelFunc
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Watch switches the client to jobID. Watching the current id again is a
// no-op, an empty id closes the open stream and clears the state, any other id
// closes the old stream before opening the new one.
func (c *Client) Watch(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if jobID == c.jobID {
		return
	}
	c.stopLocked()
	c.jobID = jobID
	if jobID == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.stream(ctx, c.gen, jobID)
}

// Latest returns the last event received for the watched job.
func (c *Client) Latest() (status.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return status.Event{}, false
	}
	return *c.latest, true
}

func (c *Client) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

func (c *Client) Close() { c.Watch("") }

func (c *Client) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// bumping the generation invalidates anything the old stream still delivers
	c.gen++
	c.latest = nil
}

// apply records ev if gen is still the current connection.
func (c *Client) apply(gen uint64, jobID string, ev status.Event) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.latest = &ev
	cb := c.onEvent
	c.mu.Unlock()

	if cb != nil {
		cb(jobID, ev)
	}
	return true
}

func (c *Client) stream(ctx context.Context, gen uint64, jobID string) {
	err := c.read(ctx, gen, jobID)
	if err == nil || ctx.Err() != nil {
		return
	}
	c.log.Warn().Err(err).Str("job_id", jobID).Msg("status stream failed")
	c.apply(gen, jobID, status.Error(status.MsgConnectionFailed))
}

// read consumes the stream until a terminal event or a stale generation
// (nil error), or until the connection breaks.
func (c *Client) read(ctx context.Context, gen uint64, jobID string) error {
	endpoint := c.baseURL + "/api/audio-status/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status stream: unexpected status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()

		if line == "" {
			if data.Len() == 0 {
				continue
			}
			ev, err := status.ParseEvent([]byte(data.String()))
			data.Reset()
			if err != nil {
				c.log.Warn().Err(err).Str("job_id", jobID).Msg("skipping malformed status event")
				continue
			}
			if !c.apply(gen, jobID, ev) || ev.Terminal() {
				return nil
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			// comments, ids, event names and retry hints are ignored
			continue
		}
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(strings.TrimPrefix(value, " "))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("status stream: closed before a terminal event")
}
