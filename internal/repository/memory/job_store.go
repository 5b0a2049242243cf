package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/repository"
)

const defaultCredits = 10000

// JobStore keeps audio clips in memory. Data is lost on restart; it backs the
// tests and STORE_TYPE=memory.
type JobStore struct {
	mu sync.RWMutex

	clips   map[string]*entity.AudioClip
	credits map[string]int

	now func() time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{
		clips:   make(map[string]*entity.AudioClip),
		credits: make(map[string]int),
		now:     time.Now,
	}
}

func (s *JobStore) Create(ctx context.Context, in entity.NewAudioClip) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credits[in.UserID]; !ok {
		return "", repository.ErrNotFound
	}

	id := uuid.NewString()
	s.clips[id] = &entity.AudioClip{
		ID:                 id,
		UserID:             in.UserID,
		Service:            in.Service,
		Text:               cloneStr(in.Text),
		Voice:              cloneStr(in.Voice),
		OriginalVoiceS3Key: cloneStr(in.OriginalVoiceS3Key),
		CreatedAt:          s.now().UTC(),
	}
	return id, nil
}

// Put stores a clip as-is, replacing any clip with the same id. Used to seed
// fixtures and to simulate the executor writing to the store.
func (s *JobStore) Put(clip entity.AudioClip) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credits[clip.UserID]; !ok {
		s.credits[clip.UserID] = defaultCredits
	}
	if clip.CreatedAt.IsZero() {
		clip.CreatedAt = s.now().UTC()
	}
	s.clips[clip.ID] = clone(&clip)
}

func (s *JobStore) GetByID(ctx context.Context, id string) (*entity.AudioClip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, ok := s.clips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(clip), nil
}

func (s *JobStore) FindForOwner(ctx context.Context, id, userID string) (*entity.AudioClip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, ok := s.clips[id]
	if !ok || clip.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return clone(clip), nil
}

func (s *JobStore) SetArtifactKey(ctx context.Context, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return repository.ErrNotFound
	}
	clip.S3Key = &key
	return nil
}

func (s *JobStore) MarkFailed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		return repository.ErrNotFound
	}
	clip.Failed = true
	return nil
}

func (s *JobStore) ListCompleted(ctx context.Context, userID string, service entity.Service, limit int) ([]entity.AudioClip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.AudioClip
	for _, clip := range s.clips {
		if clip.UserID != userID || clip.Service != service || clip.Failed || clip.S3Key == nil {
			continue
		}
		out = append(out, *clone(clip))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, clip := range s.clips {
		if clip.UserID == userID && !clip.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *JobStore) EnsureUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credits[userID]; !ok {
		s.credits[userID] = defaultCredits
	}
	return nil
}

func (s *JobStore) DeductCredits(ctx context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credits, ok := s.credits[userID]
	if !ok {
		return repository.ErrNotFound
	}
	s.credits[userID] = credits - amount
	return nil
}

// Credits returns the balance for a user, or false when the user is unknown.
func (s *JobStore) Credits(userID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credits[userID]
	return c, ok
}

func clone(c *entity.AudioClip) *entity.AudioClip {
	out := *c
	out.Text = cloneStr(c.Text)
	out.Voice = cloneStr(c.Voice)
	out.OriginalVoiceS3Key = cloneStr(c.OriginalVoiceS3Key)
	out.S3Key = cloneStr(c.S3Key)
	return &out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
