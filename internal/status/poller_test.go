package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/repository/memory"
)

type fakeResolver struct {
	calls int
	err   error
}

func (r *fakeResolver) PresignedURL(ctx context.Context, key string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "https://bucket.local/" + key + "?sig=1", nil
}

type brokenFinder struct{}

func (brokenFinder) FindForOwner(ctx context.Context, id, userID string) (*entity.AudioClip, error) {
	return nil, errors.New("connection reset")
}

func TestPoller_Poll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJobStore()
	store.Put(entity.AudioClip{ID: "j1", UserID: "u1", Service: entity.ServiceTextToSpeech})
	store.Put(entity.AudioClip{ID: "done", UserID: "u1", Service: entity.ServiceSpeechToSpeech, S3Key: strPtr("clips/k.wav")})
	store.Put(entity.AudioClip{ID: "bad", UserID: "u1", Service: entity.ServiceSoundEffect, Failed: true, S3Key: strPtr("clips/x.wav")})

	t.Run("pending job is processing", func(t *testing.T) {
		res := &fakeResolver{}
		ev := NewPoller(store, res).Poll(ctx, "j1", "u1")
		require.Equal(t, Processing(), ev)
		require.Zero(t, res.calls)
	})

	t.Run("completed job resolves url and carries service", func(t *testing.T) {
		res := &fakeResolver{}
		ev := NewPoller(store, res).Poll(ctx, "done", "u1")
		require.Equal(t, StatusSuccess, ev.Status)
		require.Equal(t, "https://bucket.local/clips/k.wav?sig=1", ev.AudioURL)
		require.Equal(t, "seedvc", ev.Service)
		require.Equal(t, 1, res.calls)
	})

	t.Run("failed flag beats artifact key", func(t *testing.T) {
		res := &fakeResolver{}
		ev := NewPoller(store, res).Poll(ctx, "bad", "u1")
		require.Equal(t, Failed(), ev)
		require.Zero(t, res.calls)
	})

	t.Run("unknown id", func(t *testing.T) {
		ev := NewPoller(store, &fakeResolver{}).Poll(ctx, "missing", "u1")
		require.Equal(t, Error(MsgNotFound), ev)
	})

	t.Run("other owner sees not found", func(t *testing.T) {
		ev := NewPoller(store, &fakeResolver{}).Poll(ctx, "done", "u2")
		require.Equal(t, Error(MsgNotFound), ev)
	})

	t.Run("missing identity", func(t *testing.T) {
		p := NewPoller(store, &fakeResolver{})
		require.Equal(t, Error(MsgNotFound), p.Poll(ctx, "", "u1"))
		require.Equal(t, Error(MsgNotFound), p.Poll(ctx, "j1", ""))
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		ev := NewPoller(brokenFinder{}, &fakeResolver{}).Poll(ctx, "j1", "u1")
		require.Equal(t, Error(MsgInternal), ev)
	})

	t.Run("resolution failure is internal", func(t *testing.T) {
		ev := NewPoller(store, &fakeResolver{err: errors.New("no creds")}).Poll(ctx, "done", "u1")
		require.Equal(t, Error(MsgInternal), ev)
	})
}
