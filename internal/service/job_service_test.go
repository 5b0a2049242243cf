package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/repository"
	"audio-job-service/internal/repository/memory"
	"audio-job-service/internal/service"
	"audio-job-service/internal/storage"
)

type fakeQueue struct {
	enqueuedIDs        []string
	enqueuedPriorities []int
	enqueueErr         error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	q.enqueuedIDs = append(q.enqueuedIDs, jobID)
	q.enqueuedPriorities = append(q.enqueuedPriorities, priority)
	return q.enqueueErr
}

type fakeStore struct{}

func (fakeStore) PresignedURL(ctx context.Context, key string) (string, error) {
	return "https://s3.local/" + key, nil
}

func (fakeStore) UploadURL(ctx context.Context, fileType string) (storage.Upload, error) {
	if fileType != "audio/wav" {
		return storage.Upload{}, storage.ErrUnsupportedType
	}
	return storage.Upload{Key: "uploads/x.wav", URL: "https://s3.local/uploads/x.wav?put"}, nil
}

func strPtr(s string) *string { return &s }

func newService() (*service.JobService, *memory.JobStore, *fakeQueue) {
	store := memory.NewJobStore()
	queue := &fakeQueue{}
	return service.NewJobService(store, queue, fakeStore{}), store, queue
}

func TestJobService_CreateTextToSpeech_PriorityPropagates(t *testing.T) {
	ctx := context.Background()
	svc, store, queue := newService()

	res, err := svc.CreateTextToSpeech(ctx, "u1", "hello", "andreas", 2)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(queue.enqueuedPriorities) != 1 || queue.enqueuedPriorities[0] != 2 {
		t.Fatalf("expected enqueue priority=2, got %#v", queue.enqueuedPriorities)
	}
	if queue.enqueuedIDs[0] != res.AudioID {
		t.Fatalf("expected enqueued id %s, got %s", res.AudioID, queue.enqueuedIDs[0])
	}

	clip, err := store.GetByID(ctx, res.AudioID)
	if err != nil {
		t.Fatalf("expected clip in store, got %v", err)
	}
	if clip.Service != entity.ServiceTextToSpeech || *clip.Text != "hello" || *clip.Voice != "andreas" {
		t.Fatalf("unexpected clip %#v", clip)
	}
}

func TestJobService_PriorityClampedToNormal(t *testing.T) {
	ctx := context.Background()
	svc, _, queue := newService()

	_, err := svc.CreateSoundEffect(ctx, "u1", "rain", 999) // invalid
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(queue.enqueuedPriorities) != 1 || queue.enqueuedPriorities[0] != 1 {
		t.Fatalf("expected enqueue priority=1 (clamped), got %#v", queue.enqueuedPriorities)
	}
}

func TestJobService_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, queue := newService()

	_, err := svc.CreateTextToSpeech(ctx, "u1", "  ", "andreas", 1)
	require.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateTextToSpeech(ctx, "u1", "hi", "", 1)
	require.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateTextToSpeech(ctx, "u1", strings.Repeat("a", service.MaxTextLength+1), "v", 1)
	require.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateSpeechToSpeech(ctx, "u1", "", "v", 1)
	require.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateSoundEffect(ctx, "", "rain", 1)
	require.ErrorIs(t, err, service.ErrInvalidInput)

	require.Empty(t, queue.enqueuedIDs)
}

func TestJobService_EnqueueFailure(t *testing.T) {
	svc, _, queue := newService()
	queue.enqueueErr = errors.New("redis down")

	_, err := svc.CreateSpeechToSpeech(context.Background(), "u1", "uploads/a.wav", "woman", 1)
	require.Error(t, err)
}

func TestJobService_ThrottleAlert(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService()

	for i := 0; i < 5; i++ {
		res, err := svc.CreateSoundEffect(ctx, "u1", "rain", 1)
		require.NoError(t, err)
		require.False(t, res.ShouldShowThrottleAlert, "submission %d", i+1)
	}
	res, err := svc.CreateSoundEffect(ctx, "u1", "rain", 1)
	require.NoError(t, err)
	require.True(t, res.ShouldShowThrottleAlert)

	other, err := svc.CreateSoundEffect(ctx, "u2", "rain", 1)
	require.NoError(t, err)
	require.False(t, other.ShouldShowThrottleAlert)
}

func TestJobService_GenerationStatus(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService()
	store.Put(entity.AudioClip{ID: "pending", UserID: "u1", Service: entity.ServiceTextToSpeech})
	store.Put(entity.AudioClip{ID: "done", UserID: "u1", Service: entity.ServiceTextToSpeech, S3Key: strPtr("clips/d.wav")})
	store.Put(entity.AudioClip{ID: "failed", UserID: "u1", Service: entity.ServiceTextToSpeech, Failed: true})

	snap, err := svc.GenerationStatus(ctx, "u1", "pending")
	require.NoError(t, err)
	require.Equal(t, service.Snapshot{Success: true}, snap)

	snap, err = svc.GenerationStatus(ctx, "u1", "done")
	require.NoError(t, err)
	require.True(t, snap.Success)
	require.Equal(t, "https://s3.local/clips/d.wav", *snap.AudioURL)

	snap, err = svc.GenerationStatus(ctx, "u1", "failed")
	require.NoError(t, err)
	require.False(t, snap.Success)
	require.Nil(t, snap.AudioURL)

	_, err = svc.GenerationStatus(ctx, "u2", "done")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobService_History(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("é", 60)
	store.Put(entity.AudioClip{ID: "t1", UserID: "u1", Service: entity.ServiceTextToSpeech, Text: strPtr("short"), S3Key: strPtr("a"), CreatedAt: base})
	store.Put(entity.AudioClip{ID: "t2", UserID: "u1", Service: entity.ServiceTextToSpeech, Text: strPtr(long), S3Key: strPtr("b"), CreatedAt: base.Add(time.Minute)})
	store.Put(entity.AudioClip{ID: "t3", UserID: "u1", Service: entity.ServiceTextToSpeech, S3Key: strPtr("c"), CreatedAt: base.Add(2 * time.Minute)})
	store.Put(entity.AudioClip{ID: "pending", UserID: "u1", Service: entity.ServiceTextToSpeech, Text: strPtr("x")})
	store.Put(entity.AudioClip{ID: "v1", UserID: "u1", Service: entity.ServiceSpeechToSpeech, Voice: strPtr("woman"), S3Key: strPtr("d")})

	items, err := svc.History(ctx, "u1", entity.ServiceTextToSpeech)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "t3", items[0].ID, "newest first")
	require.Equal(t, "Generated clip", items[0].Title)
	require.Equal(t, strings.Repeat("é", 50)+"...", items[1].Title)
	require.Equal(t, "short", items[2].Title)
	require.Equal(t, "https://s3.local/a", items[2].AudioURL)

	items, err = svc.History(ctx, "u1", entity.ServiceSpeechToSpeech)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Voice conversion to woman", items[0].Title)

	_, err = svc.History(ctx, "u1", "bark")
	require.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestJobService_HistoryLimit(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService()
	base := time.Now()
	for i := 0; i < 15; i++ {
		store.Put(entity.AudioClip{
			ID: string(rune('a' + i)), UserID: "u1", Service: entity.ServiceSoundEffect,
			Text: strPtr("p"), S3Key: strPtr("k"), CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	items, err := svc.History(ctx, "u1", entity.ServiceSoundEffect)
	require.NoError(t, err)
	require.Len(t, items, service.HistoryLimit)
}

func TestJobService_UploadURL(t *testing.T) {
	svc, _, _ := newService()

	up, err := svc.UploadURL(context.Background(), "audio/wav")
	require.NoError(t, err)
	require.Equal(t, "uploads/x.wav", up.Key)

	_, err = svc.UploadURL(context.Background(), "image/png")
	require.ErrorIs(t, err, service.ErrInvalidInput)
}
