package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestJobStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create requires user", func(t *testing.T) {
		st := NewJobStore()
		_, err := st.Create(ctx, entity.NewAudioClip{UserID: "u1", Service: entity.ServiceTextToSpeech})
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("find for owner fails closed", func(t *testing.T) {
		st := NewJobStore()
		require.NoError(t, st.EnsureUser(ctx, "u1"))

		id, err := st.Create(ctx, entity.NewAudioClip{
			UserID:  "u1",
			Service: entity.ServiceTextToSpeech,
			Text:    strPtr("hello"),
		})
		require.NoError(t, err)

		clip, err := st.FindForOwner(ctx, id, "u1")
		require.NoError(t, err)
		require.Equal(t, "hello", *clip.Text)
		require.False(t, clip.Terminal())

		_, err = st.FindForOwner(ctx, id, "u2")
		require.ErrorIs(t, err, repository.ErrNotFound)

		_, err = st.FindForOwner(ctx, "missing", "u1")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("returned clips are copies", func(t *testing.T) {
		st := NewJobStore()
		st.Put(entity.AudioClip{ID: "j1", UserID: "u1", Service: entity.ServiceSoundEffect, Text: strPtr("rain")})

		clip, err := st.GetByID(ctx, "j1")
		require.NoError(t, err)
		*clip.Text = "thunder"
		clip.Failed = true

		again, err := st.GetByID(ctx, "j1")
		require.NoError(t, err)
		require.Equal(t, "rain", *again.Text)
		require.False(t, again.Failed)
	})

	t.Run("failure is sticky", func(t *testing.T) {
		st := NewJobStore()
		st.Put(entity.AudioClip{ID: "j2", UserID: "u1", Service: entity.ServiceTextToSpeech})

		require.NoError(t, st.MarkFailed(ctx, "j2"))
		require.NoError(t, st.SetArtifactKey(ctx, "j2", "k2"))

		clip, err := st.GetByID(ctx, "j2")
		require.NoError(t, err)
		require.True(t, clip.Failed)
		require.Equal(t, "k2", *clip.S3Key)

		require.ErrorIs(t, st.MarkFailed(ctx, "nope"), repository.ErrNotFound)
		require.ErrorIs(t, st.SetArtifactKey(ctx, "nope", "k"), repository.ErrNotFound)
	})

	t.Run("list completed newest first", func(t *testing.T) {
		st := NewJobStore()
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"a", "b", "c"} {
			st.Put(entity.AudioClip{
				ID:        id,
				UserID:    "u1",
				Service:   entity.ServiceTextToSpeech,
				S3Key:     strPtr("k-" + id),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
		}
		st.Put(entity.AudioClip{ID: "pending", UserID: "u1", Service: entity.ServiceTextToSpeech})
		st.Put(entity.AudioClip{ID: "failed", UserID: "u1", Service: entity.ServiceTextToSpeech, S3Key: strPtr("x"), Failed: true})
		st.Put(entity.AudioClip{ID: "other", UserID: "u2", Service: entity.ServiceTextToSpeech, S3Key: strPtr("y")})
		st.Put(entity.AudioClip{ID: "sfx", UserID: "u1", Service: entity.ServiceSoundEffect, S3Key: strPtr("z")})

		clips, err := st.ListCompleted(ctx, "u1", entity.ServiceTextToSpeech, 2)
		require.NoError(t, err)
		require.Len(t, clips, 2)
		require.Equal(t, "c", clips[0].ID)
		require.Equal(t, "b", clips[1].ID)
	})

	t.Run("count since and credits", func(t *testing.T) {
		st := NewJobStore()
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		st.now = func() time.Time { return now }

		require.NoError(t, st.EnsureUser(ctx, "u1"))
		for i := 0; i < 3; i++ {
			_, err := st.Create(ctx, entity.NewAudioClip{UserID: "u1", Service: entity.ServiceSoundEffect})
			require.NoError(t, err)
		}
		st.Put(entity.AudioClip{ID: "old", UserID: "u1", CreatedAt: now.Add(-time.Hour)})

		n, err := st.CountSince(ctx, "u1", now.Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, 3, n)

		require.NoError(t, st.DeductCredits(ctx, "u1", 50))
		credits, ok := st.Credits("u1")
		require.True(t, ok)
		require.Equal(t, defaultCredits-50, credits)

		require.ErrorIs(t, st.DeductCredits(ctx, "ghost", 50), repository.ErrNotFound)
	})
}
