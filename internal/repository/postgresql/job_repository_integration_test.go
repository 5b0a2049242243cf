//go:build integration

package postgresql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"audio-job-service/internal/entity"
)

func setupPostgres(t *testing.T, ctx context.Context) *JobRepository {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool, zerolog.Nop()))
	// second run is a no-op
	require.NoError(t, RunMigrations(ctx, pool, zerolog.Nop()))

	return NewJobRepository(pool)
}

func TestIntegration_JobRepository(t *testing.T) {
	ctx := context.Background()
	repo := setupPostgres(t, ctx)

	text := "hello there"
	voice := "andreas"

	_, err := repo.Create(ctx, entity.NewAudioClip{UserID: "u1", Service: entity.ServiceTextToSpeech})
	require.ErrorIs(t, err, ErrNotFound, "user row must exist first")

	require.NoError(t, repo.EnsureUser(ctx, "u1"))
	require.NoError(t, repo.EnsureUser(ctx, "u1"))

	id, err := repo.Create(ctx, entity.NewAudioClip{
		UserID:  "u1",
		Service: entity.ServiceTextToSpeech,
		Text:    &text,
		Voice:   &voice,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	t.Run("pending clip", func(t *testing.T) {
		clip, err := repo.FindForOwner(ctx, id, "u1")
		require.NoError(t, err)
		require.Equal(t, entity.ServiceTextToSpeech, clip.Service)
		require.Equal(t, text, *clip.Text)
		require.Nil(t, clip.S3Key)
		require.Nil(t, clip.OriginalVoiceS3Key)
		require.False(t, clip.Failed)
	})

	t.Run("owner mismatch and bad ids fail closed", func(t *testing.T) {
		_, err := repo.FindForOwner(ctx, id, "u2")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = repo.FindForOwner(ctx, "missing", "u1")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = repo.GetByID(ctx, uuid.NewString())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("artifact key then history", func(t *testing.T) {
		require.NoError(t, repo.SetArtifactKey(ctx, id, "clips/k1.wav"))

		clips, err := repo.ListCompleted(ctx, "u1", entity.ServiceTextToSpeech, 10)
		require.NoError(t, err)
		require.Len(t, clips, 1)
		require.Equal(t, id, clips[0].ID)
	})

	t.Run("failure is sticky and hides history", func(t *testing.T) {
		require.NoError(t, repo.MarkFailed(ctx, id))
		require.NoError(t, repo.SetArtifactKey(ctx, id, "clips/k2.wav"))

		clip, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.True(t, clip.Failed)

		clips, err := repo.ListCompleted(ctx, "u1", entity.ServiceTextToSpeech, 10)
		require.NoError(t, err)
		require.Empty(t, clips)
	})

	t.Run("count and credits", func(t *testing.T) {
		n, err := repo.CountSince(ctx, "u1", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NoError(t, repo.DeductCredits(ctx, "u1", 50))
		require.ErrorIs(t, repo.DeductCredits(ctx, "ghost", 50), ErrNotFound)
	})
}
