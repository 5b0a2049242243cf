package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"audio-job-service/internal/entity"
	"audio-job-service/internal/repository"
)

// ErrNotFound is kept as an alias so callers of this package can match it
// without importing the repository package.
var ErrNotFound = repository.ErrNotFound

const clipColumns = `id::text, user_id, service, text, voice, original_voice_s3_key, s3_key, failed, created_at`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, clip entity.NewAudioClip) (string, error) {
	const q = `
INSERT INTO generated_audio_clips (user_id, service, text, voice, original_voice_s3_key)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text;
`
	var id string
	err := r.pool.QueryRow(ctx, q,
		clip.UserID,
		string(clip.Service),
		clip.Text,
		clip.Voice,
		clip.OriginalVoiceS3Key,
	).Scan(&id)
	if err != nil {
		return "", mapPostgresError(err)
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.AudioClip, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	q := `SELECT ` + clipColumns + ` FROM generated_audio_clips WHERE id = $1;`
	return scanClip(r.pool.QueryRow(ctx, q, id))
}

// FindForOwner is an exact (id, owner) match. A clip owned by someone else is
// indistinguishable from a missing one.
func (r *JobRepository) FindForOwner(ctx context.Context, id, userID string) (*entity.AudioClip, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	q := `SELECT ` + clipColumns + ` FROM generated_audio_clips WHERE id = $1 AND user_id = $2;`
	return scanClip(r.pool.QueryRow(ctx, q, id, userID))
}

func (r *JobRepository) SetArtifactKey(ctx context.Context, id, key string) error {
	const q = `UPDATE generated_audio_clips SET s3_key = $2 WHERE id = $1;`
	return r.execOne(ctx, q, id, key)
}

func (r *JobRepository) MarkFailed(ctx context.Context, id string) error {
	const q = `UPDATE generated_audio_clips SET failed = true WHERE id = $1;`
	return r.execOne(ctx, q, id)
}

func (r *JobRepository) ListCompleted(ctx context.Context, userID string, service entity.Service, limit int) ([]entity.AudioClip, error) {
	q := `SELECT ` + clipColumns + `
FROM generated_audio_clips
WHERE user_id = $1 AND service = $2 AND s3_key IS NOT NULL AND failed = false
ORDER BY created_at DESC
LIMIT $3;`

	rows, err := r.pool.Query(ctx, q, userID, string(service), limit)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var clips []entity.AudioClip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, *clip)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return clips, nil
}

func (r *JobRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM generated_audio_clips WHERE user_id = $1 AND created_at >= $2;`

	var n int
	if err := r.pool.QueryRow(ctx, q, userID, since).Scan(&n); err != nil {
		return 0, mapPostgresError(err)
	}
	return n, nil
}

func (r *JobRepository) EnsureUser(ctx context.Context, userID string) error {
	const q = `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING;`
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (r *JobRepository) DeductCredits(ctx context.Context, userID string, amount int) error {
	const q = `UPDATE users SET credits = credits - $2 WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, q, userID, amount)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepository) execOne(ctx context.Context, q string, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClip(row pgx.Row) (*entity.AudioClip, error) {
	var (
		clip    entity.AudioClip
		service string
	)

	if err := row.Scan(
		&clip.ID,
		&clip.UserID,
		&service,
		&clip.Text,               // NULL => nil
		&clip.Voice,              // NULL => nil
		&clip.OriginalVoiceS3Key, // NULL => nil
		&clip.S3Key,              // NULL => nil
		&clip.Failed,
		&clip.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan audio clip: %w", mapPostgresError(err))
	}

	clip.Service = entity.Service(service)
	return &clip, nil
}
