//go:build integration

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T, ctx context.Context) redis.UniversalClient {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestIntegration_RedisPriorityQueue(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t, ctx)

	keys := DefaultQueueKeys("test:queue", "test:processing")
	low, normal, high := Lanes("test:queue", "test:processing")
	q := NewRedisPriorityQueue(rdb, keys, low, normal, high)

	t.Run("claims by priority", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "low-1", 0))
		require.NoError(t, q.Enqueue(ctx, "high-1", 2))
		require.NoError(t, q.Enqueue(ctx, "normal-1", 1))

		for _, want := range []string{"high-1", "normal-1", "low-1"} {
			id, err := q.ClaimBlocking(ctx, time.Second)
			require.NoError(t, err)
			require.Equal(t, want, id)
			require.NoError(t, q.Ack(ctx, id))
		}

		_, err := q.ClaimBlocking(ctx, 100*time.Millisecond)
		require.ErrorIs(t, err, redis.Nil)
	})

	t.Run("retry keeps the lane and counts attempts", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "r1", 2))

		id, err := q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)
		n, err := q.Retry(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.EqualValues(t, 1, rdb.LLen(ctx, high.QueueKey).Val())
		require.Zero(t, rdb.LLen(ctx, high.ProcessingKey).Val())

		id, err = q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)
		n, err = q.Retry(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		id, err = q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)
		require.NoError(t, q.Ack(ctx, id))

		n, err = q.Attempts(ctx, id)
		require.NoError(t, err)
		require.Zero(t, n, "ack clears attempts")
	})

	t.Run("defer requeues without an attempt", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "w1", 1))
		id, err := q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)

		require.NoError(t, q.Defer(ctx, id))
		require.Equal(t, []string{"w1"}, rdb.LRange(ctx, normal.QueueKey, 0, -1).Val())
		require.Zero(t, rdb.LLen(ctx, normal.ProcessingKey).Val())
		n, err := q.Attempts(ctx, id)
		require.NoError(t, err)
		require.Zero(t, n)

		id, err = q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)
		require.NoError(t, q.Ack(ctx, id))
	})

	t.Run("dead letter", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "d1", 1))
		id, err := q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)

		require.NoError(t, q.DeadLetter(ctx, id, "backend rejected"))
		require.Equal(t, []string{"d1|backend rejected"}, rdb.LRange(ctx, keys.DeadLetter, 0, -1).Val())
		require.Zero(t, rdb.LLen(ctx, normal.ProcessingKey).Val())
	})

	t.Run("reaper returns stale claims only", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "s1", 0))
		_, err := q.ClaimBlocking(ctx, time.Second)
		require.NoError(t, err)

		moved, err := q.RequeueStale(ctx, time.Hour, 100)
		require.NoError(t, err)
		require.Zero(t, moved, "fresh claim stays in processing")

		moved, err = q.RequeueStale(ctx, 0, 100)
		require.NoError(t, err)
		require.EqualValues(t, 1, moved)
		require.Equal(t, []string{"s1"}, rdb.LRange(ctx, low.QueueKey, 0, -1).Val())
		require.Zero(t, rdb.LLen(ctx, low.ProcessingKey).Val())
	})
}

func TestIntegration_RedisUserGate(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t, ctx)
	gate := NewRedisUserGate(rdb, "test:user_active:", 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := gate.Acquire(ctx, "u1")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := gate.Acquire(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok, "third slot is refused")
	require.Equal(t, "2", rdb.Get(ctx, "test:user_active:u1").Val())

	ok, err = gate.Acquire(ctx, "u2")
	require.NoError(t, err)
	require.True(t, ok, "limits are per user")

	require.NoError(t, gate.Release(ctx, "u1"))
	ok, err = gate.Acquire(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, gate.Release(ctx, "u1"))
	require.NoError(t, gate.Release(ctx, "u1"))
	require.Zero(t, rdb.Exists(ctx, "test:user_active:u1").Val(), "empty counter is removed")
	require.Positive(t, rdb.PTTL(ctx, "test:user_active:u2").Val())
}
