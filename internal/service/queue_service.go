package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Queue interface {
	Enqueue(ctx context.Context, jobID string, priority int) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	// Retry acks the claim and puts the job back on its lane. It returns the
	// number of attempts made so far.
	Retry(ctx context.Context, jobID string) (int, error)
	// Defer puts a claimed job back on its lane without counting an attempt.
	Defer(ctx context.Context, jobID string) error
	// DeadLetter acks the claim and parks the job with the reason.
	DeadLetter(ctx context.Context, jobID, reason string) error
	Attempts(ctx context.Context, jobID string) (int, error)
	// RequeueStale returns claims older than staleAfter to their lanes.
	RequeueStale(ctx context.Context, staleAfter time.Duration, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// QueueKeys names the bookkeeping structures next to the lane lists.
type QueueKeys struct {
	// hash: job id -> processing list currently holding it
	ProcessingMap string
	// hash: job id -> claim time, unix millis
	ClaimedAt string
	// hash: job id -> failed attempts
	Attempts string
	// list of "id|reason" entries
	DeadLetter string
}

// Lanes derives the three lanes from the base keys, e.g. audio:queue:high.
func Lanes(queueKey, processingKey string) (low, normal, high Lane) {
	lane := func(name string) Lane {
		return Lane{QueueKey: queueKey + ":" + name, ProcessingKey: processingKey + ":" + name}
	}
	return lane("low"), lane("normal"), lane("high")
}

func DefaultQueueKeys(queueKey, processingKey string) QueueKeys {
	return QueueKeys{
		ProcessingMap: processingKey + ":map",
		ClaimedAt:     processingKey + ":claimed_at",
		Attempts:      queueKey + ":attempts",
		DeadLetter:    queueKey + ":dead",
	}
}

// redisPriorityQueue implements a reliable queue with priorities using Redis lists.
// Lanes: high/normal/low.
// Claim: BRPOPLPUSH lane.queue -> lane.processing
// Ack:   LREM from correct processing list (stored in the processing map hash)
type redisPriorityQueue struct {
	rdb  redis.UniversalClient
	keys QueueKeys

	low    Lane
	normal Lane
	high   Lane
}

func NewRedisPriorityQueue(rdb redis.UniversalClient, keys QueueKeys, low, normal, high Lane) Queue {
	return &redisPriorityQueue{
		rdb:    rdb,
		keys:   keys,
		low:    low,
		normal: normal,
		high:   high,
	}
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 2 {
		return 2
	}
	return p
}

func (q *redisPriorityQueue) lanes() []Lane {
	return []Lane{q.high, q.normal, q.low}
}

func (q *redisPriorityQueue) laneByPriority(p int) Lane {
	switch clampPriority(p) {
	case 2:
		return q.high
	case 1:
		return q.normal
	default:
		return q.low
	}
}

func (q *redisPriorityQueue) laneByProcessingKey(key string) (Lane, bool) {
	for _, ln := range q.lanes() {
		if ln.ProcessingKey == key {
			return ln, true
		}
	}
	return Lane{}, false
}

func (q *redisPriorityQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	ln := q.laneByPriority(priority)
	return q.rdb.LPush(ctx, ln.QueueKey, jobID).Err()
}

// ClaimBlocking tries high->normal->low with small blocking slots,
// so it is "mostly blocking" but still respects priority.
func (q *redisPriorityQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	// if timeout <= 0, loop until ctx is done (like a worker daemon)
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !forever && time.Now().After(deadline) {
			return "", redis.Nil
		}

		for _, ln := range q.lanes() {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", redis.Nil
				}
				if remain < wait {
					wait = remain
				}
			}

			id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if err == nil {
				// remember which processing list holds this id (for Ack/Retry)
				// and when it was taken (for the reaper)
				_, hErr := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.HSet(ctx, q.keys.ProcessingMap, id, ln.ProcessingKey)
					pipe.HSet(ctx, q.keys.ClaimedAt, id, time.Now().UnixMilli())
					return nil
				})
				if hErr != nil {
					return "", hErr
				}
				return id, nil
			}

			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", err
		}
	}
}

// release removes jobID from its processing list and returns the lane it was
// claimed from. ok is false when the mapping was missing.
func (q *redisPriorityQueue) release(ctx context.Context, jobID string) (Lane, bool, error) {
	processingKey, err := q.rdb.HGet(ctx, q.keys.ProcessingMap, jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// mapping потерян (старые jobs или ручное вмешательство), чистим все processing
			for _, ln := range q.lanes() {
				_ = q.rdb.LRem(ctx, ln.ProcessingKey, 1, jobID).Err()
			}
			_ = q.rdb.HDel(ctx, q.keys.ClaimedAt, jobID).Err()
			return Lane{}, false, nil
		}
		return Lane{}, false, err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, jobID).Err(); err != nil {
		return Lane{}, false, err
	}
	q.forget(ctx, jobID)

	ln, ok := q.laneByProcessingKey(processingKey)
	return ln, ok, nil
}

func (q *redisPriorityQueue) Ack(ctx context.Context, jobID string) error {
	if _, _, err := q.release(ctx, jobID); err != nil {
		return err
	}
	_ = q.rdb.HDel(ctx, q.keys.Attempts, jobID).Err()
	return nil
}

func (q *redisPriorityQueue) Retry(ctx context.Context, jobID string) (int, error) {
	attempts, err := q.rdb.HIncrBy(ctx, q.keys.Attempts, jobID, 1).Result()
	if err != nil {
		return 0, err
	}
	return int(attempts), q.requeue(ctx, jobID)
}

func (q *redisPriorityQueue) Defer(ctx context.Context, jobID string) error {
	return q.requeue(ctx, jobID)
}

// requeue moves a claimed job to the back of the lane it came from.
func (q *redisPriorityQueue) requeue(ctx context.Context, jobID string) error {
	ln, ok, err := q.release(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		ln = q.normal
	}
	return q.rdb.LPush(ctx, ln.QueueKey, jobID).Err()
}

func (q *redisPriorityQueue) DeadLetter(ctx context.Context, jobID, reason string) error {
	if _, _, err := q.release(ctx, jobID); err != nil {
		return err
	}
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.keys.DeadLetter, fmt.Sprintf("%s|%s", jobID, reason))
		pipe.HDel(ctx, q.keys.Attempts, jobID)
		return nil
	})
	return err
}

func (q *redisPriorityQueue) Attempts(ctx context.Context, jobID string) (int, error) {
	n, err := q.rdb.HGet(ctx, q.keys.Attempts, jobID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (q *redisPriorityQueue) forget(ctx context.Context, jobID string) {
	_ = q.rdb.HDel(ctx, q.keys.ProcessingMap, jobID).Err()
	_ = q.rdb.HDel(ctx, q.keys.ClaimedAt, jobID).Err()
}

// RequeueStale moves claims older than staleAfter from processing back to
// their queue, per lane. It's a simple "reaper": at-least-once delivery.
// Claims without a timestamp (worker died between claim and bookkeeping) are
// treated as stale.
func (q *redisPriorityQueue) RequeueStale(ctx context.Context, staleAfter time.Duration, maxPerLane int64) (int64, error) {
	var moved int64
	cutoff := time.Now().Add(-staleAfter).UnixMilli()

	for _, ln := range q.lanes() {
		ids, err := q.rdb.LRange(ctx, ln.ProcessingKey, 0, -1).Result()
		if err != nil {
			return moved, err
		}

		var laneMoved int64
		for _, id := range ids {
			if laneMoved >= maxPerLane {
				break
			}

			claimed, err := q.rdb.HGet(ctx, q.keys.ClaimedAt, id).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return moved, err
			}
			if err == nil && claimed > cutoff {
				continue
			}

			// LREM tells us whether we won against a concurrent Ack
			removed, err := q.rdb.LRem(ctx, ln.ProcessingKey, 1, id).Result()
			if err != nil {
				return moved, err
			}
			if removed == 0 {
				continue
			}
			if err := q.rdb.LPush(ctx, ln.QueueKey, id).Err(); err != nil {
				return moved, err
			}
			q.forget(ctx, id)
			laneMoved++
		}
		moved += laneMoved
	}

	return moved, nil
}
