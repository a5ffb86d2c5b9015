package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sibyl:job:"

// ErrNotCancellable is returned by Cancel for any job not in StatusQueued.
var ErrNotCancellable = errors.New("jobs: only queued jobs may be cancelled")

// enqueueScript atomically checks for an existing active job under id and,
// if none is found, creates the job hash and pushes it onto its kind's
// pending list. Returns 0 when a fresh job was created, 1 when an active
// job with the same id already existed (the no-op re-enqueue case).
const enqueueScript = `
local key = KEYS[1]
local listKey = KEYS[2]
local status = redis.call('HGET', key, 'status')
if status == 'queued' or status == 'in_progress' then
  return 1
end
redis.call('HSET', key, 'id', ARGV[1], 'kind', ARGV[2], 'args', ARGV[3], 'status', 'queued', 'enqueued_at', ARGV[4])
redis.call('RPUSH', listKey, ARGV[1])
return 0
`

// Queue is a Redis-backed job queue: deterministic dedup IDs, at-least-
// once delivery, and an externally observable status per job ID.
type Queue struct {
	client *redis.Client
}

// NewQueue wraps an existing Redis client.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func jobKey(id string) string       { return keyPrefix + id }
func pendingListKey(k Kind) string  { return keyPrefix + "pending:" + string(k) }
func processingSetKey() string      { return keyPrefix + "processing" }

// Enqueue creates a job of the given kind and args, keyed by id. If id is
// empty a random ID is generated (the "doesn't need dedup" case); if id
// names an already-active job (queued or in_progress), Enqueue is a
// no-op and returns that job's existing ID.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, id string, args any) (jobID string, alreadyActive bool, err error) {
	if id == "" {
		id = uuid.New().String()
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", false, fmt.Errorf("jobs: marshal args: %w", err)
	}

	res, err := q.client.Eval(ctx, enqueueScript,
		[]string{jobKey(id), pendingListKey(kind)},
		id, string(kind), string(argsJSON), time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return "", false, fmt.Errorf("jobs: enqueue: %w", err)
	}

	n, _ := res.(int64)
	return id, n == 1, nil
}

// Dequeue blocks up to timeout for a job of the given kind, claims it
// (status -> in_progress, registered in the processing set with a
// deadline), and returns it. Returns nil, nil on timeout with no job
// available.
func (q *Queue) Dequeue(ctx context.Context, kind Kind, timeout time.Duration, visibilityTimeout time.Duration) (*Info, error) {
	result, err := q.client.BLPop(ctx, timeout, pendingListKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: dequeue: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	id := result[1]

	now := time.Now().UTC()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "status", string(StatusInProgress), "started_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, processingSetKey(), redis.Z{Score: float64(now.Add(visibilityTimeout).Unix()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("jobs: claim job %s: %w", id, err)
	}

	return q.GetInfo(ctx, id)
}

// Complete records a successful result for id.
func (q *Queue) Complete(ctx context.Context, id string, result any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("jobs: marshal result: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "status", string(StatusComplete), "result", string(resultJSON), "finished_at", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.ZRem(ctx, processingSetKey(), id)
	_, err = pipe.Exec(ctx)
	return err
}

// Fail records a failure for id. At-least-once execution means the
// caller decides separately whether to re-enqueue; Fail only marks
// terminal failure.
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "status", string(StatusFailed), "error", cause.Error(), "finished_at", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.ZRem(ctx, processingSetKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Defer marks a job deferred (e.g. an approval wait timed out) without
// removing it from the processing set's bookkeeping entirely; callers
// re-enqueue explicitly when the blocking condition clears.
func (q *Queue) Defer(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), "status", string(StatusDeferred), "finished_at", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.ZRem(ctx, processingSetKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Cancel removes a still-queued job so it will never be dequeued. Only
// StatusQueued jobs may be cancelled.
func (q *Queue) Cancel(ctx context.Context, kind Kind, id string) error {
	info, err := q.GetInfo(ctx, id)
	if err != nil {
		return err
	}
	if info.Status != StatusQueued {
		return ErrNotCancellable
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, pendingListKey(kind), 0, id)
	pipe.Del(ctx, jobKey(id))
	_, err = pipe.Exec(ctx)
	return err
}

// GetInfo returns a job's current status, or StatusNotFound if no job
// with that ID has ever been enqueued (or it was cancelled).
func (q *Queue) GetInfo(ctx context.Context, id string) (*Info, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("jobs: get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return &Info{ID: id, Status: StatusNotFound}, nil
	}

	info := &Info{
		ID:     id,
		Kind:   Kind(fields["kind"]),
		Status: Status(fields["status"]),
		Error:  fields["error"],
	}
	if args, ok := fields["args"]; ok {
		info.Args = []byte(args)
	}
	if result, ok := fields["result"]; ok {
		info.Result = []byte(result)
	}
	info.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, fields["enqueued_at"])
	info.StartedAt, _ = time.Parse(time.RFC3339Nano, fields["started_at"])
	info.FinishedAt, _ = time.Parse(time.RFC3339Nano, fields["finished_at"])
	return info, nil
}
