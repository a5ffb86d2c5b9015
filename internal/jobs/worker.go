package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExecContext is passed to every job Handler: the worker's own context
// plus a Redis handle for workers that need direct pub/sub access (the
// approval/question channel, primarily).
type ExecContext struct {
	context.Context
	Redis  *redis.Client
	Logger *slog.Logger
}

// Handler runs one job of a given Kind. args is the raw JSON the caller
// enqueued; the handler unmarshals it into whatever shape that Kind
// expects. The returned value is marshaled to JSON and stored as the
// job's result. A Handler must be safe to re-run: at-least-once delivery
// means a worker crash after claiming a job but before completing it
// results in another worker claiming it again after the visibility
// timeout elapses.
type Handler func(ec ExecContext, args json.RawMessage) (result any, err error)

// Worker pulls jobs of registered kinds off Queue and runs their
// handlers, one kind at a time per call to Run (callers run one Worker
// goroutine per kind they want to service concurrently).
type Worker struct {
	queue             *Queue
	redis             *redis.Client
	logger            *slog.Logger
	handlers          map[Kind]Handler
	pollTimeout       time.Duration
	visibilityTimeout time.Duration
}

// NewWorker builds a Worker over queue. A nil logger falls back to
// slog.Default().
func NewWorker(queue *Queue, redisClient *redis.Client, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:             queue,
		redis:             redisClient,
		logger:            logger,
		handlers:          make(map[Kind]Handler),
		pollTimeout:       5 * time.Second,
		visibilityTimeout: 10 * time.Minute,
	}
}

// Register binds a Handler to a Kind. Registering the same Kind twice
// replaces the previous handler.
func (w *Worker) Register(kind Kind, h Handler) {
	w.handlers[kind] = h
}

// Run services one Kind's pending list until ctx is cancelled, invoking
// the registered Handler for each job claimed. A missing handler for a
// dequeued Kind fails that job rather than panicking.
func (w *Worker) Run(ctx context.Context, kind Kind) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		info, err := w.queue.Dequeue(ctx, kind, w.pollTimeout, w.visibilityTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", "kind", kind, "error", err)
			continue
		}
		if info == nil {
			continue // poll timeout, no job available
		}
		w.execute(ctx, info)
	}
}

func (w *Worker) execute(ctx context.Context, info *Info) {
	handler, ok := w.handlers[info.Kind]
	if !ok {
		w.failJob(ctx, info.ID, fmt.Errorf("jobs: no handler registered for kind %q", info.Kind))
		return
	}

	ec := ExecContext{Context: ctx, Redis: w.redis, Logger: w.logger}
	result, err := handler(ec, json.RawMessage(info.Args))
	if err != nil {
		w.failJob(ctx, info.ID, err)
		return
	}
	if err := w.queue.Complete(ctx, info.ID, result); err != nil {
		w.logger.Error("failed to record job completion", "job_id", info.ID, "error", err)
	}
}

func (w *Worker) failJob(ctx context.Context, id string, cause error) {
	if err := w.queue.Fail(ctx, id, cause); err != nil {
		w.logger.Error("failed to record job failure", "job_id", id, "error", err)
	}
	if !errors.Is(cause, context.Canceled) {
		w.logger.Warn("job failed", "job_id", id, "error", cause)
	}
}
