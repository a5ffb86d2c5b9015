package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueueAndClient(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewQueue(client), client
}

func TestWorkerRunsRegisteredHandlerAndRecordsResult(t *testing.T) {
	q, client := newTestQueueAndClient(t)
	w := NewWorker(q, client, nil)

	type args struct {
		Name string `json:"name"`
	}
	seen := make(chan string, 1)
	w.Register(KindCreateEntity, func(ec ExecContext, raw json.RawMessage) (any, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		seen <- a.Name
		return map[string]any{"ok": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, _, err := q.Enqueue(ctx, KindCreateEntity, "", args{Name: "widget"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	runCtx, runCancel := context.WithTimeout(ctx, 2*time.Second)
	defer runCancel()
	go w.Run(runCtx, KindCreateEntity)

	select {
	case name := <-seen:
		if name != "widget" {
			t.Fatalf("handler saw name=%q, want widget", name)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		info, err := q.GetInfo(ctx, id)
		if err != nil {
			t.Fatalf("GetInfo: %v", err)
		}
		if info.Status == StatusComplete {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached StatusComplete")
}

func TestWorkerFailsJobWhenHandlerErrors(t *testing.T) {
	q, client := newTestQueueAndClient(t)
	w := NewWorker(q, client, nil)
	w.Register(KindUpdateEntity, func(ec ExecContext, raw json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id, _, err := q.Enqueue(ctx, KindUpdateEntity, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	runCtx, runCancel := context.WithTimeout(ctx, 2*time.Second)
	defer runCancel()
	go w.Run(runCtx, KindUpdateEntity)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		info, err := q.GetInfo(ctx, id)
		if err != nil {
			t.Fatalf("GetInfo: %v", err)
		}
		if info.Status == StatusFailed {
			if info.Error != "boom" {
				t.Fatalf("Error = %q, want boom", info.Error)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached StatusFailed")
}

func TestWorkerFailsJobWithNoRegisteredHandler(t *testing.T) {
	q, client := newTestQueueAndClient(t)
	w := NewWorker(q, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id, _, err := q.Enqueue(ctx, KindRunSynthesis, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	runCtx, runCancel := context.WithTimeout(ctx, 2*time.Second)
	defer runCancel()
	go w.Run(runCtx, KindRunSynthesis)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		info, err := q.GetInfo(ctx, id)
		if err != nil {
			t.Fatalf("GetInfo: %v", err)
		}
		if info.Status == StatusFailed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached StatusFailed")
}
