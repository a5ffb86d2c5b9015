package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewQueue(client)
}

func TestEnqueueDeterministicIDIsNoOpWhileActive(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	id := CrawlJobID("src-1")

	gotID, existed, err := q.Enqueue(ctx, KindCrawlSource, id, map[string]any{"source_id": "src-1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if existed {
		t.Fatal("first enqueue reported existed=true, want false")
	}
	if gotID != id {
		t.Fatalf("gotID = %q, want %q", gotID, id)
	}

	gotID2, existed2, err := q.Enqueue(ctx, KindCrawlSource, id, map[string]any{"source_id": "src-1"})
	if err != nil {
		t.Fatalf("Enqueue (re-enqueue): %v", err)
	}
	if !existed2 {
		t.Fatal("re-enqueue of an active job reported existed=false, want true")
	}
	if gotID2 != id {
		t.Fatalf("gotID2 = %q, want %q", gotID2, id)
	}
}

func TestEnqueueAfterCompletionCreatesFreshJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	id := CrawlJobID("src-2")

	if _, _, err := q.Enqueue(ctx, KindCrawlSource, id, nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	info, err := q.Dequeue(ctx, KindCrawlSource, time.Second, time.Minute)
	if err != nil || info == nil {
		t.Fatalf("Dequeue: info=%+v err=%v", info, err)
	}
	if err := q.Complete(ctx, id, map[string]any{"pages": 3}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	_, existed, err := q.Enqueue(ctx, KindCrawlSource, id, nil)
	if err != nil {
		t.Fatalf("re-Enqueue after completion: %v", err)
	}
	if existed {
		t.Fatal("re-enqueue after completion reported existed=true, want false (fresh job)")
	}
}

func TestDequeueClaimsAndGetInfoReflectsInProgress(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	id, _, err := q.Enqueue(ctx, KindCreateEntity, "", map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	info, err := q.Dequeue(ctx, KindCreateEntity, time.Second, time.Minute)
	if err != nil || info == nil {
		t.Fatalf("Dequeue: info=%+v err=%v", info, err)
	}
	if info.ID != id || info.Status != StatusInProgress {
		t.Fatalf("info = %+v, want ID=%s Status=in_progress", info, id)
	}
}

func TestDequeueTimeoutReturnsNilNotError(t *testing.T) {
	q := newTestQueue(t)
	info, err := q.Dequeue(context.Background(), KindSyncSource, 50*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if info != nil {
		t.Fatalf("info = %+v, want nil on timeout", info)
	}
}

func TestGetInfoUnknownIDIsNotFound(t *testing.T) {
	q := newTestQueue(t)
	info, err := q.GetInfo(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Status != StatusNotFound {
		t.Fatalf("Status = %q, want not_found", info.Status)
	}
}

func TestCancelQueuedJobMakesItNotFound(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	id, _, err := q.Enqueue(ctx, KindUpdateEntity, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := q.Cancel(ctx, KindUpdateEntity, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	info, err := q.GetInfo(ctx, id)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Status != StatusNotFound {
		t.Fatalf("Status = %q after cancel, want not_found", info.Status)
	}
}

func TestCancelInProgressJobFails(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	id, _, err := q.Enqueue(ctx, KindUpdateEntity, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx, KindUpdateEntity, time.Second, time.Minute); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	if err := q.Cancel(ctx, KindUpdateEntity, id); err != ErrNotCancellable {
		t.Fatalf("Cancel err = %v, want ErrNotCancellable", err)
	}
}

func TestFailRecordsErrorAndStatus(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	id, _, err := q.Enqueue(ctx, KindGenerateStatusHint, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx, KindGenerateStatusHint, time.Second, time.Minute); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	cause := context.DeadlineExceeded
	if err := q.Fail(ctx, id, cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	info, err := q.GetInfo(ctx, id)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Status != StatusFailed || info.Error != cause.Error() {
		t.Fatalf("info = %+v, want Status=failed Error=%q", info, cause.Error())
	}
}
