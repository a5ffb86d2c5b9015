package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestWaitForApprovalResponseReceivesPublishedAnswer(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	id := "abc123"

	done := make(chan *ApprovalResponse, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := WaitForApprovalResponse(ctx, client, id, 2*time.Second, nil)
		errCh <- err
		done <- resp
	}()

	// Give the subscriber time to attach before publishing.
	time.Sleep(50 * time.Millisecond)
	if err := PublishApprovalResponse(ctx, client, id, ApprovalResponse{Approved: true, By: "alice"}); err != nil {
		t.Fatalf("PublishApprovalResponse: %v", err)
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WaitForApprovalResponse: %v", err)
	}
	resp := <-done
	if resp == nil || !resp.Approved || resp.By != "alice" {
		t.Fatalf("resp = %+v, want Approved=true By=alice", resp)
	}
}

func TestWaitForApprovalResponseTimesOutWithNilResult(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	resp, err := WaitForApprovalResponse(ctx, client, "never-answered", 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("WaitForApprovalResponse: %v", err)
	}
	if resp != nil {
		t.Fatalf("resp = %+v, want nil on timeout", resp)
	}
}

func TestWaitForQuestionResponseReceivesAnswers(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	id := "q1"

	done := make(chan *QuestionResponse, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := WaitForQuestionResponse(ctx, client, id, 2*time.Second, nil)
		errCh <- err
		done <- resp
	}()

	time.Sleep(50 * time.Millisecond)
	if err := PublishQuestionResponse(ctx, client, id, QuestionResponse{Answers: map[string]any{"color": "blue"}, By: "bob"}); err != nil {
		t.Fatalf("PublishQuestionResponse: %v", err)
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WaitForQuestionResponse: %v", err)
	}
	resp := <-done
	if resp == nil || resp.Answers["color"] != "blue" {
		t.Fatalf("resp = %+v, want Answers[color]=blue", resp)
	}
}
