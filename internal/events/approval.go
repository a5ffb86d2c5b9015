package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ApprovalChannelPrefix and QuestionChannelPrefix name the per-request
// IPC channels a worker subscribes to while awaiting a human decision.
const (
	ApprovalChannelPrefix = "sibyl:approval:"
	QuestionChannelPrefix = "sibyl:question:"
)

// DefaultWaitTimeout is the default approval/question wait.
const DefaultWaitTimeout = 300 * time.Second

// ApprovalResponse is the decision payload published by the API side when
// a user answers an approval request.
type ApprovalResponse struct {
	Approved bool           `json:"approved"`
	Action   string         `json:"action,omitempty"`
	By       string         `json:"by,omitempty"`
	Message  string         `json:"message,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// QuestionResponse is the answer payload published when a user responds
// to an agent question.
type QuestionResponse struct {
	Answers map[string]any `json:"answers"`
	By      string         `json:"by,omitempty"`
}

// WaitForApprovalResponse subscribes to the approval channel for id and
// blocks until a response is published or timeout elapses. A nil result
// with a nil error means the wait timed out.
func WaitForApprovalResponse(ctx context.Context, client *redis.Client, id string, timeout time.Duration, logger *slog.Logger) (*ApprovalResponse, error) {
	var resp ApprovalResponse
	ok, err := waitForChannel(ctx, client, ApprovalChannelPrefix+id, timeout, &resp, logger)
	if err != nil || !ok {
		return nil, err
	}
	return &resp, nil
}

// PublishApprovalResponse is called by the API side once a user answers
// an approval request.
func PublishApprovalResponse(ctx context.Context, client *redis.Client, id string, resp ApprovalResponse) error {
	return publishJSON(ctx, client, ApprovalChannelPrefix+id, resp)
}

// WaitForQuestionResponse is WaitForApprovalResponse's counterpart for
// agent questions.
func WaitForQuestionResponse(ctx context.Context, client *redis.Client, id string, timeout time.Duration, logger *slog.Logger) (*QuestionResponse, error) {
	var resp QuestionResponse
	ok, err := waitForChannel(ctx, client, QuestionChannelPrefix+id, timeout, &resp, logger)
	if err != nil || !ok {
		return nil, err
	}
	return &resp, nil
}

// PublishQuestionResponse is PublishApprovalResponse's counterpart for
// agent questions.
func PublishQuestionResponse(ctx context.Context, client *redis.Client, id string, resp QuestionResponse) error {
	return publishJSON(ctx, client, QuestionChannelPrefix+id, resp)
}

func publishJSON(ctx context.Context, client *redis.Client, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, payload).Err()
}

// waitForChannel subscribes to channel, waits for the first message (or
// timeout/cancellation), and unmarshals it into out. Returns ok=false on
// timeout, which the caller surfaces as a nil response rather than an
// error: a timed-out approval is a valid, expected outcome.
func waitForChannel(ctx context.Context, client *redis.Client, channel string, timeout time.Duration, out any, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub := client.Subscribe(waitCtx, channel)
	defer sub.Close()

	msg, err := sub.ReceiveMessage(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil {
			logger.Warn("approval/question wait timed out", "channel", channel)
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(msg.Payload), out); err != nil {
		return false, err
	}
	return true, nil
}
