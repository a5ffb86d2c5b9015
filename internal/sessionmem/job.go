package sessionmem

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/events"
	"github.com/sibyl-platform/sibyl/internal/jobs"
)

// executionArgs is the JSON shape enqueued for both run_agent_execution
// and resume_agent_execution.
type executionArgs struct {
	SessionID string `json:"session_id"`
	OrgID     string `json:"organization_id"`
	Prompt    string `json:"prompt"`
}

// statusHintArgs is the JSON shape enqueued for generate_status_hint.
type statusHintArgs struct {
	ToolName  string `json:"tool_name"`
	TaskTitle string `json:"task_title"`
	AgentType string `json:"agent_type"`
}

// RegisterHandlers binds run_agent_execution, resume_agent_execution,
// and generate_status_hint to w.
func RegisterHandlers(w *jobs.Worker, store *Store, runner Runner, bridge *events.Bridge) {
	if runner == nil {
		runner = StubRunner{}
	}

	w.Register(jobs.KindRunAgentExecution, func(ec jobs.ExecContext, raw json.RawMessage) (any, error) {
		var args executionArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("sessionmem: decode args: %w", err)
		}
		return runExecution(ec.Context, store, runner, bridge, args, false)
	})

	w.Register(jobs.KindResumeAgentExecution, func(ec jobs.ExecContext, raw json.RawMessage) (any, error) {
		var args executionArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("sessionmem: decode args: %w", err)
		}
		if store.History(args.SessionID) == nil {
			return nil, fmt.Errorf("sessionmem: no session %q to resume", args.SessionID)
		}
		return runExecution(ec.Context, store, runner, bridge, args, true)
	})

	w.Register(jobs.KindGenerateStatusHint, func(ec jobs.ExecContext, raw json.RawMessage) (any, error) {
		var args statusHintArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("sessionmem: decode args: %w", err)
		}
		return map[string]string{"hint": fallbackHint(args.ToolName)}, nil
	})
}

func runExecution(ctx context.Context, store *Store, runner Runner, bridge *events.Bridge, args executionArgs, resume bool) (any, error) {
	prompt := args.Prompt
	if resume {
		prompt = FormatTranscript(store.History(args.SessionID)) + "User: " + args.Prompt
	}

	store.Append(args.SessionID, Message{Role: RoleUser, Content: args.Prompt})
	store.SetStatus(args.SessionID, "running")

	var orgID *uuid.UUID
	if parsed, err := uuid.Parse(args.OrgID); err == nil {
		orgID = &parsed
	}
	bridge.Publish(ctx, events.AgentStatus, map[string]any{"session_id": args.SessionID, "status": "running"}, orgID)

	reply, err := runner.Run(ctx, args.SessionID, prompt)
	if err != nil {
		store.SetStatus(args.SessionID, "failed")
		bridge.Publish(ctx, events.AgentStatus, map[string]any{"session_id": args.SessionID, "status": "failed"}, orgID)
		return nil, fmt.Errorf("sessionmem: run: %w", err)
	}

	store.Append(args.SessionID, reply)
	store.SetStatus(args.SessionID, "complete")
	bridge.Publish(ctx, events.AgentMessage, map[string]any{"session_id": args.SessionID, "content": reply.Content}, orgID)
	bridge.Publish(ctx, events.AgentStatus, map[string]any{"session_id": args.SessionID, "status": "complete"}, orgID)

	return map[string]any{"session_id": args.SessionID, "reply": reply.Content}, nil
}

// fallbackHint mirrors a fixed tool-name-to-hint table, the only part
// of status-hint generation kept here, since the LLM-backed generation
// path is a provider integration that's out of scope.
func fallbackHint(toolName string) string {
	switch toolName {
	case "Read":
		return "Absorbing knowledge"
	case "Edit":
		return "Sculpting code"
	case "Write":
		return "Manifesting files"
	case "Grep":
		return "Hunting patterns"
	case "Glob":
		return "Mapping the terrain"
	case "Bash":
		return "Whispering to the shell"
	case "Task":
		return "Summoning allies"
	case "WebSearch":
		return "Consulting the web"
	case "WebFetch":
		return "Retrieving wisdom"
	default:
		return "Working magic"
	}
}
