package sessionmem

import "context"

// Runner executes one agent turn: given a prompt (fresh, or a resumed
// session's formatted transcript plus a follow-up), it produces the
// next assistant Message. Real implementations wrap an actual agent
// loop; that loop is out of scope here (Non-goals: "LLM/embedding
// provider SDKs"), so StubRunner is the only implementation this
// package provides, enough for run_agent_execution/
// resume_agent_execution to have a concrete collaborator in tests,
// mirroring how internal/embedder ships a local stub for the same
// reason.
type Runner interface {
	Run(ctx context.Context, sessionID, prompt string) (Message, error)
}

// StubRunner acknowledges the prompt without calling any model.
type StubRunner struct{}

func (StubRunner) Run(ctx context.Context, sessionID, prompt string) (Message, error) {
	return Message{Role: RoleAssistant, Content: "acknowledged: " + prompt}, nil
}
