// Package jobs implements a Redis-backed job queue:
// deterministic job IDs, at-least-once execution with worker-side
// idempotency, and an externally observable status model.
package jobs

import (
	"time"
)

// Status is a job's lifecycle stage.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusDeferred   Status = "deferred"
	StatusNotFound   Status = "not_found"
)

// Kind names the job functions this system supports.
type Kind string

const (
	KindCrawlSource           Kind = "crawl_source"
	KindSyncSource            Kind = "sync_source"
	KindCreateEntity          Kind = "create_entity"
	KindUpdateEntity          Kind = "update_entity"
	KindCreateLearningEpisode Kind = "create_learning_episode"
	KindRunAgentExecution     Kind = "run_agent_execution"
	KindResumeAgentExecution  Kind = "resume_agent_execution"
	KindRunBrainstorming      Kind = "run_brainstorming"
	KindRunSynthesis          Kind = "run_synthesis"
	KindRunMaterialization    Kind = "run_materialization"
	KindGenerateStatusHint    Kind = "generate_status_hint"
)

// Info is the externally observable state of one job.
type Info struct {
	ID         string
	Kind       Kind
	Status     Status
	Args       []byte // raw JSON, deserialized by the handler for its Kind
	Result     []byte // raw JSON, populated on Status == StatusComplete
	Error      string
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// CrawlJobID and SyncJobID build the deterministic dedup keys
// names for the two job kinds that must never duplicate per source.
func CrawlJobID(sourceID string) string { return "crawl:" + sourceID }
func SyncJobID(sourceID string) string  { return "sync:" + sourceID }
