// Package events implements the realtime event fabric: a per-process
// ConnectionRegistry that fans WebSocket frames out to org-scoped
// subscribers, bridged across nodes by Redis pub/sub.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event names, the taxonomy every implementation must emit.
const (
	EntityCreated     = "entity_created"
	EntityUpdated     = "entity_updated"
	EntityDeleted     = "entity_deleted"
	TaskTransitioned  = "task_transitioned"
	ApprovalRequested = "approval_requested"
	ApprovalAnswered  = "approval_answered"
	CrawlStarted      = "crawl_started"
	CrawlProgress     = "crawl_progress"
	CrawlComplete     = "crawl_complete"
	SearchComplete    = "search_complete"
	AgentMessage      = "agent_message"
	AgentStatus       = "agent_status"
	HealthUpdate      = "health_update" // the only event with org_id = nil
)

// Envelope is the wire shape published on the cross-node channel and sent
// down every WebSocket connection.
type Envelope struct {
	Event     string     `json:"event"`
	Data      any        `json:"data"`
	OrgID     *uuid.UUID `json:"org_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func newEnvelope(event string, data any, orgID *uuid.UUID) Envelope {
	return Envelope{Event: event, Data: data, OrgID: orgID, Timestamp: time.Now().UTC()}
}
