package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is an immutable record of a security-relevant event. Entries are
// append-only: once written they are never updated or deleted, and the
// trail is the sole source of truth for what happened and who
// authorized it.
type Entry struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	RecordedAt   time.Time       `db:"recorded_at" json:"recorded_at"`
	ActorID      *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	Action       string          `db:"action" json:"action"`
	ResourceType string          `db:"resource_type" json:"resource_type"`
	ResourceID   string          `db:"resource_id" json:"resource_id,omitempty"`
	Before       json.RawMessage `db:"before_state" json:"before,omitempty"`
	After        json.RawMessage `db:"after_state" json:"after,omitempty"`
	Metadata     map[string]any  `db:"metadata" json:"metadata,omitempty"`
	SourceIP     string          `db:"source_ip" json:"source_ip,omitempty"`
}

// Filter narrows a trail query. Zero values mean "no constraint".
type Filter struct {
	ResourceType string
	ResourceID   string
	ActorID      *uuid.UUID
	ActionPrefix string
	Since        time.Time
	Until        time.Time
}

// Well-known action names recorded by the core itself.
const (
	ActionBreakGlassIssue  = "breakglass.issue"
	ActionBreakGlassUse    = "breakglass.use"
	ActionBreakGlassRevoke = "breakglass.revoke"
	ActionAuthorizeDenied  = "authorize.denied"
)
