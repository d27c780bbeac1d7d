package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written to the audit log.
const (
	ProjectCreated     = "project.created"
	MemberJoined       = "member.joined"
	MemberLeft         = "member.left"
	MilestoneCreated   = "milestone.created"
	MilestoneUpdated   = "milestone.updated"
	MilestoneStatus    = "milestone.status"
	MilestoneReordered = "milestone.reordered"
	MilestoneDeleted   = "milestone.deleted"
	TaskCreated        = "task.created"
	TaskUpdated        = "task.updated"
	TaskStatus         = "task.status"
	TaskReordered      = "task.reordered"
	TaskDeleted        = "task.deleted"
	SubtaskCreated     = "subtask.created"
	SubtaskUpdated     = "subtask.updated"
	SubtaskToggled     = "subtask.toggled"
	SubtaskReordered   = "subtask.reordered"
	SubtaskDeleted     = "subtask.deleted"
	DependencyAdded    = "dependency.added"
	DependencyRemoved  = "dependency.removed"
	ReferenceAdded     = "reference.added"
	ReferenceRemoved   = "reference.removed"
	RoadmapApplied     = "roadmap.applied"
	APIKeyCreated      = "apikey.created"
	APIKeyRevoked      = "apikey.revoked"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Entry is one audit record.
type Entry struct {
	Type       string
	ProjectID  string
	EntityKind string
	EntityID   string
	ActorID    string
	Payload    Payload
}

// Append writes e inside tx so the record commits or rolls back with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if e.Payload == nil {
		e.Payload = Payload{}
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), e.Type, nullable(e.ProjectID), e.EntityKind, nullable(e.EntityID), e.ActorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", e.Type, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
