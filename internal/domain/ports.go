package domain

import "context"

// RoadmapGenerator is the external planning collaborator (an LLM call in practice).
type RoadmapGenerator interface {
	// Generate returns structured roadmap text for the given context.
	Generate(ctx context.Context, contextText string) (string, error)
	// Elaborate returns free-form guidance for a single task.
	Elaborate(ctx context.Context, contextText string) (string, error)
}

// NotificationSink receives committed planning events.
type NotificationSink interface {
	TaskCreated(ctx context.Context, t Task) error
	TaskCompleted(ctx context.Context, t Task) error
	TaskUnblocked(ctx context.Context, t Task) error
	MilestoneCompleted(ctx context.Context, m Milestone) error
}

// MembershipProvider resolves the active members of a project.
type MembershipProvider interface {
	GetActiveMembers(ctx context.Context, projectID string) ([]Member, error)
}
