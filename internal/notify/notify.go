// Package notify delivers committed planning events to the outside world.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"crewline/internal/ctxlog"
	"crewline/internal/domain"
)

// Event names shared by every sink.
const (
	EventTaskCreated        = "task.created"
	EventTaskCompleted      = "task.completed"
	EventTaskUnblocked      = "task.unblocked"
	EventMilestoneCompleted = "milestone.completed"
)

// Dispatch hands each effect to sink. Delivery happens after commit, so a
// failure is logged and returned but never undoes the mutation.
func Dispatch(ctx context.Context, sink domain.NotificationSink, fx domain.Effects) error {
	if sink == nil || fx.Empty() {
		return nil
	}
	var errs []error
	for _, t := range fx.TasksCreated {
		errs = append(errs, sink.TaskCreated(ctx, t))
	}
	for _, t := range fx.TasksCompleted {
		errs = append(errs, sink.TaskCompleted(ctx, t))
	}
	for _, t := range fx.TasksUnblocked {
		errs = append(errs, sink.TaskUnblocked(ctx, t))
	}
	for _, m := range fx.MilestonesCompleted {
		errs = append(errs, sink.MilestoneCompleted(ctx, m))
	}
	err := errors.Join(errs...)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("notification delivery failed", "error", err)
	}
	return err
}

// Fanout forwards every notification to each sink in turn.
type Fanout []domain.NotificationSink

func (f Fanout) each(fn func(domain.NotificationSink) error) error {
	var errs []error
	for _, s := range f {
		if s != nil {
			errs = append(errs, fn(s))
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) TaskCreated(ctx context.Context, t domain.Task) error {
	return f.each(func(s domain.NotificationSink) error { return s.TaskCreated(ctx, t) })
}

func (f Fanout) TaskCompleted(ctx context.Context, t domain.Task) error {
	return f.each(func(s domain.NotificationSink) error { return s.TaskCompleted(ctx, t) })
}

func (f Fanout) TaskUnblocked(ctx context.Context, t domain.Task) error {
	return f.each(func(s domain.NotificationSink) error { return s.TaskUnblocked(ctx, t) })
}

func (f Fanout) MilestoneCompleted(ctx context.Context, m domain.Milestone) error {
	return f.each(func(s domain.NotificationSink) error { return s.MilestoneCompleted(ctx, m) })
}

// LogSink writes one structured line per notification.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) logger(ctx context.Context) *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return ctxlog.FromContext(ctx)
}

func (s LogSink) task(ctx context.Context, event string, t domain.Task) error {
	s.logger(ctx).Info("notification", "event", event, "project_id", t.ProjectID, "task_id", t.ID, "title", t.Title, "assigned_user_id", deref(t.AssignedUserID))
	return nil
}

func (s LogSink) TaskCreated(ctx context.Context, t domain.Task) error {
	return s.task(ctx, EventTaskCreated, t)
}

func (s LogSink) TaskCompleted(ctx context.Context, t domain.Task) error {
	return s.task(ctx, EventTaskCompleted, t)
}

func (s LogSink) TaskUnblocked(ctx context.Context, t domain.Task) error {
	return s.task(ctx, EventTaskUnblocked, t)
}

func (s LogSink) MilestoneCompleted(ctx context.Context, m domain.Milestone) error {
	s.logger(ctx).Info("notification", "event", EventMilestoneCompleted, "project_id", m.ProjectID, "milestone_id", m.ID, "title", m.Title)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Message is the body webhook and realtime sinks send.
type Message struct {
	Event     string            `json:"event"`
	ProjectID string            `json:"project_id"`
	Task      *domain.Task      `json:"task,omitempty"`
	Milestone *domain.Milestone `json:"milestone,omitempty"`
	SentAt    string            `json:"sent_at"`
}
