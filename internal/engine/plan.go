package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crewline/internal/ctxlog"
	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
	"crewline/internal/repo"
)

// PlanResult holds the hydrated entities a committed plan created.
type PlanResult struct {
	Milestones []domain.Milestone
	Tasks      []domain.Task
}

// CommitPlan writes a batch of new milestones, tasks, subtasks and edges as
// one unit of work. Order indices in the plan are ranks relative to the
// batch; they are placed after the current maximum of each list while the
// project lock is held. Every task milestone reference and the resulting
// dependency graph is re-validated before anything is written. Assignees
// are a soft match: one who left or changed role since the plan was built
// is dropped and the task keeps its role label.
func (e Engine) CommitPlan(ctx context.Context, projectID string, plan repo.Plan, actorID string) (PlanResult, domain.Effects, error) {
	var (
		res PlanResult
		fx  domain.Effects
	)
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return res, fx, err
	}
	if plan.Empty() {
		return res, fx, nil
	}
	plan.Milestones = append([]domain.Milestone(nil), plan.Milestones...)
	plan.Tasks = append([]domain.Task(nil), plan.Tasks...)
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		baseM, err := e.Repo.MaxOrderIndex(ctx, tx, repo.MilestoneList(projectID))
		if err != nil {
			return err
		}
		baseT, err := e.Repo.MaxOrderIndex(ctx, tx, repo.TaskBoard(projectID))
		if err != nil {
			return err
		}
		known := map[string]bool{}
		for i := range plan.Milestones {
			m := &plan.Milestones[i]
			if m.ProjectID != projectID {
				return fmt.Errorf("%w: milestone %q belongs to another project", domain.ErrInvalidState, m.Title)
			}
			m.OrderIndex += baseM + 1
			known[m.ID] = true
		}

		g, err := e.Repo.LoadGraph(ctx, tx, projectID)
		if err != nil {
			return err
		}
		for i := range plan.Tasks {
			t := &plan.Tasks[i]
			if t.ProjectID != projectID {
				return fmt.Errorf("%w: task %q belongs to another project", domain.ErrInvalidState, t.Title)
			}
			if t.MilestoneID != nil && !known[*t.MilestoneID] {
				if _, err := e.Repo.GetMilestone(ctx, tx, projectID, *t.MilestoneID); err != nil {
					return err
				}
				known[*t.MilestoneID] = true
			}
			if t.AssignedUserID != nil {
				ok, err := e.holdsRole(ctx, tx, projectID, *t.AssignedUserID, t.AssignedRole)
				if err != nil {
					return err
				}
				if !ok {
					ctxlog.FromContext(ctx).Info("plan assignee no longer matches, leaving role open",
						"project_id", projectID, "task", t.Title, "user_id", *t.AssignedUserID)
					t.AssignedUserID = nil
				}
			}
			t.OrderIndex += baseT + 1
			g.AddNode(t.ID)
		}
		for _, d := range plan.Dependencies {
			if err := g.AddEdge(d.TaskID, d.DependsOnTaskID); err != nil {
				return err
			}
		}
		if err := g.Validate(); err != nil {
			return err
		}

		if err := e.Repo.InsertPlan(ctx, tx, plan); err != nil {
			return err
		}
		for _, t := range plan.Tasks {
			if err := e.append(ctx, tx, events.TaskCreated, projectID, "task", t.ID, actorID, events.Payload{
				"title":       t.Title,
				"order_index": t.OrderIndex,
				"subtasks":    len(t.Subtasks),
				"source":      "plan",
			}); err != nil {
				return err
			}
		}
		if err := e.append(ctx, tx, events.RoadmapApplied, projectID, "project", projectID, actorID, events.Payload{
			"milestones":   len(plan.Milestones),
			"tasks":        len(plan.Tasks),
			"dependencies": len(plan.Dependencies),
		}); err != nil {
			return err
		}

		for _, m := range plan.Milestones {
			hm, err := e.Repo.GetMilestone(ctx, tx, projectID, m.ID)
			if err != nil {
				return err
			}
			res.Milestones = append(res.Milestones, hm)
		}
		for _, t := range plan.Tasks {
			ht, err := e.Repo.GetTask(ctx, tx, projectID, t.ID)
			if err != nil {
				return err
			}
			res.Tasks = append(res.Tasks, ht)
		}
		return nil
	})
	if err != nil {
		return PlanResult{}, domain.Effects{}, err
	}
	fx.TasksCreated = append(fx.TasksCreated, res.Tasks...)
	ctxlog.FromContext(ctx).Info("plan committed", "project_id", projectID, "milestones", len(res.Milestones), "tasks", len(res.Tasks))
	return res, fx, nil
}

// holdsRole reports whether userID is an active member of projectID holding
// role, or any role when role is nil.
func (e Engine) holdsRole(ctx context.Context, tx *sql.Tx, projectID, userID string, role *string) (bool, error) {
	m, err := e.Repo.GetMember(ctx, tx, projectID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Active() && (role == nil || m.Role == *role), nil
}
