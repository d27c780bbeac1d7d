package engine

import (
	"context"
	"database/sql"

	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
	"crewline/internal/repo"
	"crewline/internal/taskstate"
)

type MilestoneInput struct {
	Title       string
	Description string
	TargetDate  *string
	// OrderIndex, when set, is an insert position; later milestones shift down.
	OrderIndex *int
}

type MilestonePatch struct {
	Title       *string
	Description *string
	// An empty string clears the target date.
	TargetDate *string
}

func (e Engine) CreateMilestone(ctx context.Context, projectID string, in MilestoneInput, actorID string) (domain.Milestone, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Milestone{}, err
	}
	title, err := requireTitle(in.Title)
	if err != nil {
		return domain.Milestone{}, err
	}
	target, err := normalizeTime(in.TargetDate)
	if err != nil {
		return domain.Milestone{}, err
	}
	m := domain.Milestone{
		ID:          newID(),
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      domain.MilestonePlanned,
		TargetDate:  target,
		CreatedAt:   e.stamp(),
		CreatedBy:   actorID,
	}
	err = e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		scope := repo.MilestoneList(projectID)
		slots, err := e.Repo.Slots(ctx, tx, scope)
		if err != nil {
			return err
		}
		at := taskstate.NextIndex(slots)
		if in.OrderIndex != nil {
			var moves []taskstate.Move
			at, moves = taskstate.Insert(slots, *in.OrderIndex)
			if err := e.Repo.ApplyMoves(ctx, tx, scope, moves); err != nil {
				return err
			}
		}
		m.OrderIndex = at
		if err := e.Repo.InsertMilestone(ctx, tx, m); err != nil {
			return err
		}
		return e.append(ctx, tx, events.MilestoneCreated, projectID, "milestone", m.ID, actorID, events.Payload{"title": m.Title, "order_index": m.OrderIndex})
	})
	return m, err
}

func (e Engine) UpdateMilestone(ctx context.Context, projectID, id string, patch MilestonePatch, actorID string) (domain.Milestone, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Milestone{}, err
	}
	var m domain.Milestone
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		var err error
		if m, err = e.Repo.GetMilestone(ctx, tx, projectID, id); err != nil {
			return err
		}
		changed := events.Payload{}
		if patch.Title != nil {
			if m.Title, err = requireTitle(*patch.Title); err != nil {
				return err
			}
			changed["title"] = m.Title
		}
		if patch.Description != nil {
			m.Description = *patch.Description
			changed["description"] = m.Description
		}
		if patch.TargetDate != nil {
			if m.TargetDate, err = normalizeTime(patch.TargetDate); err != nil {
				return err
			}
			changed["target_date"] = m.TargetDate
		}
		if err := e.Repo.UpdateMilestone(ctx, tx, m); err != nil {
			return err
		}
		return e.append(ctx, tx, events.MilestoneUpdated, projectID, "milestone", id, actorID, changed)
	})
	return m, err
}

// ChangeMilestoneStatus applies a milestone lifecycle move. Moving to
// Completed reports the milestone in Effects.
func (e Engine) ChangeMilestoneStatus(ctx context.Context, projectID, id string, status domain.MilestoneStatus, actorID string) (domain.Milestone, domain.Effects, error) {
	var fx domain.Effects
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Milestone{}, fx, err
	}
	var m domain.Milestone
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		var err error
		if m, err = e.Repo.GetMilestone(ctx, tx, projectID, id); err != nil {
			return err
		}
		out, err := taskstate.MilestoneTransition(m.Status, status)
		if err != nil {
			return err
		}
		if !out.Changed {
			return nil
		}
		from := m.Status
		m.Status = out.Status
		if err := e.Repo.UpdateMilestone(ctx, tx, m); err != nil {
			return err
		}
		if out.Completed {
			fx.MilestonesCompleted = append(fx.MilestonesCompleted, m)
		}
		return e.append(ctx, tx, events.MilestoneStatus, projectID, "milestone", id, actorID, events.Payload{"from": from, "to": m.Status})
	})
	if err != nil {
		return domain.Milestone{}, domain.Effects{}, err
	}
	return m, fx, nil
}

func (e Engine) ReorderMilestone(ctx context.Context, projectID, id string, newIndex int, actorID string) (domain.Milestone, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Milestone{}, err
	}
	var m domain.Milestone
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetMilestone(ctx, tx, projectID, id); err != nil {
			return err
		}
		scope := repo.MilestoneList(projectID)
		slots, err := e.Repo.Slots(ctx, tx, scope)
		if err != nil {
			return err
		}
		moves, err := taskstate.Reorder(slots, id, newIndex)
		if err != nil {
			return err
		}
		if err := e.Repo.ApplyMoves(ctx, tx, scope, moves); err != nil {
			return err
		}
		if m, err = e.Repo.GetMilestone(ctx, tx, projectID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.MilestoneReordered, projectID, "milestone", id, actorID, events.Payload{"order_index": m.OrderIndex, "shifted": len(moves)})
	})
	return m, err
}

// DeleteMilestone removes the milestone and detaches its tasks.
func (e Engine) DeleteMilestone(ctx context.Context, projectID, id, actorID string) error {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return err
	}
	return e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		m, err := e.Repo.GetMilestone(ctx, tx, projectID, id)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteMilestone(ctx, tx, projectID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.MilestoneDeleted, projectID, "milestone", id, actorID, events.Payload{"title": m.Title, "detached_tasks": m.TaskCount})
	})
}

func (e Engine) GetMilestone(ctx context.Context, projectID, id string) (domain.Milestone, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return domain.Milestone{}, err
	}
	return e.Repo.GetMilestone(ctx, nil, projectID, id)
}

func (e Engine) ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListMilestones(ctx, nil, projectID)
}
