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

type SubtaskInput struct {
	Title       string
	Description string
}

type SubtaskPatch struct {
	Title       *string
	Description *string
}

func (e Engine) CreateSubtask(ctx context.Context, projectID, taskID string, in SubtaskInput, actorID string) (domain.Subtask, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Member); err != nil {
		return domain.Subtask{}, err
	}
	title, err := requireTitle(in.Title)
	if err != nil {
		return domain.Subtask{}, err
	}
	st := domain.Subtask{ID: newID(), TaskID: taskID, Title: title, Description: in.Description, CreatedBy: actorID}
	err = e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		last, err := e.Repo.MaxOrderIndex(ctx, tx, repo.SubtaskList(taskID))
		if err != nil {
			return err
		}
		st.OrderIndex = last + 1
		if err := e.Repo.InsertSubtask(ctx, tx, st); err != nil {
			return err
		}
		return e.append(ctx, tx, events.SubtaskCreated, projectID, "subtask", st.ID, actorID, events.Payload{"task_id": taskID, "title": st.Title})
	})
	return st, err
}

func (e Engine) UpdateSubtask(ctx context.Context, projectID, taskID, id string, patch SubtaskPatch, actorID string) (domain.Subtask, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Member); err != nil {
		return domain.Subtask{}, err
	}
	var st domain.Subtask
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		var err error
		if st, err = e.Repo.GetSubtask(ctx, tx, taskID, id); err != nil {
			return err
		}
		if patch.Title != nil {
			if st.Title, err = requireTitle(*patch.Title); err != nil {
				return err
			}
		}
		if patch.Description != nil {
			st.Description = *patch.Description
		}
		if err := e.Repo.UpdateSubtask(ctx, tx, st); err != nil {
			return err
		}
		return e.append(ctx, tx, events.SubtaskUpdated, projectID, "subtask", id, actorID, events.Payload{"task_id": taskID})
	})
	return st, err
}

// ToggleSubtask sets isDone. Setting the current value again is a no-op
// that keeps the original completed_at.
func (e Engine) ToggleSubtask(ctx context.Context, projectID, taskID, id string, isDone bool, actorID string) (domain.Subtask, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Member); err != nil {
		return domain.Subtask{}, err
	}
	var st domain.Subtask
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		var err error
		if st, err = e.Repo.GetSubtask(ctx, tx, taskID, id); err != nil {
			return err
		}
		if st.IsDone == isDone {
			return nil
		}
		st.IsDone = isDone
		st.CompletedAt = nil
		if isDone {
			now := e.stamp()
			st.CompletedAt = &now
		}
		if err := e.Repo.UpdateSubtask(ctx, tx, st); err != nil {
			return err
		}
		return e.append(ctx, tx, events.SubtaskToggled, projectID, "subtask", id, actorID, events.Payload{"task_id": taskID, "is_done": isDone})
	})
	return st, err
}

func (e Engine) ReorderSubtask(ctx context.Context, projectID, taskID, id string, newIndex int, actorID string) (domain.Subtask, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Member); err != nil {
		return domain.Subtask{}, err
	}
	var st domain.Subtask
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		scope := repo.SubtaskList(taskID)
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
		if st, err = e.Repo.GetSubtask(ctx, tx, taskID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.SubtaskReordered, projectID, "subtask", id, actorID, events.Payload{"task_id": taskID, "order_index": st.OrderIndex})
	})
	return st, err
}

func (e Engine) DeleteSubtask(ctx context.Context, projectID, taskID, id, actorID string) error {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Member); err != nil {
		return err
	}
	return e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		if err := e.Repo.DeleteSubtask(ctx, tx, taskID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.SubtaskDeleted, projectID, "subtask", id, actorID, events.Payload{"task_id": taskID})
	})
}
