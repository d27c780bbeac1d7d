package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
	"crewline/internal/repo"
	"crewline/internal/taskstate"
)

type TaskInput struct {
	Title          string
	Description    string
	Type           domain.TaskType
	Priority       domain.Priority
	MilestoneID    *string
	AssignedRole   *string
	AssignedUserID *string
	DueAt          *string
	// OrderIndex, when set, is an insert position on the board; tasks at or
	// after it shift down by one. Unset appends after the current maximum.
	OrderIndex *int
	DependsOn  []string
	Subtasks   []SubtaskInput
}

// TaskPatch holds optional field updates. For the pointer-to-string
// references an empty string clears the field.
type TaskPatch struct {
	Title          *string
	Description    *string
	Type           *domain.TaskType
	Priority       *domain.Priority
	MilestoneID    *string
	AssignedRole   *string
	AssignedUserID *string
	DueAt          *string
}

func normalizeType(t domain.TaskType) (domain.TaskType, error) {
	if t == "" {
		return domain.TypeFeature, nil
	}
	return domain.ParseTaskType(string(t))
}

func normalizePriority(p domain.Priority) (domain.Priority, error) {
	if p == "" {
		return domain.PriorityMedium, nil
	}
	return domain.ParsePriority(string(p))
}

// resolveAssignee checks that an assigned user is an active member and
// fills or checks the role label against the member's role.
func (e Engine) resolveAssignee(ctx context.Context, tx *sql.Tx, projectID string, role, userID *string) (*string, *string, error) {
	role, userID = optionalPtr(role), optionalPtr(userID)
	if userID == nil {
		return role, nil, nil
	}
	m, err := e.Repo.GetMember(ctx, tx, projectID, *userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	if err != nil || !m.Active() {
		return nil, nil, fmt.Errorf("%w: %s is not an active member of the project", domain.ErrInvalidState, *userID)
	}
	if role == nil {
		return optionalString(m.Role), userID, nil
	}
	if m.Role != *role {
		return nil, nil, fmt.Errorf("%w: %s holds role %q, not %q", domain.ErrInvalidState, *userID, m.Role, *role)
	}
	return role, userID, nil
}

func optionalPtr(v *string) *string {
	if v == nil {
		return nil
	}
	return optionalString(*v)
}

// CreateTask adds a task to the board with its inline subtasks and
// dependencies in one transaction.
func (e Engine) CreateTask(ctx context.Context, projectID string, in TaskInput, actorID string) (domain.Task, domain.Effects, error) {
	var fx domain.Effects
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Task{}, fx, err
	}
	title, err := requireTitle(in.Title)
	if err != nil {
		return domain.Task{}, fx, err
	}
	typ, err := normalizeType(in.Type)
	if err != nil {
		return domain.Task{}, fx, err
	}
	prio, err := normalizePriority(in.Priority)
	if err != nil {
		return domain.Task{}, fx, err
	}
	due, err := normalizeTime(in.DueAt)
	if err != nil {
		return domain.Task{}, fx, err
	}
	subtasks := make([]domain.Subtask, 0, len(in.Subtasks))
	for _, s := range in.Subtasks {
		st, err := requireTitle(s.Title)
		if err != nil {
			return domain.Task{}, fx, fmt.Errorf("subtask: %w", err)
		}
		subtasks = append(subtasks, domain.Subtask{Title: st, Description: s.Description})
	}

	now := e.stamp()
	t := domain.Task{
		ID:          newID(),
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Type:        typ,
		Status:      domain.StatusTodo,
		Priority:    prio,
		DueAt:       due,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   actorID,
	}
	var created domain.Task
	err = e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if mid := optionalPtr(in.MilestoneID); mid != nil {
			if _, err := e.Repo.GetMilestone(ctx, tx, projectID, *mid); err != nil {
				return err
			}
			t.MilestoneID = mid
		}
		var err error
		if t.AssignedRole, t.AssignedUserID, err = e.resolveAssignee(ctx, tx, projectID, in.AssignedRole, in.AssignedUserID); err != nil {
			return err
		}
		scope := repo.TaskBoard(projectID)
		slots, err := e.Repo.Slots(ctx, tx, scope)
		if err != nil {
			return err
		}
		t.OrderIndex = taskstate.NextIndex(slots)
		if in.OrderIndex != nil {
			var moves []taskstate.Move
			t.OrderIndex, moves = taskstate.Insert(slots, *in.OrderIndex)
			if err := e.Repo.ApplyMoves(ctx, tx, scope, moves); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return err
		}
		for i, st := range subtasks {
			st.ID = newID()
			st.TaskID = t.ID
			st.OrderIndex = i
			st.CreatedBy = actorID
			if err := e.Repo.InsertSubtask(ctx, tx, st); err != nil {
				return err
			}
		}
		if len(in.DependsOn) > 0 {
			g, err := e.Repo.LoadGraph(ctx, tx, projectID)
			if err != nil {
				return err
			}
			for _, dep := range in.DependsOn {
				if err := g.AddEdge(t.ID, dep); err != nil {
					return err
				}
				if err := e.Repo.InsertDependency(ctx, tx, domain.Dependency{TaskID: t.ID, DependsOnTaskID: dep, CreatedAt: now, CreatedBy: actorID}); err != nil {
					return err
				}
			}
		}
		if err := e.append(ctx, tx, events.TaskCreated, projectID, "task", t.ID, actorID, events.Payload{
			"title":       t.Title,
			"order_index": t.OrderIndex,
			"subtasks":    len(subtasks),
			"depends_on":  in.DependsOn,
		}); err != nil {
			return err
		}
		created, err = e.Repo.GetTask(ctx, tx, projectID, t.ID)
		return err
	})
	if err != nil {
		return domain.Task{}, domain.Effects{}, err
	}
	fx.TasksCreated = append(fx.TasksCreated, created)
	return created, fx, nil
}

func (e Engine) UpdateTask(ctx context.Context, projectID, id string, patch TaskPatch, actorID string) (domain.Task, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		var err error
		if t, err = e.Repo.GetTask(ctx, tx, projectID, id); err != nil {
			return err
		}
		changed := events.Payload{}
		if patch.Title != nil {
			if t.Title, err = requireTitle(*patch.Title); err != nil {
				return err
			}
			changed["title"] = t.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
			changed["description"] = true
		}
		if patch.Type != nil {
			if t.Type, err = domain.ParseTaskType(string(*patch.Type)); err != nil {
				return err
			}
			changed["type"] = t.Type
		}
		if patch.Priority != nil {
			if t.Priority, err = domain.ParsePriority(string(*patch.Priority)); err != nil {
				return err
			}
			changed["priority"] = t.Priority
		}
		if patch.MilestoneID != nil {
			t.MilestoneID = optionalPtr(patch.MilestoneID)
			if t.MilestoneID != nil {
				if _, err := e.Repo.GetMilestone(ctx, tx, projectID, *t.MilestoneID); err != nil {
					return err
				}
			}
			changed["milestone_id"] = t.MilestoneID
		}
		if patch.AssignedUserID != nil {
			role := t.AssignedRole
			if patch.AssignedRole != nil {
				role = patch.AssignedRole
			} else if optionalPtr(patch.AssignedUserID) != nil {
				role = nil
			}
			if t.AssignedRole, t.AssignedUserID, err = e.resolveAssignee(ctx, tx, projectID, role, patch.AssignedUserID); err != nil {
				return err
			}
			changed["assigned_user_id"] = t.AssignedUserID
			changed["assigned_role"] = t.AssignedRole
		} else if patch.AssignedRole != nil {
			t.AssignedRole = optionalPtr(patch.AssignedRole)
			changed["assigned_role"] = t.AssignedRole
		}
		if patch.DueAt != nil {
			if t.DueAt, err = normalizeTime(patch.DueAt); err != nil {
				return err
			}
			changed["due_at"] = t.DueAt
		}
		t.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		if err := e.append(ctx, tx, events.TaskUpdated, projectID, "task", id, actorID, changed); err != nil {
			return err
		}
		t, err = e.Repo.GetTask(ctx, tx, projectID, id)
		return err
	})
	return t, err
}

// DeleteTask removes a task with its subtasks, references and every edge
// touching it.
func (e Engine) DeleteTask(ctx context.Context, projectID, id, actorID string) error {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return err
	}
	return e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		t, err := e.Repo.GetTask(ctx, tx, projectID, id)
		if err != nil {
			return err
		}
		dependents, err := e.Repo.DependentIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteTask(ctx, tx, projectID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.TaskDeleted, projectID, "task", id, actorID, events.Payload{
			"title":      t.Title,
			"depends_on": t.DependsOn,
			"dependents": dependents,
			"subtasks":   len(t.Subtasks),
		})
	})
}

// ReorderTask moves a task to newIndex on the board, shifting only the
// tasks between its old and new position.
func (e Engine) ReorderTask(ctx context.Context, projectID, id string, newIndex int, actorID string) (domain.Task, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		scope := repo.TaskBoard(projectID)
		slots, err := e.Repo.Slots(ctx, tx, scope)
		if err != nil {
			return err
		}
		moves, err := taskstate.Reorder(slots, id, newIndex)
		if err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
		if err := e.Repo.ApplyMoves(ctx, tx, scope, moves); err != nil {
			return err
		}
		if t, err = e.Repo.GetTask(ctx, tx, projectID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.TaskReordered, projectID, "task", id, actorID, events.Payload{"order_index": t.OrderIndex, "shifted": len(moves)})
	})
	return t, err
}

// ChangeTaskStatus runs the status state machine against the stored task
// and its dependency state. Completion and unblocking are reported in Effects.
func (e Engine) ChangeTaskStatus(ctx context.Context, projectID, id string, status domain.TaskStatus, actorID string) (domain.Task, domain.Effects, error) {
	var fx domain.Effects
	if _, err := e.authorize(ctx, projectID, actorID, auth.Member); err != nil {
		return domain.Task{}, fx, err
	}
	var t domain.Task
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		var err error
		if t, err = e.Repo.GetTask(ctx, tx, projectID, id); err != nil {
			return err
		}
		satisfied, err := e.dependenciesSatisfied(ctx, tx, projectID, id)
		if err != nil {
			return err
		}
		out, err := taskstate.Transition(t.Status, status, t.IsBlocked, satisfied)
		if err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
		if !out.Changed {
			return nil
		}
		from := t.Status
		now := e.stamp()
		t.Status = out.Status
		t.IsBlocked = out.IsBlocked
		t.UpdatedAt = now
		switch {
		case out.Completed:
			t.CompletedAt = &now
		case t.Status != domain.StatusDone:
			t.CompletedAt = nil
		}
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		if err := e.append(ctx, tx, events.TaskStatus, projectID, "task", id, actorID, events.Payload{"from": from, "to": t.Status}); err != nil {
			return err
		}
		if t, err = e.Repo.GetTask(ctx, tx, projectID, id); err != nil {
			return err
		}
		if out.Completed {
			fx.TasksCompleted = append(fx.TasksCompleted, t)
		}
		if out.Unblocked {
			fx.TasksUnblocked = append(fx.TasksUnblocked, t)
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, domain.Effects{}, err
	}
	return t, fx, nil
}

// dependenciesSatisfied evaluates the Done gate for id against the graph and
// statuses as seen inside tx.
func (e Engine) dependenciesSatisfied(ctx context.Context, tx *sql.Tx, projectID, id string) (bool, error) {
	g, err := e.Repo.LoadGraph(ctx, tx, projectID)
	if err != nil {
		return false, err
	}
	statuses, err := e.Repo.TaskStatuses(ctx, tx, projectID)
	if err != nil {
		return false, err
	}
	return g.IsSatisfied(id, func(dep string) domain.TaskStatus { return statuses[dep] }), nil
}

func (e Engine) GetTask(ctx context.Context, projectID, id string) (domain.Task, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, nil, projectID, id)
}

type TaskListOptions struct {
	Status         string
	MilestoneID    string
	AssignedUserID string
	AssignedRole   string
}

// ListTasks returns the board in order, optionally filtered.
func (e Engine) ListTasks(ctx context.Context, projectID string, opts TaskListOptions) ([]domain.Task, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	f := repo.TaskFilters{
		ProjectID:      projectID,
		MilestoneID:    strings.TrimSpace(opts.MilestoneID),
		AssignedUserID: strings.TrimSpace(opts.AssignedUserID),
		AssignedRole:   strings.TrimSpace(opts.AssignedRole),
	}
	if opts.Status != "" {
		st, err := domain.ParseTaskStatus(opts.Status)
		if err != nil {
			return nil, err
		}
		f.Status = string(st)
	}
	return e.Repo.ListTasks(ctx, nil, f)
}
