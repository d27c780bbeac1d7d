package repo

import (
	"context"
	"database/sql"
	"strings"

	"crewline/internal/domain"
)

const taskSelect = `SELECT t.id,t.project_id,t.milestone_id,t.title,t.description,t.type,t.status,t.priority,t.is_blocked,t.order_index,
t.assigned_role,t.assigned_user_id,t.due_at,t.created_at,t.updated_at,t.completed_at,t.created_by,
(SELECT COUNT(*) FROM subtasks s WHERE s.task_id=t.id),
(SELECT COUNT(*) FROM subtasks s WHERE s.task_id=t.id AND s.is_done=1),
NOT EXISTS (SELECT 1 FROM task_dependencies d JOIN tasks dep ON dep.id=d.depends_on_task_id WHERE d.task_id=t.id AND dep.status<>'Done')
FROM tasks t`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var milestoneID, role, userID, dueAt, completedAt sql.NullString
	var blocked, satisfied int
	err := s.Scan(&t.ID, &t.ProjectID, &milestoneID, &t.Title, &t.Description, &t.Type, &t.Status, &t.Priority, &blocked, &t.OrderIndex,
		&role, &userID, &dueAt, &t.CreatedAt, &t.UpdatedAt, &completedAt, &t.CreatedBy,
		&t.SubtaskCount, &t.CompletedSubtaskCount, &satisfied)
	if err != nil {
		return t, err
	}
	t.IsBlocked = blocked != 0
	t.DependenciesSatisfied = satisfied != 0
	t.MilestoneID = ptr(milestoneID)
	t.AssignedRole = ptr(role)
	t.AssignedUserID = ptr(userID)
	t.DueAt = ptr(dueAt)
	t.CompletedAt = ptr(completedAt)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO tasks(id,project_id,milestone_id,title,description,type,status,priority,is_blocked,order_index,assigned_role,assigned_user_id,due_at,created_at,updated_at,completed_at,created_by)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, nullableStringPtr(t.MilestoneID), t.Title, t.Description, t.Type, t.Status, t.Priority, boolInt(t.IsBlocked), t.OrderIndex,
		nullableStringPtr(t.AssignedRole), nullableStringPtr(t.AssignedUserID), nullableStringPtr(t.DueAt), t.CreatedAt, t.UpdatedAt,
		nullableStringPtr(t.CompletedAt), t.CreatedBy)
	return translate(err, "insert task")
}

// UpdateTask writes every mutable column except order_index.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE tasks SET milestone_id=?, title=?, description=?, type=?, status=?, priority=?, is_blocked=?, assigned_role=?, assigned_user_id=?, due_at=?, updated_at=?, completed_at=? WHERE id=? AND project_id=?`,
		nullableStringPtr(t.MilestoneID), t.Title, t.Description, t.Type, t.Status, t.Priority, boolInt(t.IsBlocked),
		nullableStringPtr(t.AssignedRole), nullableStringPtr(t.AssignedUserID), nullableStringPtr(t.DueAt), t.UpdatedAt,
		nullableStringPtr(t.CompletedAt), t.ID, t.ProjectID)
	if err != nil {
		return translate(err, "update task")
	}
	return affectedOne(res, "task "+t.ID)
}

// DeleteTask removes the task; subtasks, references and edges in both
// directions go with it through ON DELETE CASCADE.
func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, projectID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND project_id=?`, id, projectID)
	if err != nil {
		return translate(err, "delete task")
	}
	return affectedOne(res, "task "+id)
}

// GetTask returns a fully hydrated task.
func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, projectID, id string) (domain.Task, error) {
	t, err := scanTask(r.conn(tx).QueryRowContext(ctx, taskSelect+` WHERE t.id=? AND t.project_id=?`, id, projectID))
	if err != nil {
		return t, translate(err, "task "+id)
	}
	if err := r.hydrate(ctx, tx, &t); err != nil {
		return t, err
	}
	return t, nil
}

func (r Repo) hydrate(ctx context.Context, tx *sql.Tx, t *domain.Task) error {
	var err error
	if t.Subtasks, err = r.ListSubtasks(ctx, tx, t.ID); err != nil {
		return err
	}
	if t.DependsOn, err = r.ListDependencyIDs(ctx, tx, t.ID); err != nil {
		return err
	}
	if t.References, err = r.ListReferences(ctx, tx, t.ID); err != nil {
		return err
	}
	if t.Subtasks == nil {
		t.Subtasks = []domain.Subtask{}
	}
	if t.DependsOn == nil {
		t.DependsOn = []string{}
	}
	return nil
}

type TaskFilters struct {
	ProjectID      string
	Status         string
	MilestoneID    string
	AssignedUserID string
	AssignedRole   string
}

// ListTasks returns hydrated tasks in board order.
func (r Repo) ListTasks(ctx context.Context, tx *sql.Tx, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"t.project_id=?"}
	args := []any{f.ProjectID}
	if f.Status != "" {
		clauses = append(clauses, "t.status=?")
		args = append(args, f.Status)
	}
	if f.MilestoneID != "" {
		clauses = append(clauses, "t.milestone_id=?")
		args = append(args, f.MilestoneID)
	}
	if f.AssignedUserID != "" {
		clauses = append(clauses, "t.assigned_user_id=?")
		args = append(args, f.AssignedUserID)
	}
	if f.AssignedRole != "" {
		clauses = append(clauses, "t.assigned_role=?")
		args = append(args, f.AssignedRole)
	}
	query := taskSelect + ` WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY t.order_index`
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range res {
		if err := r.hydrate(ctx, tx, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// TaskStatuses maps every task id in the project to its status.
func (r Repo) TaskStatuses(ctx context.Context, tx *sql.Tx, projectID string) (map[string]domain.TaskStatus, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT id,status FROM tasks WHERE project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]domain.TaskStatus{}
	for rows.Next() {
		var id string
		var st domain.TaskStatus
		if err := rows.Scan(&id, &st); err != nil {
			return nil, err
		}
		res[id] = st
	}
	return res, rows.Err()
}

// EnsureTask returns NotFound unless id is a task of projectID.
func (r Repo) EnsureTask(ctx context.Context, tx *sql.Tx, projectID, id string) error {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id=? AND project_id=?`, id, projectID).Scan(&n)
	return translate(err, "task "+id)
}
