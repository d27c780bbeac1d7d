package repo

import (
	"context"
	"database/sql"

	"crewline/internal/domain"
)

const subtaskColumns = `id,task_id,title,description,is_done,order_index,completed_at,created_by`

func scanSubtask(s scanner) (domain.Subtask, error) {
	var st domain.Subtask
	var done int
	var completedAt sql.NullString
	err := s.Scan(&st.ID, &st.TaskID, &st.Title, &st.Description, &done, &st.OrderIndex, &completedAt, &st.CreatedBy)
	st.IsDone = done != 0
	st.CompletedAt = ptr(completedAt)
	return st, err
}

func (r Repo) InsertSubtask(ctx context.Context, tx *sql.Tx, st domain.Subtask) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO subtasks(`+subtaskColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		st.ID, st.TaskID, st.Title, st.Description, boolInt(st.IsDone), st.OrderIndex, nullableStringPtr(st.CompletedAt), st.CreatedBy)
	return translate(err, "insert subtask")
}

func (r Repo) UpdateSubtask(ctx context.Context, tx *sql.Tx, st domain.Subtask) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE subtasks SET title=?, description=?, is_done=?, completed_at=? WHERE id=? AND task_id=?`,
		st.Title, st.Description, boolInt(st.IsDone), nullableStringPtr(st.CompletedAt), st.ID, st.TaskID)
	if err != nil {
		return translate(err, "update subtask")
	}
	return affectedOne(res, "subtask "+st.ID)
}

func (r Repo) DeleteSubtask(ctx context.Context, tx *sql.Tx, taskID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM subtasks WHERE id=? AND task_id=?`, id, taskID)
	if err != nil {
		return translate(err, "delete subtask")
	}
	return affectedOne(res, "subtask "+id)
}

func (r Repo) GetSubtask(ctx context.Context, tx *sql.Tx, taskID, id string) (domain.Subtask, error) {
	st, err := scanSubtask(r.conn(tx).QueryRowContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id=? AND task_id=?`, id, taskID))
	if err != nil {
		return st, translate(err, "subtask "+id)
	}
	return st, nil
}

func (r Repo) ListSubtasks(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Subtask, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE task_id=? ORDER BY order_index`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subtask
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}
