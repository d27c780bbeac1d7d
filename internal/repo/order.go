package repo

import (
	"context"
	"database/sql"
	"fmt"

	"crewline/internal/taskstate"
)

// OrderScope names one ordered collection: the task board or milestone list
// of a project, or the subtask list of a task.
type OrderScope struct {
	table  string
	column string
	owner  string
}

func TaskBoard(projectID string) OrderScope {
	return OrderScope{table: "tasks", column: "project_id", owner: projectID}
}

func MilestoneList(projectID string) OrderScope {
	return OrderScope{table: "milestones", column: "project_id", owner: projectID}
}

func SubtaskList(taskID string) OrderScope {
	return OrderScope{table: "subtasks", column: "task_id", owner: taskID}
}

// Slots returns the ordered ids and indices of the scope.
func (r Repo) Slots(ctx context.Context, tx *sql.Tx, s OrderScope) ([]taskstate.Slot, error) {
	rows, err := r.conn(tx).QueryContext(ctx, fmt.Sprintf(`SELECT id,order_index FROM %s WHERE %s=? ORDER BY order_index`, s.table, s.column), s.owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []taskstate.Slot
	for rows.Next() {
		var sl taskstate.Slot
		if err := rows.Scan(&sl.ID, &sl.Index); err != nil {
			return nil, err
		}
		res = append(res, sl)
	}
	return res, rows.Err()
}

// MaxOrderIndex returns the highest index in scope, or -1 when empty.
func (r Repo) MaxOrderIndex(ctx context.Context, tx *sql.Tx, s OrderScope) (int, error) {
	var last int
	err := r.conn(tx).QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(order_index),-1) FROM %s WHERE %s=?`, s.table, s.column), s.owner).Scan(&last)
	return last, err
}

// ApplyMoves rewrites order indices in two passes so the unique index on
// (owner, order_index) never sees a transient duplicate.
func (r Repo) ApplyMoves(ctx context.Context, tx *sql.Tx, s OrderScope, moves []taskstate.Move) error {
	if len(moves) == 0 {
		return nil
	}
	q := r.conn(tx)
	stmt := fmt.Sprintf(`UPDATE %s SET order_index=? WHERE id=? AND %s=?`, s.table, s.column)
	for i, m := range moves {
		if _, err := q.ExecContext(ctx, stmt, -(i + 1), m.ID, s.owner); err != nil {
			return translate(err, "park order index")
		}
	}
	for _, m := range moves {
		if _, err := q.ExecContext(ctx, stmt, m.To, m.ID, s.owner); err != nil {
			return translate(err, "set order index")
		}
	}
	return nil
}
