package repo

import (
	"context"
	"database/sql"

	"crewline/internal/depgraph"
	"crewline/internal/domain"
)

func (r Repo) InsertDependency(ctx context.Context, tx *sql.Tx, d domain.Dependency) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO task_dependencies(task_id,depends_on_task_id,created_at,created_by) VALUES (?,?,?,?)`,
		d.TaskID, d.DependsOnTaskID, d.CreatedAt, d.CreatedBy)
	return translate(err, "insert dependency")
}

func (r Repo) DeleteDependency(ctx context.Context, tx *sql.Tx, taskID, dependsOn string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id=? AND depends_on_task_id=?`, taskID, dependsOn)
	if err != nil {
		return translate(err, "delete dependency")
	}
	return affectedOne(res, "dependency "+taskID+" -> "+dependsOn)
}

func (r Repo) ListDependencies(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Dependency, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT task_id,depends_on_task_id,created_at,created_by FROM task_dependencies WHERE task_id=? ORDER BY created_at, depends_on_task_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Dependency
	for rows.Next() {
		var d domain.Dependency
		if err := rows.Scan(&d.TaskID, &d.DependsOnTaskID, &d.CreatedAt, &d.CreatedBy); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) ListDependencyIDs(ctx context.Context, tx *sql.Tx, taskID string) ([]string, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT depends_on_task_id FROM task_dependencies WHERE task_id=? ORDER BY depends_on_task_id`, taskID)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

// DependentIDs lists the tasks that depend on taskID.
func (r Repo) DependentIDs(ctx context.Context, tx *sql.Tx, taskID string) ([]string, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT task_id FROM task_dependencies WHERE depends_on_task_id=? ORDER BY task_id`, taskID)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

// LoadGraph reads the project's task ids and edges into an arena graph.
func (r Repo) LoadGraph(ctx context.Context, tx *sql.Tx, projectID string) (*depgraph.Graph, error) {
	q := r.conn(tx)
	idRows, err := q.QueryContext(ctx, `SELECT id FROM tasks WHERE project_id=? ORDER BY order_index`, projectID)
	if err != nil {
		return nil, err
	}
	ids, err := scanStrings(idRows)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT d.task_id,d.depends_on_task_id FROM task_dependencies d JOIN tasks t ON t.id=d.task_id WHERE t.project_id=?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []depgraph.Edge
	for rows.Next() {
		var e depgraph.Edge
		if err := rows.Scan(&e.TaskID, &e.DependsOnID); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return depgraph.New(ids, edges)
}
