package repo

import (
	"context"
	"database/sql"

	"crewline/internal/domain"
)

func (r Repo) InsertReference(ctx context.Context, tx *sql.Tx, ref domain.Reference) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO task_references(id,task_id,type,url,title,created_at) VALUES (?,?,?,?,?,?)`,
		ref.ID, ref.TaskID, ref.Type, ref.URL, ref.Title, ref.CreatedAt)
	return translate(err, "insert reference")
}

func (r Repo) DeleteReference(ctx context.Context, tx *sql.Tx, taskID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM task_references WHERE id=? AND task_id=?`, id, taskID)
	if err != nil {
		return translate(err, "delete reference")
	}
	return affectedOne(res, "reference "+id)
}

func (r Repo) ListReferences(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Reference, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT id,task_id,type,url,title,created_at FROM task_references WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Reference
	for rows.Next() {
		var ref domain.Reference
		if err := rows.Scan(&ref.ID, &ref.TaskID, &ref.Type, &ref.URL, &ref.Title, &ref.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ref)
	}
	return res, rows.Err()
}
