package repo

import (
	"context"
	"database/sql"

	"crewline/internal/domain"
)

const milestoneSelect = `SELECT m.id,m.project_id,m.title,m.description,m.status,m.order_index,m.target_date,m.created_at,m.created_by,
(SELECT COUNT(*) FROM tasks t WHERE t.milestone_id=m.id),
(SELECT COUNT(*) FROM tasks t WHERE t.milestone_id=m.id AND t.status='Done')
FROM milestones m`

func scanMilestone(s scanner) (domain.Milestone, error) {
	var m domain.Milestone
	var target sql.NullString
	err := s.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.Status, &m.OrderIndex, &target, &m.CreatedAt, &m.CreatedBy,
		&m.TaskCount, &m.CompletedTaskCount)
	m.TargetDate = ptr(target)
	return m, err
}

func (r Repo) InsertMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO milestones(id,project_id,title,description,status,order_index,target_date,created_at,created_by) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Title, m.Description, m.Status, m.OrderIndex, nullableStringPtr(m.TargetDate), m.CreatedAt, m.CreatedBy)
	return translate(err, "insert milestone")
}

// UpdateMilestone writes the mutable fields; order is changed through ApplyMoves.
func (r Repo) UpdateMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE milestones SET title=?, description=?, status=?, target_date=? WHERE id=? AND project_id=?`,
		m.Title, m.Description, m.Status, nullableStringPtr(m.TargetDate), m.ID, m.ProjectID)
	if err != nil {
		return translate(err, "update milestone")
	}
	return affectedOne(res, "milestone "+m.ID)
}

// DeleteMilestone removes the milestone; member tasks keep existing with
// milestone_id cleared by the foreign key.
func (r Repo) DeleteMilestone(ctx context.Context, tx *sql.Tx, projectID, id string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM milestones WHERE id=? AND project_id=?`, id, projectID)
	if err != nil {
		return translate(err, "delete milestone")
	}
	return affectedOne(res, "milestone "+id)
}

func (r Repo) GetMilestone(ctx context.Context, tx *sql.Tx, projectID, id string) (domain.Milestone, error) {
	m, err := scanMilestone(r.conn(tx).QueryRowContext(ctx, milestoneSelect+` WHERE m.id=? AND m.project_id=?`, id, projectID))
	if err != nil {
		return m, translate(err, "milestone "+id)
	}
	return m, nil
}

func (r Repo) ListMilestones(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Milestone, error) {
	rows, err := r.conn(tx).QueryContext(ctx, milestoneSelect+` WHERE m.project_id=? ORDER BY m.order_index`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
