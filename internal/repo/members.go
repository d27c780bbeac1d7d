package repo

import (
	"context"
	"database/sql"

	"crewline/internal/domain"
)

const memberColumns = `project_id,user_id,role,kind,is_admin,joined_at,left_at`

func scanMember(s scanner) (domain.Member, error) {
	var m domain.Member
	var isAdmin int
	var leftAt sql.NullString
	if err := s.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.Kind, &isAdmin, &m.JoinedAt, &leftAt); err != nil {
		return m, err
	}
	m.IsAdmin = isAdmin != 0
	m.LeftAt = ptr(leftAt)
	return m, nil
}

// UpsertMember adds a member or re-activates one who left.
func (r Repo) UpsertMember(ctx context.Context, tx *sql.Tx, m domain.Member) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO project_members(project_id,user_id,role,kind,is_admin,joined_at,left_at) VALUES (?,?,?,?,?,?,NULL)
ON CONFLICT(project_id,user_id) DO UPDATE SET role=excluded.role, kind=excluded.kind, is_admin=excluded.is_admin, joined_at=excluded.joined_at, left_at=NULL`,
		m.ProjectID, m.UserID, m.Role, m.Kind, boolInt(m.IsAdmin), m.JoinedAt)
	return translate(err, "upsert member")
}

func (r Repo) MarkMemberLeft(ctx context.Context, tx *sql.Tx, projectID, userID, at string) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE project_members SET left_at=? WHERE project_id=? AND user_id=? AND left_at IS NULL`, at, projectID, userID)
	if err != nil {
		return translate(err, "leave project")
	}
	return affectedOne(res, "active member "+userID)
}

func (r Repo) GetMember(ctx context.Context, tx *sql.Tx, projectID, userID string) (domain.Member, error) {
	m, err := scanMember(r.conn(tx).QueryRowContext(ctx, `SELECT `+memberColumns+` FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID))
	if err != nil {
		return m, translate(err, "member "+userID)
	}
	return m, nil
}

// ListMembers returns members in join order; activeOnly drops those who left.
func (r Repo) ListMembers(ctx context.Context, tx *sql.Tx, projectID string, activeOnly bool) ([]domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM project_members WHERE project_id=?`
	if activeOnly {
		query += ` AND left_at IS NULL`
	}
	query += ` ORDER BY joined_at, user_id`
	rows, err := r.conn(tx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
