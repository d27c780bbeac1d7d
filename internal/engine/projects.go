package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
)

type ProjectInput struct {
	ID          string
	Name        string
	Description string
	// The creator joins as an admin member with this role and kind.
	CreatorRole string
	CreatorKind domain.MemberKind
}

// CreateProject inserts a project and makes actorID its first admin.
func (e Engine) CreateProject(ctx context.Context, in ProjectInput, actorID string) (domain.Project, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.Project{}, auth.ForbiddenError{}
	}
	name, err := requireTitle(in.Name)
	if err != nil {
		return domain.Project{}, fmt.Errorf("project name: %w", err)
	}
	kind := in.CreatorKind
	if kind == "" {
		kind = domain.KindNonprofit
	}
	if !kind.Valid() {
		return domain.Project{}, fmt.Errorf("%w: unknown member kind %q", domain.ErrInvalidState, kind)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = newID()
	}
	now := e.stamp()
	p := domain.Project{ID: id, Name: name, Description: in.Description, Status: "active", CreatedAt: now}
	err = e.mutate(ctx, id, func(tx *sql.Tx) error {
		if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
			return err
		}
		m := domain.Member{ProjectID: id, UserID: actorID, Role: in.CreatorRole, Kind: kind, IsAdmin: true, JoinedAt: now}
		if err := e.Repo.UpsertMember(ctx, tx, m); err != nil {
			return err
		}
		return e.append(ctx, tx, events.ProjectCreated, id, "project", id, actorID, events.Payload{"name": name})
	})
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, nil, id)
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx)
}

type MemberInput struct {
	UserID  string
	Role    string
	Kind    domain.MemberKind
	IsAdmin bool
}

// AddMember adds or re-activates a member. Requires an admin or mentor.
func (e Engine) AddMember(ctx context.Context, projectID string, in MemberInput, actorID string) (domain.Member, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Member{}, err
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return domain.Member{}, fmt.Errorf("%w: user_id is required", domain.ErrInvalidState)
	}
	if !in.Kind.Valid() {
		return domain.Member{}, fmt.Errorf("%w: unknown member kind %q", domain.ErrInvalidState, in.Kind)
	}
	var m domain.Member
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		m = domain.Member{ProjectID: projectID, UserID: in.UserID, Role: strings.TrimSpace(in.Role), Kind: in.Kind, IsAdmin: in.IsAdmin, JoinedAt: e.stamp()}
		if err := e.Repo.UpsertMember(ctx, tx, m); err != nil {
			return err
		}
		return e.append(ctx, tx, events.MemberJoined, projectID, "member", m.UserID, actorID, events.Payload{"role": m.Role, "kind": m.Kind, "is_admin": m.IsAdmin})
	})
	return m, err
}

// LeaveProject marks userID as having left. Members may leave themselves;
// removing someone else requires an admin or mentor.
func (e Engine) LeaveProject(ctx context.Context, projectID, userID, actorID string) error {
	need := auth.Manager
	if userID == actorID {
		need = auth.Member
	}
	if _, err := e.authorize(ctx, projectID, actorID, need); err != nil {
		return err
	}
	return e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.MarkMemberLeft(ctx, tx, projectID, userID, e.stamp()); err != nil {
			return err
		}
		return e.append(ctx, tx, events.MemberLeft, projectID, "member", userID, actorID, nil)
	})
}

func (e Engine) ListMembers(ctx context.Context, projectID string, includeLeft bool) ([]domain.Member, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListMembers(ctx, nil, projectID, !includeLeft)
}
