package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/repo"
)

func registerProjects(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		Description:   "The caller joins the new project as its first admin.",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		Body CreateProjectRequest
	}) (*out[domain.Project], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		p, err := a.engine.CreateProject(ctx, engine.ProjectInput{
			ID:          in.Body.ID,
			Name:        in.Body.Name,
			Description: in.Body.Description,
			CreatorRole: in.Body.Role,
			CreatorKind: domain.MemberKind(in.Body.Kind),
		}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Project]{Body: p}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*out[[]domain.Project], error) {
		items, err := a.engine.ListProjects(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Project]{Body: nonNil(items)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *projectPath) (*out[domain.Project], error) {
		p, err := a.engine.GetProject(ctx, in.ProjectID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Project]{Body: p}, nil
	})
}

func registerMembers(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/members",
		Summary:     "List members",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		ProjectID   string `path:"project_id"`
		IncludeLeft bool   `query:"include_left"`
	}) (*out[[]domain.Member], error) {
		items, err := a.engine.ListMembers(ctx, in.ProjectID, in.IncludeLeft)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Member]{Body: nonNil(items)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID:   "add-member",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/members",
		Summary:       "Add or re-activate a member",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		Body      AddMemberRequest
	}) (*out[domain.Member], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := a.engine.AddMember(ctx, in.ProjectID, engine.MemberInput{
			UserID:  in.Body.UserID,
			Role:    in.Body.Role,
			Kind:    domain.MemberKind(in.Body.Kind),
			IsAdmin: in.Body.IsAdmin,
		}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Member]{Body: m}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "leave-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/members/{user_id}/leave",
		Summary:     "Leave a project, or remove a member",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		UserID    string `path:"user_id"`
	}) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.LeaveProject(ctx, in.ProjectID, in.UserID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}

func registerEvents(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "Audit log, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		ProjectID  string `path:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Before     int64  `query:"before" doc:"Only events with a smaller id"`
		Limit      int    `query:"limit"`
	}) (*out[[]domain.Event], error) {
		items, err := a.engine.ListEvents(ctx, repo.EventFilter{
			ProjectID:  in.ProjectID,
			Type:       in.Type,
			EntityKind: in.EntityKind,
			EntityID:   in.EntityID,
			Before:     in.Before,
			Limit:      normalizeLimit(in.Limit),
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Event]{Body: nonNil(items)}, nil
	})
}
