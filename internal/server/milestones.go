package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"crewline/internal/domain"
	"crewline/internal/engine"
)

func registerMilestones(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/milestones",
		Summary:     "List milestones in order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *projectPath) (*out[[]domain.Milestone], error) {
		items, err := a.engine.ListMilestones(ctx, in.ProjectID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Milestone]{Body: nonNil(items)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID:   "create-milestone",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/milestones",
		Summary:       "Create milestone",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		Body      CreateMilestoneRequest
	}) (*out[domain.Milestone], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := a.engine.CreateMilestone(ctx, in.ProjectID, engine.MilestoneInput{
			Title:       in.Body.Title,
			Description: in.Body.Description,
			TargetDate:  in.Body.TargetDate,
			OrderIndex:  in.Body.OrderIndex,
		}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Milestone]{Body: m}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "get-milestone",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/milestones/{milestone_id}",
		Summary:     "Get milestone",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *milestonePath) (*out[domain.Milestone], error) {
		m, err := a.engine.GetMilestone(ctx, in.ProjectID, in.MilestoneID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Milestone]{Body: m}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "update-milestone",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/milestones/{milestone_id}",
		Summary:     "Update milestone",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID   string `path:"project_id"`
		MilestoneID string `path:"milestone_id"`
		Body        UpdateMilestoneRequest
	}) (*out[domain.Milestone], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := a.engine.UpdateMilestone(ctx, in.ProjectID, in.MilestoneID, engine.MilestonePatch{
			Title:       in.Body.Title,
			Description: in.Body.Description,
			TargetDate:  in.Body.TargetDate,
		}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Milestone]{Body: m}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "delete-milestone",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/milestones/{milestone_id}",
		Summary:     "Delete milestone",
		Description: "Tasks of the milestone are kept and detached.",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *milestonePath) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.DeleteMilestone(ctx, in.ProjectID, in.MilestoneID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "set-milestone-status",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/milestones/{milestone_id}/status",
		Summary:     "Change milestone status",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID   string `path:"project_id"`
		MilestoneID string `path:"milestone_id"`
		Body        StatusRequest
	}) (*out[domain.Milestone], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		status, err := domain.ParseMilestoneStatus(in.Body.Status)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		m, fx, err := a.engine.ChangeMilestoneStatus(ctx, in.ProjectID, in.MilestoneID, status, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		a.notify(ctx, fx)
		return &out[domain.Milestone]{Body: m}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "reorder-milestone",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/milestones/{milestone_id}/reorder",
		Summary:     "Move milestone to a new position",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID   string `path:"project_id"`
		MilestoneID string `path:"milestone_id"`
		Body        ReorderRequest
	}) (*out[domain.Milestone], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := a.engine.ReorderMilestone(ctx, in.ProjectID, in.MilestoneID, in.Body.OrderIndex, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Milestone]{Body: m}, nil
	})
}
