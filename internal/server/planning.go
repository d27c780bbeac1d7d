package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"crewline/internal/planning"
	"crewline/internal/roadmap"
)

var planningErrors = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway}

func registerPlanning(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "generate-roadmap",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/roadmap/generate",
		Summary:     "Generate and apply a roadmap",
		Description: "Builds a planning context from the project, asks the generator for a roadmap and applies it in one transaction. Nothing is written when generation fails.",
		Errors:      planningErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string               `path:"project_id"`
		Body      planning.PlanRequest `required:"false"`
	}) (*out[roadmap.Result], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		res, err := a.planner.GenerateRoadmap(ctx, in.ProjectID, in.Body, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[roadmap.Result]{Body: res}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "apply-roadmap",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/roadmap/apply",
		Summary:     "Apply a prepared roadmap",
		Errors:      planningErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		Body      ApplyRoadmapRequest
	}) (*out[roadmap.Result], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(in.Body.Text)
		if in.Body.Roadmap != nil {
			b, err := json.Marshal(in.Body.Roadmap)
			if err != nil {
				return nil, huma.Error400BadRequest("roadmap is not valid JSON")
			}
			raw = string(b)
		}
		if raw == "" {
			return nil, huma.Error400BadRequest("roadmap or text is required")
		}
		res, err := a.planner.ApplyRoadmap(ctx, in.ProjectID, raw, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[roadmap.Result]{Body: res}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "elaborate-task",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/elaborate",
		Summary:     "Ask the generator for implementation guidance",
		Errors:      planningErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string                    `path:"project_id"`
		TaskID    string                    `path:"task_id"`
		Body      planning.ElaborateRequest `required:"false"`
	}) (*out[planning.Elaboration], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		res, err := a.planner.ElaborateTask(ctx, in.ProjectID, in.TaskID, in.Body, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[planning.Elaboration]{Body: res}, nil
	})
}
