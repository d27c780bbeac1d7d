package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"crewline/internal/domain"
	"crewline/internal/engine"
)

func registerTasks(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List the task board in order",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		ProjectID      string `path:"project_id"`
		Status         string `query:"status"`
		MilestoneID    string `query:"milestone_id"`
		AssignedUserID string `query:"assigned_user_id"`
		AssignedRole   string `query:"assigned_role"`
	}) (*out[[]domain.Task], error) {
		items, err := a.engine.ListTasks(ctx, in.ProjectID, engine.TaskListOptions{
			Status:         in.Status,
			MilestoneID:    in.MilestoneID,
			AssignedUserID: in.AssignedUserID,
			AssignedRole:   in.AssignedRole,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Task]{Body: nonNil(items)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		Body      CreateTaskRequest
	}) (*out[domain.Task], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		input := engine.TaskInput{
			Title:          in.Body.Title,
			Description:    in.Body.Description,
			Type:           domain.TaskType(in.Body.Type),
			Priority:       domain.Priority(in.Body.Priority),
			MilestoneID:    in.Body.MilestoneID,
			AssignedRole:   in.Body.AssignedRole,
			AssignedUserID: in.Body.AssignedUserID,
			DueAt:          in.Body.DueAt,
			OrderIndex:     in.Body.OrderIndex,
			DependsOn:      in.Body.DependsOn,
		}
		for _, st := range in.Body.Subtasks {
			input.Subtasks = append(input.Subtasks, engine.SubtaskInput{Title: st.Title, Description: st.Description})
		}
		t, fx, err := a.engine.CreateTask(ctx, in.ProjectID, input, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		a.notify(ctx, fx)
		return &out[domain.Task]{Body: t}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Get task with subtasks, dependencies and references",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *taskPath) (*out[domain.Task], error) {
		t, err := a.engine.GetTask(ctx, in.ProjectID, in.TaskID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Task]{Body: t}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Update task fields",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      UpdateTaskRequest
	}) (*out[domain.Task], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		patch := engine.TaskPatch{
			Title:          in.Body.Title,
			Description:    in.Body.Description,
			MilestoneID:    in.Body.MilestoneID,
			AssignedRole:   in.Body.AssignedRole,
			AssignedUserID: in.Body.AssignedUserID,
			DueAt:          in.Body.DueAt,
		}
		if in.Body.Type != nil {
			v := domain.TaskType(*in.Body.Type)
			patch.Type = &v
		}
		if in.Body.Priority != nil {
			v := domain.Priority(*in.Body.Priority)
			patch.Priority = &v
		}
		t, err := a.engine.UpdateTask(ctx, in.ProjectID, in.TaskID, patch, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Task]{Body: t}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Delete task",
		Description: "Subtasks, references and dependency edges in both directions are removed with it.",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *taskPath) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.DeleteTask(ctx, in.ProjectID, in.TaskID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/status",
		Summary:     "Change task status",
		Description: "Done requires every dependency to be Done.",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      StatusRequest
	}) (*out[domain.Task], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		status, err := domain.ParseTaskStatus(in.Body.Status)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		t, fx, err := a.engine.ChangeTaskStatus(ctx, in.ProjectID, in.TaskID, status, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		a.notify(ctx, fx)
		return &out[domain.Task]{Body: t}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "reorder-task",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/reorder",
		Summary:     "Move task to a new board position",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      ReorderRequest
	}) (*out[domain.Task], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		t, err := a.engine.ReorderTask(ctx, in.ProjectID, in.TaskID, in.Body.OrderIndex, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Task]{Body: t}, nil
	})
}

func registerSubtasks(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID:   "create-subtask",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks/{task_id}/subtasks",
		Summary:       "Append a subtask",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      SubtaskRequest
	}) (*out[domain.Subtask], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		st, err := a.engine.CreateSubtask(ctx, in.ProjectID, in.TaskID, engine.SubtaskInput{Title: in.Body.Title, Description: in.Body.Description}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Subtask]{Body: st}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "update-subtask",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/tasks/{task_id}/subtasks/{subtask_id}",
		Summary:     "Update subtask",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		SubtaskID string `path:"subtask_id"`
		Body      UpdateSubtaskRequest
	}) (*out[domain.Subtask], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		st, err := a.engine.UpdateSubtask(ctx, in.ProjectID, in.TaskID, in.SubtaskID, engine.SubtaskPatch{
			Title:       in.Body.Title,
			Description: in.Body.Description,
		}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Subtask]{Body: st}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "delete-subtask",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/tasks/{task_id}/subtasks/{subtask_id}",
		Summary:     "Delete subtask",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *subtaskPath) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.DeleteSubtask(ctx, in.ProjectID, in.TaskID, in.SubtaskID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "toggle-subtask",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/subtasks/{subtask_id}/toggle",
		Summary:     "Mark a subtask done or not done",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		SubtaskID string `path:"subtask_id"`
		Body      ToggleSubtaskRequest
	}) (*out[domain.Subtask], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		st, err := a.engine.ToggleSubtask(ctx, in.ProjectID, in.TaskID, in.SubtaskID, in.Body.IsDone, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Subtask]{Body: st}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "reorder-subtask",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/subtasks/{subtask_id}/reorder",
		Summary:     "Move subtask within its task",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		SubtaskID string `path:"subtask_id"`
		Body      ReorderRequest
	}) (*out[domain.Subtask], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		st, err := a.engine.ReorderSubtask(ctx, in.ProjectID, in.TaskID, in.SubtaskID, in.Body.OrderIndex, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Subtask]{Body: st}, nil
	})
}

func registerDependencies(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "list-dependencies",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks/{task_id}/dependencies",
		Summary:     "List tasks this task depends on",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *taskPath) (*out[[]domain.Dependency], error) {
		items, err := a.engine.ListDependencies(ctx, in.ProjectID, in.TaskID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Dependency]{Body: nonNil(items)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID:   "add-dependency",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks/{task_id}/dependencies",
		Summary:       "Add a dependency edge",
		Description:   "Rejected when it would depend on itself, duplicate an edge or close a cycle.",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      DependencyRequest
	}) (*out[domain.Dependency], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		d, err := a.engine.AddDependency(ctx, in.ProjectID, in.TaskID, in.Body.DependsOnTaskID, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Dependency]{Body: d}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "remove-dependency",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/tasks/{task_id}/dependencies/{depends_on_task_id}",
		Summary:     "Remove a dependency edge",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID       string `path:"project_id"`
		TaskID          string `path:"task_id"`
		DependsOnTaskID string `path:"depends_on_task_id"`
	}) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.RemoveDependency(ctx, in.ProjectID, in.TaskID, in.DependsOnTaskID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}

func registerReferences(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "list-references",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks/{task_id}/references",
		Summary:     "List task references",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *taskPath) (*out[[]domain.Reference], error) {
		items, err := a.engine.ListReferences(ctx, in.ProjectID, in.TaskID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.Reference]{Body: nonNil(items)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID:   "add-reference",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks/{task_id}/references",
		Summary:       "Attach a link to a task",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      ReferenceRequest
	}) (*out[domain.Reference], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		ref, err := a.engine.AddReference(ctx, in.ProjectID, in.TaskID, engine.ReferenceInput{
			Type:  domain.ReferenceType(in.Body.Type),
			URL:   in.Body.URL,
			Title: in.Body.Title,
		}, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[domain.Reference]{Body: ref}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "remove-reference",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/tasks/{task_id}/references/{reference_id}",
		Summary:     "Remove a reference",
		Errors:      commonErrors,
	}, func(ctx context.Context, in *struct {
		ProjectID   string `path:"project_id"`
		TaskID      string `path:"task_id"`
		ReferenceID string `path:"reference_id"`
	}) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.RemoveReference(ctx, in.ProjectID, in.TaskID, in.ReferenceID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}
