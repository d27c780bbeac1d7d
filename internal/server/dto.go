package server

import (
	"crewline/internal/domain"
)

// out wraps a response body.
type out[T any] struct {
	Body T
}

type projectPath struct {
	ProjectID string `path:"project_id"`
}

type taskPath struct {
	ProjectID string `path:"project_id"`
	TaskID    string `path:"task_id"`
}

type milestonePath struct {
	ProjectID   string `path:"project_id"`
	MilestoneID string `path:"milestone_id"`
}

type subtaskPath struct {
	ProjectID string `path:"project_id"`
	TaskID    string `path:"task_id"`
	SubtaskID string `path:"subtask_id"`
}

// Request payloads

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Role        string `json:"role,omitempty" doc:"Role of the creator inside the project"`
	Kind        string `json:"kind,omitempty" doc:"gainer, mentor or nonprofit"`
}

type AddMemberRequest struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role,omitempty"`
	Kind    string `json:"kind,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

type CreateMilestoneRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	TargetDate  *string `json:"target_date,omitempty"`
	OrderIndex  *int    `json:"order_index,omitempty"`
}

type UpdateMilestoneRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	TargetDate  *string `json:"target_date,omitempty" doc:"Empty string clears the date"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type ReorderRequest struct {
	OrderIndex int `json:"order_index"`
}

type SubtaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateSubtaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type ToggleSubtaskRequest struct {
	IsDone bool `json:"is_done"`
}

type CreateTaskRequest struct {
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Type           string           `json:"type,omitempty"`
	Priority       string           `json:"priority,omitempty"`
	MilestoneID    *string          `json:"milestone_id,omitempty"`
	AssignedRole   *string          `json:"assigned_role,omitempty"`
	AssignedUserID *string          `json:"assigned_user_id,omitempty"`
	DueAt          *string          `json:"due_at,omitempty"`
	OrderIndex     *int             `json:"order_index,omitempty"`
	DependsOn      []string         `json:"depends_on,omitempty"`
	Subtasks       []SubtaskRequest `json:"subtasks,omitempty"`
}

// UpdateTaskRequest fields are optional; an empty string clears a reference.
type UpdateTaskRequest struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	Type           *string `json:"type,omitempty"`
	Priority       *string `json:"priority,omitempty"`
	MilestoneID    *string `json:"milestone_id,omitempty"`
	AssignedRole   *string `json:"assigned_role,omitempty"`
	AssignedUserID *string `json:"assigned_user_id,omitempty"`
	DueAt          *string `json:"due_at,omitempty"`
}

type DependencyRequest struct {
	DependsOnTaskID string `json:"depends_on_task_id"`
}

type ReferenceRequest struct {
	Type  string `json:"type,omitempty"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ApplyRoadmapRequest carries a roadmap either as a JSON object or as raw
// generator text.
type ApplyRoadmapRequest struct {
	Roadmap map[string]any `json:"roadmap,omitempty"`
	Text    string         `json:"text,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Responses

type DevLoginResponse struct {
	Token string `json:"token"`
}

type CreateAPIKeyResponse struct {
	Key    domain.APIKey `json:"key"`
	Secret string        `json:"secret" doc:"Shown once"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
