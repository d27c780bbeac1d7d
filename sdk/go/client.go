package crewlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal crewline HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID                    string    `json:"id"`
	ProjectID             string    `json:"project_id"`
	Title                 string    `json:"title"`
	Type                  string    `json:"type"`
	Status                string    `json:"status"`
	Priority              string    `json:"priority"`
	MilestoneID           *string   `json:"milestone_id,omitempty"`
	AssignedRole          *string   `json:"assigned_role,omitempty"`
	AssignedUserID        *string   `json:"assigned_user_id,omitempty"`
	DueAt                 *string   `json:"due_at,omitempty"`
	DependsOn             []string  `json:"depends_on"`
	Subtasks              []Subtask `json:"subtasks"`
	DependenciesSatisfied bool      `json:"dependencies_satisfied"`
}

type Subtask struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	IsDone bool   `json:"is_done"`
}

type Milestone struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Status             string `json:"status"`
	OrderIndex         int    `json:"order_index"`
	TaskCount          int    `json:"task_count"`
	CompletedTaskCount int    `json:"completed_task_count"`
}

// NewTask is the create-task payload.
type NewTask struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Type           string   `json:"type,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	MilestoneID    string   `json:"milestone_id,omitempty"`
	AssignedRole   string   `json:"assigned_role,omitempty"`
	AssignedUserID string   `json:"assigned_user_id,omitempty"`
	DependsOn      []string `json:"depends_on,omitempty"`
}

// PlanRequest steers roadmap generation.
type PlanRequest struct {
	Goals         []string `json:"goals,omitempty"`
	Constraints   []string `json:"constraints,omitempty"`
	TechStack     []string `json:"tech_stack,omitempty"`
	DurationWeeks int      `json:"duration_weeks,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// RoadmapResult is what generate and apply return.
type RoadmapResult struct {
	Milestones []Milestone `json:"milestones"`
	Tasks      []Task      `json:"tasks"`
	Notes      []string    `json:"notes"`
	Skipped    []struct {
		Index  int    `json:"index"`
		Title  string `json:"title"`
		Reason string `json:"reason"`
	} `json:"skipped"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), in, &resp)
	return resp, err
}

// ListTasks returns the board, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := c.projectPath("tasks")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetTaskStatus moves a task to Todo, InProgress, Blocked or Done.
func (c *Client) SetTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	var resp Task
	endpoint := c.projectPath(fmt.Sprintf("tasks/%s/status", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// AddDependency makes taskID depend on dependsOnID.
func (c *Client) AddDependency(ctx context.Context, taskID, dependsOnID string) error {
	endpoint := c.projectPath(fmt.Sprintf("tasks/%s/dependencies", url.PathEscape(taskID)))
	return c.do(ctx, http.MethodPost, endpoint, map[string]any{"depends_on_task_id": dependsOnID}, nil)
}

// CreateMilestone appends a milestone.
func (c *Client) CreateMilestone(ctx context.Context, title, description string) (Milestone, error) {
	var resp Milestone
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	err := c.do(ctx, http.MethodPost, c.projectPath("milestones"), body, &resp)
	return resp, err
}

// GenerateRoadmap asks the server to generate and apply a roadmap.
func (c *Client) GenerateRoadmap(ctx context.Context, in PlanRequest) (RoadmapResult, error) {
	var resp RoadmapResult
	err := c.do(ctx, http.MethodPost, c.projectPath("roadmap/generate"), in, &resp)
	return resp, err
}

// ApplyRoadmap applies raw roadmap JSON or generator text.
func (c *Client) ApplyRoadmap(ctx context.Context, text string) (RoadmapResult, error) {
	var resp RoadmapResult
	err := c.do(ctx, http.MethodPost, c.projectPath("roadmap/apply"), map[string]any{"text": text}, &resp)
	return resp, err
}

// Events returns recent events, newest first. before pages backwards by id.
func (c *Client) Events(ctx context.Context, limit int, before int64) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	endpoint := c.projectPath("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v1/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
