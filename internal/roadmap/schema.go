// Package roadmap parses generated roadmaps and applies them to a project's
// task graph as one unit of work.
package roadmap

// Roadmap is the structured document a planning generator returns.
// Milestones are referenced from tasks by their array position.
type Roadmap struct {
	Milestones []MilestoneSpec `json:"milestones"`
	Tasks      []TaskSpec      `json:"tasks"`
}

type MilestoneSpec struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	DayOffset   *int   `json:"day_offset,omitempty"`
}

type TaskSpec struct {
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Type           string        `json:"type,omitempty"`
	Priority       string        `json:"priority,omitempty"`
	MilestoneIndex *int          `json:"milestone_index,omitempty"`
	AssignedRole   string        `json:"assigned_role,omitempty"`
	Order          int           `json:"order"`
	DayOffset      *int          `json:"day_offset,omitempty"`
	Subtasks       []SubtaskSpec `json:"subtasks,omitempty"`
	// DependsOn lists positions of other tasks in the same document.
	DependsOn []int `json:"depends_on,omitempty"`
	// Malformed holds the decode error of a task that could not be read.
	Malformed string `json:"-"`
}

type SubtaskSpec struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}
