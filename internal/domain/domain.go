package domain

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// MemberKind is the closed set of profile kinds a project member can have.
type MemberKind string

const (
	KindGainer    MemberKind = "gainer"
	KindMentor    MemberKind = "mentor"
	KindNonprofit MemberKind = "nonprofit"
)

func (k MemberKind) Valid() bool {
	switch k {
	case KindGainer, KindMentor, KindNonprofit:
		return true
	}
	return false
}

type Member struct {
	ProjectID string     `json:"project_id"`
	UserID    string     `json:"user_id"`
	Role      string     `json:"role,omitempty"`
	Kind      MemberKind `json:"kind" enum:"gainer,mentor,nonprofit"`
	IsAdmin   bool       `json:"is_admin"`
	JoinedAt  string     `json:"joined_at" format:"date-time"`
	LeftAt    *string    `json:"left_at,omitempty" format:"date-time"`
}

// Active reports whether the member has not left the project.
func (m Member) Active() bool { return m.LeftAt == nil }

// CanManage reports whether the member may perform structural mutations.
func (m Member) CanManage() bool {
	return m.Active() && (m.IsAdmin || m.Kind == KindMentor)
}

type Milestone struct {
	ID                 string          `json:"id"`
	ProjectID          string          `json:"project_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Status             MilestoneStatus `json:"status" enum:"Planned,InProgress,Completed,Cancelled"`
	OrderIndex         int             `json:"order_index"`
	TargetDate         *string         `json:"target_date,omitempty" format:"date-time"`
	CreatedAt          string          `json:"created_at" format:"date-time"`
	CreatedBy          string          `json:"created_by"`
	TaskCount          int             `json:"task_count"`
	CompletedTaskCount int             `json:"completed_task_count"`
}

type Task struct {
	ID                    string      `json:"id"`
	ProjectID             string      `json:"project_id"`
	Title                 string      `json:"title"`
	Description           string      `json:"description,omitempty"`
	Type                  TaskType    `json:"type" enum:"Feature,Research,Infra,Docs,Refactor"`
	Status                TaskStatus  `json:"status" enum:"Todo,InProgress,Blocked,Done"`
	Priority              Priority    `json:"priority" enum:"Low,Medium,High,Critical"`
	IsBlocked             bool        `json:"is_blocked"`
	OrderIndex            int         `json:"order_index"`
	CreatedAt             string      `json:"created_at" format:"date-time"`
	UpdatedAt             string      `json:"updated_at" format:"date-time"`
	CompletedAt           *string     `json:"completed_at,omitempty" format:"date-time"`
	CreatedBy             string      `json:"created_by"`
	DueAt                 *string     `json:"due_at,omitempty" format:"date-time"`
	MilestoneID           *string     `json:"milestone_id,omitempty"`
	AssignedRole          *string     `json:"assigned_role,omitempty"`
	AssignedUserID        *string     `json:"assigned_user_id,omitempty"`
	DependsOn             []string    `json:"depends_on"`
	Subtasks              []Subtask   `json:"subtasks"`
	References            []Reference `json:"references,omitempty"`
	SubtaskCount          int         `json:"subtask_count"`
	CompletedSubtaskCount int         `json:"completed_subtask_count"`
	DependenciesSatisfied bool        `json:"dependencies_satisfied"`
}

type Subtask struct {
	ID          string  `json:"id"`
	TaskID      string  `json:"task_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	IsDone      bool    `json:"is_done"`
	OrderIndex  int     `json:"order_index"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedBy   string  `json:"created_by"`
}

type Dependency struct {
	TaskID          string `json:"task_id"`
	DependsOnTaskID string `json:"depends_on_task_id"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	CreatedBy       string `json:"created_by"`
}

type Reference struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"task_id"`
	Type      ReferenceType `json:"type" enum:"Link,Document,PullRequest,Other"`
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	CreatedAt string        `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Effects describes the notifications a committed mutation warrants.
// The storage layer only reports them; dispatch is up to the caller.
type Effects struct {
	TasksCreated        []Task
	TasksCompleted      []Task
	TasksUnblocked      []Task
	MilestonesCompleted []Milestone
}

func (e Effects) Empty() bool {
	return len(e.TasksCreated) == 0 && len(e.TasksCompleted) == 0 &&
		len(e.TasksUnblocked) == 0 && len(e.MilestonesCompleted) == 0
}
