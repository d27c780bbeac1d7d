package roadmap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"crewline/internal/ctxlog"
	"crewline/internal/depgraph"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/members"
	"crewline/internal/repo"
)

// Store is the slice of the engine the applier needs.
type Store interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	CommitPlan(ctx context.Context, projectID string, plan repo.Plan, actorID string) (engine.PlanResult, domain.Effects, error)
}

// Applier turns a Roadmap into milestones, tasks, subtasks and edges.
type Applier struct {
	Store   Store
	Members domain.MembershipProvider
	Now     func() time.Time
}

// Skipped records a roadmap task that was not created.
type Skipped struct {
	Index  int    `json:"index"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

type Result struct {
	Milestones []domain.Milestone `json:"milestones"`
	Tasks      []domain.Task      `json:"tasks"`
	Notes      []string           `json:"notes"`
	Skipped    []Skipped          `json:"skipped,omitempty"`
}

func (a Applier) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

// Apply creates every valid item of rm in projectID as one commit. Tasks
// that are malformed, untitled or point at an unusable milestone position
// are skipped and reported;
// the rest land together or not at all.
func (a Applier) Apply(ctx context.Context, projectID string, rm Roadmap, actorID string) (Result, domain.Effects, error) {
	res := Result{Milestones: []domain.Milestone{}, Tasks: []domain.Task{}, Notes: []string{}}
	var fx domain.Effects
	if err := rm.checkMilestones(); err != nil {
		return res, fx, err
	}
	project, err := a.Store.GetProject(ctx, projectID)
	if err != nil {
		return res, fx, err
	}
	roster, err := a.Members.GetActiveMembers(ctx, projectID)
	if err != nil {
		return res, fx, fmt.Errorf("load members: %w", err)
	}
	base, err := time.Parse(time.RFC3339, project.CreatedAt)
	if err != nil {
		base = a.now()
	}
	stamp := a.now().Format(time.RFC3339)

	b := builder{projectID: projectID, actorID: actorID, stamp: stamp, base: base, roster: roster}
	plan := repo.Plan{}

	milestoneIDs := make([]string, len(rm.Milestones))
	for rank, i := range ranks(len(rm.Milestones), func(i int) int { return rm.Milestones[i].Order }) {
		m := rm.Milestones[i]
		id := uuid.NewString()
		milestoneIDs[i] = id
		plan.Milestones = append(plan.Milestones, domain.Milestone{
			ID:          id,
			ProjectID:   projectID,
			Title:       strings.TrimSpace(m.Title),
			Description: m.Description,
			Status:      domain.MilestonePlanned,
			OrderIndex:  rank,
			TargetDate:  b.offset(m.DayOffset),
			CreatedAt:   stamp,
			CreatedBy:   actorID,
		})
	}

	taskIDs := make([]string, len(rm.Tasks))
	var accepted []int
	for i, spec := range rm.Tasks {
		if spec.Malformed != "" {
			res.Skipped = append(res.Skipped, Skipped{Index: i, Title: spec.Title, Reason: "malformed task: " + spec.Malformed})
			continue
		}
		if strings.TrimSpace(spec.Title) == "" {
			res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: "missing title"})
			continue
		}
		if spec.MilestoneIndex != nil && (*spec.MilestoneIndex < 0 || *spec.MilestoneIndex >= len(rm.Milestones)) {
			res.Skipped = append(res.Skipped, Skipped{
				Index:  i,
				Title:  spec.Title,
				Reason: fmt.Sprintf("milestone index %d out of range", *spec.MilestoneIndex),
			})
			continue
		}
		taskIDs[i] = uuid.NewString()
		accepted = append(accepted, i)
	}

	for rank, k := range ranks(len(accepted), func(k int) int { return rm.Tasks[accepted[k]].Order }) {
		i := accepted[k]
		spec := rm.Tasks[i]
		var milestoneID *string
		if spec.MilestoneIndex != nil {
			milestoneID = &milestoneIDs[*spec.MilestoneIndex]
		}
		t := b.task(taskIDs[i], spec, rank, milestoneID)
		plan.Tasks = append(plan.Tasks, t)
	}
	res.Notes = append(res.Notes, b.notes...)

	deps, depNotes := b.edges(rm.Tasks, taskIDs)
	plan.Dependencies = deps
	res.Notes = append(res.Notes, depNotes...)

	log := ctxlog.FromContext(ctx)
	for _, s := range res.Skipped {
		log.Warn("roadmap task skipped", "project_id", projectID, "index", s.Index, "title", s.Title, "reason", s.Reason)
	}

	committed, fx, err := a.Store.CommitPlan(ctx, projectID, plan, actorID)
	if err != nil {
		return Result{}, domain.Effects{}, err
	}
	res.Milestones = append(res.Milestones, committed.Milestones...)
	res.Tasks = append(res.Tasks, committed.Tasks...)
	res.Notes = append(res.Notes, fmt.Sprintf("Created %d milestones and %d tasks.", len(res.Milestones), len(res.Tasks)))
	if len(res.Skipped) > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("Skipped %d tasks that could not be placed.", len(res.Skipped)))
	}
	res.Notes = append(res.Notes, "Review generated assignments and dates before starting work.")
	return res, fx, nil
}

type builder struct {
	projectID string
	actorID   string
	stamp     string
	base      time.Time
	roster    []domain.Member
	notes     []string
}

func (b *builder) offset(days *int) *string {
	if days == nil {
		return nil
	}
	v := b.base.AddDate(0, 0, *days).Format(time.RFC3339)
	return &v
}

func (b *builder) task(id string, spec TaskSpec, rank int, milestoneID *string) domain.Task {
	typ := domain.TypeFeature
	if spec.Type != "" {
		if v, err := domain.ParseTaskType(spec.Type); err == nil {
			typ = v
		} else {
			b.notes = append(b.notes, fmt.Sprintf("Task %q: unknown type %q, using Feature.", spec.Title, spec.Type))
		}
	}
	prio := domain.PriorityMedium
	if spec.Priority != "" {
		if v, err := domain.ParsePriority(spec.Priority); err == nil {
			prio = v
		} else {
			b.notes = append(b.notes, fmt.Sprintf("Task %q: unknown priority %q, using Medium.", spec.Title, spec.Priority))
		}
	}

	t := domain.Task{
		ID:          id,
		ProjectID:   b.projectID,
		Title:       strings.TrimSpace(spec.Title),
		Description: spec.Description,
		Type:        typ,
		Status:      domain.StatusTodo,
		Priority:    prio,
		OrderIndex:  rank,
		CreatedAt:   b.stamp,
		UpdatedAt:   b.stamp,
		CreatedBy:   b.actorID,
		DueAt:       b.offset(spec.DayOffset),
		MilestoneID: milestoneID,
	}
	if role := strings.TrimSpace(spec.AssignedRole); role != "" {
		t.AssignedRole = &role
		if m, ok := members.ByRole(b.roster, role); ok {
			uid := m.UserID
			t.AssignedUserID = &uid
		}
	}

	subs := make([]SubtaskSpec, 0, len(spec.Subtasks))
	for _, st := range spec.Subtasks {
		if strings.TrimSpace(st.Title) == "" {
			b.notes = append(b.notes, fmt.Sprintf("Task %q: dropped a subtask without a title.", spec.Title))
			continue
		}
		subs = append(subs, st)
	}
	for rank, i := range ranks(len(subs), func(i int) int { return subs[i].Order }) {
		t.Subtasks = append(t.Subtasks, domain.Subtask{
			ID:          uuid.NewString(),
			TaskID:      id,
			Title:       strings.TrimSpace(subs[i].Title),
			Description: subs[i].Description,
			OrderIndex:  rank,
			CreatedBy:   b.actorID,
		})
	}
	return t
}

// edges resolves depends_on positions. Edges that would point at a skipped
// task, at the task itself, or close a cycle are dropped with a note.
func (b *builder) edges(specs []TaskSpec, ids []string) ([]domain.Dependency, []string) {
	var notes []string
	var nodes []string
	for _, id := range ids {
		if id != "" {
			nodes = append(nodes, id)
		}
	}
	g, _ := depgraph.New(nodes, nil)
	for i, spec := range specs {
		if ids[i] == "" {
			continue
		}
		for _, j := range spec.DependsOn {
			if j < 0 || j >= len(ids) || ids[j] == "" {
				notes = append(notes, fmt.Sprintf("Task %q: dependency on task %d ignored, no such task.", spec.Title, j))
				continue
			}
			if err := g.AddEdge(ids[i], ids[j]); err != nil {
				notes = append(notes, fmt.Sprintf("Task %q: dependency on %q ignored: %v.", spec.Title, specs[j].Title, err))
			}
		}
	}
	var deps []domain.Dependency
	for _, e := range g.Edges() {
		deps = append(deps, domain.Dependency{
			TaskID:          e.TaskID,
			DependsOnTaskID: e.DependsOnID,
			CreatedAt:       b.stamp,
			CreatedBy:       b.actorID,
		})
	}
	return deps, notes
}

// ranks returns positions 0..n-1 ordered by key, ties kept in input order.
// The result maps rank to position.
func ranks(n int, key func(int) int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	sort.SliceStable(out, func(a, b int) bool { return key(out[a]) < key(out[b]) })
	return out
}
