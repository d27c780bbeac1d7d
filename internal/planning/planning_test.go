package planning_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewline/internal/db"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/members"
	"crewline/internal/migrate"
	"crewline/internal/planning"
	"crewline/internal/repo"
)

const (
	projectID = "proj-1"
	owner     = "owner"
	gainer    = "gainer"
)

type fakeGenerator struct {
	mu        sync.Mutex
	roadmap   string
	elaborate string
	err       error
	delay     time.Duration
	contexts  []string
}

func (f *fakeGenerator) wait(ctx context.Context, text string) error {
	f.mu.Lock()
	f.contexts = append(f.contexts, text)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeGenerator) Generate(ctx context.Context, text string) (string, error) {
	if err := f.wait(ctx, text); err != nil {
		return "", err
	}
	return f.roadmap, nil
}

func (f *fakeGenerator) Elaborate(ctx context.Context, text string) (string, error) {
	if err := f.wait(ctx, text); err != nil {
		return "", err
	}
	return f.elaborate, nil
}

type recordingSink struct {
	mu      sync.Mutex
	created []string
}

func (r *recordingSink) TaskCreated(_ context.Context, t domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, t.Title)
	return nil
}
func (r *recordingSink) TaskCompleted(context.Context, domain.Task) error          { return nil }
func (r *recordingSink) TaskUnblocked(context.Context, domain.Task) error          { return nil }
func (r *recordingSink) MilestoneCompleted(context.Context, domain.Milestone) error { return nil }

type env struct {
	orch   planning.Orchestrator
	engine engine.Engine
	gen    *fakeGenerator
	sink   *recordingSink
}

func newEnv(t *testing.T) env {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	provider := members.New(repo.Repo{DB: conn})
	eng := engine.New(conn, provider)
	var tick atomic.Int64
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	ctx := context.Background()
	_, err = eng.CreateProject(ctx, engine.ProjectInput{ID: projectID, Name: "Pantry tracker", Description: "Inventory for a food bank"}, owner)
	require.NoError(t, err)
	_, err = eng.AddMember(ctx, projectID, engine.MemberInput{UserID: gainer, Kind: domain.KindGainer, Role: "Frontend Developer"}, owner)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	sink := &recordingSink{}
	return env{orch: planning.New(eng, provider, gen, sink, time.Second), engine: eng, gen: gen, sink: sink}
}

const sampleRoadmap = "```json\n" + `{
  "milestones": [{"title": "Foundations", "order": 0, "day_offset": 14}],
  "tasks": [
    {"title": "Inventory screen", "milestone_index": 0, "assigned_role": "Frontend Developer", "order": 0,
     "subtasks": [{"title": "list view", "order": 0}]},
    {"title": "Barcode research", "type": "Research", "milestone_index": 0, "order": 1, "depends_on": [0]},
    {"title": "Orphan", "milestone_index": 9, "order": 2}
  ]
}` + "\n```"

func TestGenerateRoadmapAppliesAndNotifies(t *testing.T) {
	e := newEnv(t)
	e.gen.roadmap = sampleRoadmap
	ctx := context.Background()

	res, err := e.orch.GenerateRoadmap(ctx, projectID, planning.PlanRequest{
		Goals:         []string{"track donations"},
		TechStack:     []string{"Go", "React"},
		DurationWeeks: 6,
	}, owner)
	require.NoError(t, err)
	require.Len(t, res.Milestones, 1)
	require.Len(t, res.Tasks, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, gainer, *res.Tasks[0].AssignedUserID)
	assert.Equal(t, []string{res.Tasks[0].ID}, res.Tasks[1].DependsOn)
	assert.ElementsMatch(t, []string{"Inventory screen", "Barcode research"}, e.sink.created)

	require.Len(t, e.gen.contexts, 1)
	prompt := e.gen.contexts[0]
	assert.Contains(t, prompt, "Name: Pantry tracker")
	assert.Contains(t, prompt, "- Frontend Developer [gainer]")
	assert.Contains(t, prompt, "- track donations")
	assert.Contains(t, prompt, "Tech stack: Go, React")
	assert.Contains(t, prompt, "Duration: 6 weeks")

	tasks, err := e.engine.ListTasks(ctx, projectID, engine.TaskListOptions{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}

func TestGenerateRoadmapRequiresManager(t *testing.T) {
	e := newEnv(t)
	e.gen.roadmap = sampleRoadmap
	_, err := e.orch.GenerateRoadmap(context.Background(), projectID, planning.PlanRequest{}, gainer)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Empty(t, e.gen.contexts)
}

func TestGenerateRoadmapUnknownProject(t *testing.T) {
	e := newEnv(t)
	_, err := e.orch.GenerateRoadmap(context.Background(), "nope", planning.PlanRequest{}, owner)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateRoadmapGeneratorFailures(t *testing.T) {
	cases := map[string]func(*fakeGenerator){
		"error":    func(g *fakeGenerator) { g.err = errors.New("upstream 529") },
		"garbage":  func(g *fakeGenerator) { g.roadmap = "I cannot help with that." },
		"timeout":  func(g *fakeGenerator) { g.delay = 5 * time.Second },
		"untitled": func(g *fakeGenerator) { g.roadmap = `{"milestones":[{"title":""}],"tasks":[{"title":"x"}]}` },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			setup(e.gen)
			_, err := e.orch.GenerateRoadmap(context.Background(), projectID, planning.PlanRequest{}, owner)
			require.ErrorIs(t, err, domain.ErrGenerationFailed)

			tasks, err := e.engine.ListTasks(context.Background(), projectID, engine.TaskListOptions{})
			require.NoError(t, err)
			require.Empty(t, tasks)
			require.Empty(t, e.sink.created)
		})
	}
}

func TestApplyRoadmapUsesSamePath(t *testing.T) {
	e := newEnv(t)
	res, err := e.orch.ApplyRoadmap(context.Background(), projectID, `{"tasks":[{"title":"Write README","type":"docs"}]}`, owner)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, domain.TypeDocs, res.Tasks[0].Type)
	assert.Equal(t, []string{"Write README"}, e.sink.created)
	assert.Empty(t, e.gen.contexts)
}

func TestElaborateTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	prereq, _, err := e.engine.CreateTask(ctx, projectID, engine.TaskInput{Title: "Schema"}, owner)
	require.NoError(t, err)
	task, _, err := e.engine.CreateTask(ctx, projectID, engine.TaskInput{
		Title:     "Stock API",
		DependsOn: []string{prereq.ID},
		Subtasks:  []engine.SubtaskInput{{Title: "GET /items"}},
	}, owner)
	require.NoError(t, err)
	e.gen.elaborate = "Start with the schema."

	out, err := e.orch.ElaborateTask(ctx, projectID, task.ID, planning.ElaborateRequest{Focus: "testing"}, gainer)
	require.NoError(t, err)
	assert.Equal(t, task.ID, out.TaskID)
	assert.Equal(t, "Start with the schema.", out.Text)

	prompt := e.gen.contexts[0]
	assert.Contains(t, prompt, "Title: Stock API")
	assert.Contains(t, prompt, "- [ ] GET /items")
	assert.Contains(t, prompt, "- [Todo] Schema")
	assert.Contains(t, prompt, "Focus on: testing")

	_, err = e.orch.ElaborateTask(ctx, projectID, task.ID, planning.ElaborateRequest{}, "stranger")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = e.orch.ElaborateTask(ctx, projectID, "missing", planning.ElaborateRequest{}, gainer)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestElaborateEmptyAnswerFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task, _, err := e.engine.CreateTask(ctx, projectID, engine.TaskInput{Title: "Docs"}, owner)
	require.NoError(t, err)
	_, err = e.orch.ElaborateTask(ctx, projectID, task.ID, planning.ElaborateRequest{}, owner)
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
}
