package roadmap_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crewline/internal/db"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/members"
	"crewline/internal/migrate"
	"crewline/internal/repo"
	"crewline/internal/roadmap"
)

const (
	projectID = "proj-1"
	owner     = "owner"
	gainer    = "gainer"
)

func newApplier(t *testing.T) (roadmap.Applier, engine.Engine) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	provider := members.New(repo.Repo{DB: conn})
	eng := engine.New(conn, provider)
	var tick atomic.Int64
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	ctx := context.Background()
	_, err = eng.CreateProject(ctx, engine.ProjectInput{ID: projectID, Name: "Shelter finder"}, owner)
	require.NoError(t, err)
	_, err = eng.AddMember(ctx, projectID, engine.MemberInput{UserID: gainer, Kind: domain.KindGainer, Role: "Backend Developer"}, owner)
	require.NoError(t, err)
	return roadmap.Applier{Store: eng, Members: provider, Now: eng.Now}, eng
}

func intPtr(v int) *int { return &v }

func TestApplyCreatesMilestonesAndTasks(t *testing.T) {
	a, eng := newApplier(t)
	ctx := context.Background()
	rm := roadmap.Roadmap{
		Milestones: []roadmap.MilestoneSpec{
			{Title: "Beta", Order: 1, DayOffset: intPtr(28)},
			{Title: "Alpha", Order: 0, DayOffset: intPtr(14)},
		},
		Tasks: []roadmap.TaskSpec{
			{Title: "API", MilestoneIndex: intPtr(1), AssignedRole: "Backend Developer", Priority: "high", Order: 2,
				Subtasks: []roadmap.SubtaskSpec{{Title: "routes", Order: 1}, {Title: "models", Order: 0}}},
			{Title: "Design", MilestoneIndex: intPtr(1), AssignedRole: "Designer", Type: "Docs", Order: 1, DayOffset: intPtr(7)},
			{Title: "Launch", MilestoneIndex: intPtr(0), Type: "party", Order: 3, DependsOn: []int{0, 1}},
		},
	}

	res, fx, err := a.Apply(ctx, projectID, rm, owner)
	require.NoError(t, err)
	require.Len(t, res.Milestones, 2)
	require.Len(t, res.Tasks, 3)
	require.Len(t, fx.TasksCreated, 3)
	require.Empty(t, res.Skipped)

	require.Equal(t, "Alpha", res.Milestones[0].Title)
	require.Equal(t, 0, res.Milestones[0].OrderIndex)
	require.Equal(t, "Beta", res.Milestones[1].Title)
	require.True(t, strings.HasPrefix(*res.Milestones[0].TargetDate, "2024-03-15"))

	byTitle := map[string]domain.Task{}
	for _, task := range res.Tasks {
		byTitle[task.Title] = task
	}
	api := byTitle["API"]
	require.Equal(t, domain.PriorityHigh, api.Priority)
	require.Equal(t, gainer, *api.AssignedUserID)
	require.Equal(t, res.Milestones[0].ID, *api.MilestoneID)
	require.Equal(t, "models", api.Subtasks[0].Title)
	require.Equal(t, "routes", api.Subtasks[1].Title)

	design := byTitle["Design"]
	require.Equal(t, domain.TypeDocs, design.Type)
	require.Equal(t, "Designer", *design.AssignedRole)
	require.Nil(t, design.AssignedUserID)
	require.True(t, strings.HasPrefix(*design.DueAt, "2024-03-08"))
	require.Less(t, design.OrderIndex, api.OrderIndex)

	launch := byTitle["Launch"]
	require.Equal(t, domain.TypeFeature, launch.Type)
	require.ElementsMatch(t, []string{api.ID, design.ID}, launch.DependsOn)
	require.False(t, launch.DependenciesSatisfied)

	joined := strings.Join(res.Notes, "\n")
	require.Contains(t, joined, `unknown type "party"`)
	require.Contains(t, joined, "Created 2 milestones and 3 tasks.")

	ms, err := eng.ListMilestones(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
}

func TestApplySkipsOutOfRangeMilestoneIndex(t *testing.T) {
	a, _ := newApplier(t)
	rm := roadmap.Roadmap{
		Milestones: []roadmap.MilestoneSpec{{Title: "Only"}},
		Tasks: []roadmap.TaskSpec{
			{Title: "kept", MilestoneIndex: intPtr(0)},
			{Title: "lost", MilestoneIndex: intPtr(4)},
			{Title: "", MilestoneIndex: intPtr(0)},
			{Title: "after lost", DependsOn: []int{1}},
		},
	}
	res, _, err := a.Apply(context.Background(), projectID, rm, owner)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	require.Len(t, res.Skipped, 2)
	require.Equal(t, 1, res.Skipped[0].Index)
	require.Equal(t, "missing title", res.Skipped[1].Reason)
	require.Contains(t, strings.Join(res.Notes, "\n"), "no such task")
}

func TestApplySkipsMalformedTask(t *testing.T) {
	a, _ := newApplier(t)
	rm, err := roadmap.Parse(`{"milestones":[{"title":"M1"}],"tasks":[
		{"title":"good","milestone_index":0},
		{"title":"bad","milestone_index":"1"},
		{"title":"also good","depends_on":[0,1]}]}`)
	require.NoError(t, err)

	res, fx, err := a.Apply(context.Background(), projectID, rm, owner)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	require.Len(t, fx.TasksCreated, 2)
	require.Len(t, res.Skipped, 1)
	require.Equal(t, 1, res.Skipped[0].Index)
	require.Equal(t, "bad", res.Skipped[0].Title)
	require.True(t, strings.HasPrefix(res.Skipped[0].Reason, "malformed task"))

	var alsoGood domain.Task
	for _, task := range res.Tasks {
		if task.Title == "also good" {
			alsoGood = task
		}
	}
	require.Len(t, alsoGood.DependsOn, 1)
	require.Contains(t, strings.Join(res.Notes, "\n"), "no such task")
}

func TestApplyAppendsAfterExistingWork(t *testing.T) {
	a, eng := newApplier(t)
	ctx := context.Background()
	existing, _, err := eng.CreateTask(ctx, projectID, engine.TaskInput{Title: "existing"}, owner)
	require.NoError(t, err)

	res, _, err := a.Apply(ctx, projectID, roadmap.Roadmap{Tasks: []roadmap.TaskSpec{{Title: "new"}}}, owner)
	require.NoError(t, err)
	require.Greater(t, res.Tasks[0].OrderIndex, existing.OrderIndex)
}

func TestApplyDropsCyclicDependency(t *testing.T) {
	a, _ := newApplier(t)
	rm := roadmap.Roadmap{Tasks: []roadmap.TaskSpec{
		{Title: "a", DependsOn: []int{1}},
		{Title: "b", DependsOn: []int{0}},
	}}
	res, _, err := a.Apply(context.Background(), projectID, rm, owner)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	require.Len(t, res.Tasks[0].DependsOn, 1)
	require.Empty(t, res.Tasks[1].DependsOn)
	require.Contains(t, strings.Join(res.Notes, "\n"), `dependency on "a" ignored`)
}

func TestApplyRequiresManager(t *testing.T) {
	a, eng := newApplier(t)
	ctx := context.Background()
	_, _, err := a.Apply(ctx, projectID, roadmap.Roadmap{Tasks: []roadmap.TaskSpec{{Title: "x"}}}, gainer)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	tasks, err := eng.ListTasks(ctx, projectID, engine.TaskListOptions{})
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestApplyUnknownProject(t *testing.T) {
	a, _ := newApplier(t)
	_, _, err := a.Apply(context.Background(), "missing", roadmap.Roadmap{Tasks: []roadmap.TaskSpec{{Title: "x"}}}, owner)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
