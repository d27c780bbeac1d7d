package engine_test

import (
	"context"
	"errors"
	"fmt"
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
	"crewline/internal/repo"
)

const (
	projectID = "proj-1"
	owner     = "owner"
	mentor    = "mentor"
	gainer    = "gainer"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	eng := engine.New(conn, members.New(repo.Repo{DB: conn}))
	var tick atomic.Int64
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	ctx := context.Background()
	_, err = eng.CreateProject(ctx, engine.ProjectInput{ID: projectID, Name: "Food bank app", CreatorKind: domain.KindNonprofit}, owner)
	require.NoError(t, err)
	_, err = eng.AddMember(ctx, projectID, engine.MemberInput{UserID: mentor, Kind: domain.KindMentor, Role: "Mentor"}, owner)
	require.NoError(t, err)
	_, err = eng.AddMember(ctx, projectID, engine.MemberInput{UserID: gainer, Kind: domain.KindGainer, Role: "Backend Developer"}, owner)
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) task(t *testing.T, title string, deps ...string) domain.Task {
	t.Helper()
	task, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: title, DependsOn: deps}, mentor)
	require.NoError(t, err)
	return task
}

func (env testEnv) status(t *testing.T, id string, st domain.TaskStatus) (domain.Task, domain.Effects, error) {
	t.Helper()
	return env.Engine.ChangeTaskStatus(env.Ctx, projectID, id, st, gainer)
}

func TestCreateTaskOrderIndexIncreases(t *testing.T) {
	env := newTestEnv(t)
	prev := -1
	for i := 0; i < 6; i++ {
		task, fx, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{
			Title:    fmt.Sprintf("task %d", i),
			Subtasks: []engine.SubtaskInput{{Title: "a"}, {Title: "b"}},
		}, owner)
		require.NoError(t, err)
		require.Greater(t, task.OrderIndex, prev)
		prev = task.OrderIndex
		require.Len(t, fx.TasksCreated, 1)
		require.Equal(t, domain.StatusTodo, task.Status)
		require.Equal(t, domain.TypeFeature, task.Type)
		require.Equal(t, domain.PriorityMedium, task.Priority)
		require.Equal(t, 2, task.SubtaskCount)
		require.Equal(t, []int{0, 1}, []int{task.Subtasks[0].OrderIndex, task.Subtasks[1].OrderIndex})
		require.Equal(t, owner, task.Subtasks[0].CreatedBy)
	}
}

func TestCreateTaskAtPositionShiftsTail(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "a")
	b := env.task(t, "b")
	at := 1
	c, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "c", OrderIndex: &at}, mentor)
	require.NoError(t, err)
	require.Equal(t, 1, c.OrderIndex)

	board, err := env.Engine.ListTasks(env.Ctx, projectID, engine.TaskListOptions{})
	require.NoError(t, err)
	var ids []string
	for _, task := range board {
		ids = append(ids, task.ID)
	}
	require.Equal(t, []string{a.ID, c.ID, b.ID}, ids)
	require.Equal(t, 2, board[2].OrderIndex)
}

func TestReorderTaskShiftsRange(t *testing.T) {
	env := newTestEnv(t)
	var tasks []domain.Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, env.task(t, fmt.Sprintf("t%d", i)))
	}
	moved, err := env.Engine.ReorderTask(env.Ctx, projectID, tasks[5].ID, 2, mentor)
	require.NoError(t, err)
	require.Equal(t, 2, moved.OrderIndex)

	board, err := env.Engine.ListTasks(env.Ctx, projectID, engine.TaskListOptions{})
	require.NoError(t, err)
	idx := map[string]int{}
	seen := map[int]bool{}
	for _, task := range board {
		require.False(t, seen[task.OrderIndex], "duplicate index %d", task.OrderIndex)
		seen[task.OrderIndex] = true
		idx[task.ID] = task.OrderIndex
	}
	require.Equal(t, 3, idx[tasks[2].ID])
	require.Equal(t, 4, idx[tasks[3].ID])
	require.Equal(t, 5, idx[tasks[4].ID])
	require.Equal(t, 1, idx[tasks[1].ID])
	require.Equal(t, 6, idx[tasks[6].ID])
}

func TestDoneRequiresSatisfiedDependencies(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A")
	_, fx, err := env.status(t, a.ID, domain.StatusDone)
	require.NoError(t, err)
	require.Len(t, fx.TasksCompleted, 1)

	b := env.task(t, "B", a.ID)
	c := env.task(t, "C", b.ID)
	require.True(t, b.DependenciesSatisfied)
	require.False(t, c.DependenciesSatisfied)

	_, _, err = env.status(t, c.ID, domain.StatusDone)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, _, err = env.status(t, b.ID, domain.StatusDone)
	require.NoError(t, err)

	done, fx, err := env.status(t, c.ID, domain.StatusDone)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Len(t, fx.TasksCompleted, 1)

	reopened, _, err := env.status(t, c.ID, domain.StatusTodo)
	require.NoError(t, err)
	require.Nil(t, reopened.CompletedAt)
}

func TestDoneGateTracksGraphChanges(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A")
	b := env.task(t, "B")
	_, _, err := env.status(t, a.ID, domain.StatusDone)
	require.NoError(t, err)

	_, err = env.Engine.AddDependency(env.Ctx, projectID, b.ID, a.ID, mentor)
	require.NoError(t, err)
	_, _, err = env.status(t, a.ID, domain.StatusTodo)
	require.NoError(t, err)

	got, err := env.Engine.GetTask(env.Ctx, projectID, b.ID)
	require.NoError(t, err)
	require.False(t, got.DependenciesSatisfied)
	_, _, err = env.status(t, b.ID, domain.StatusDone)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, env.Engine.RemoveDependency(env.Ctx, projectID, b.ID, a.ID, mentor))
	done, fx, err := env.status(t, b.ID, domain.StatusDone)
	require.NoError(t, err)
	require.True(t, done.DependenciesSatisfied)
	require.Len(t, fx.TasksCompleted, 1)
}

func TestBlockAndUnblock(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A")
	blocked, fx, err := env.status(t, a.ID, domain.StatusBlocked)
	require.NoError(t, err)
	require.True(t, blocked.IsBlocked)
	require.True(t, fx.Empty())

	_, _, err = env.status(t, a.ID, domain.StatusDone)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	unblocked, fx, err := env.status(t, a.ID, domain.StatusInProgress)
	require.NoError(t, err)
	require.False(t, unblocked.IsBlocked)
	require.Len(t, fx.TasksUnblocked, 1)
	require.Equal(t, a.ID, fx.TasksUnblocked[0].ID)
}

func TestAddDependencyErrors(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A")
	b := env.task(t, "B")
	c := env.task(t, "C")

	_, err := env.Engine.AddDependency(env.Ctx, projectID, a.ID, a.ID, mentor)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.Engine.AddDependency(env.Ctx, projectID, a.ID, b.ID, mentor)
	require.NoError(t, err)
	_, err = env.Engine.AddDependency(env.Ctx, projectID, a.ID, b.ID, mentor)
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = env.Engine.AddDependency(env.Ctx, projectID, b.ID, c.ID, mentor)
	require.NoError(t, err)
	_, err = env.Engine.AddDependency(env.Ctx, projectID, c.ID, a.ID, mentor)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.Engine.AddDependency(env.Ctx, projectID, a.ID, "missing", mentor)
	require.ErrorIs(t, err, domain.ErrNotFound)

	deps, err := env.Engine.ListDependencies(env.Ctx, projectID, a.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)

	require.ErrorIs(t, env.Engine.RemoveDependency(env.Ctx, projectID, a.ID, c.ID, mentor), domain.ErrNotFound)
	require.NoError(t, env.Engine.RemoveDependency(env.Ctx, projectID, b.ID, c.ID, mentor))
	_, err = env.Engine.AddDependency(env.Ctx, projectID, c.ID, a.ID, mentor)
	require.NoError(t, err)
}

func TestConcurrentOpposingEdges(t *testing.T) {
	for round := 0; round < 5; round++ {
		env := newTestEnv(t)
		a := env.task(t, "A")
		b := env.task(t, "B")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		pairs := [][2]string{{a.ID, b.ID}, {b.ID, a.ID}}
		for i, p := range pairs {
			wg.Add(1)
			go func(i int, from, to string) {
				defer wg.Done()
				_, errs[i] = env.Engine.AddDependency(env.Ctx, projectID, from, to, mentor)
			}(i, p[0], p[1])
		}
		wg.Wait()

		ok, cycle := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInvalidState):
				cycle++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 1, ok)
		require.Equal(t, 1, cycle)
	}
}

func TestToggleSubtaskIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	task, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "T", Subtasks: []engine.SubtaskInput{{Title: "s"}}}, mentor)
	require.NoError(t, err)
	sid := task.Subtasks[0].ID

	first, err := env.Engine.ToggleSubtask(env.Ctx, projectID, task.ID, sid, true, gainer)
	require.NoError(t, err)
	require.True(t, first.IsDone)
	require.NotNil(t, first.CompletedAt)

	second, err := env.Engine.ToggleSubtask(env.Ctx, projectID, task.ID, sid, true, gainer)
	require.NoError(t, err)
	require.Equal(t, first, second)

	got, err := env.Engine.GetTask(env.Ctx, projectID, task.ID)
	require.NoError(t, err)
	require.Equal(t, *first.CompletedAt, *got.Subtasks[0].CompletedAt)
	require.Equal(t, 1, got.CompletedSubtaskCount)

	cleared, err := env.Engine.ToggleSubtask(env.Ctx, projectID, task.ID, sid, false, gainer)
	require.NoError(t, err)
	require.Nil(t, cleared.CompletedAt)
}

func TestSubtaskReorderAndDelete(t *testing.T) {
	env := newTestEnv(t)
	task, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{
		Title:    "T",
		Subtasks: []engine.SubtaskInput{{Title: "one"}, {Title: "two"}, {Title: "three"}},
	}, mentor)
	require.NoError(t, err)
	last := task.Subtasks[2]
	moved, err := env.Engine.ReorderSubtask(env.Ctx, projectID, task.ID, last.ID, 0, gainer)
	require.NoError(t, err)
	require.Equal(t, 0, moved.OrderIndex)

	require.NoError(t, env.Engine.DeleteSubtask(env.Ctx, projectID, task.ID, task.Subtasks[0].ID, gainer))
	got, err := env.Engine.GetTask(env.Ctx, projectID, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Subtasks, 2)
	require.Equal(t, "three", got.Subtasks[0].Title)

	added, err := env.Engine.CreateSubtask(env.Ctx, projectID, task.ID, engine.SubtaskInput{Title: "four"}, gainer)
	require.NoError(t, err)
	require.Equal(t, 3, added.OrderIndex)
}

func TestDeleteTaskCascades(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A")
	b := env.task(t, "B", a.ID)
	c := env.task(t, "C", b.ID)
	_, err := env.Engine.AddReference(env.Ctx, projectID, b.ID, engine.ReferenceInput{Type: "pull request", URL: "https://example.org/pr/1"}, mentor)
	require.NoError(t, err)

	require.NoError(t, env.Engine.DeleteTask(env.Ctx, projectID, b.ID, mentor))
	_, err = env.Engine.GetTask(env.Ctx, projectID, b.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := env.Engine.GetTask(env.Ctx, projectID, c.ID)
	require.NoError(t, err)
	require.Empty(t, got.DependsOn)
	require.True(t, got.DependenciesSatisfied)

	require.ErrorIs(t, env.Engine.DeleteTask(env.Ctx, projectID, b.ID, mentor), domain.ErrNotFound)
}

func TestDeleteMilestoneDetachesTasks(t *testing.T) {
	env := newTestEnv(t)
	m, err := env.Engine.CreateMilestone(env.Ctx, projectID, engine.MilestoneInput{Title: "MVP"}, owner)
	require.NoError(t, err)
	task, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "T", MilestoneID: &m.ID}, mentor)
	require.NoError(t, err)

	listed, err := env.Engine.ListMilestones(env.Ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, 1, listed[0].TaskCount)

	require.NoError(t, env.Engine.DeleteMilestone(env.Ctx, projectID, m.ID, owner))
	got, err := env.Engine.GetTask(env.Ctx, projectID, task.ID)
	require.NoError(t, err)
	require.Nil(t, got.MilestoneID)
}

func TestMilestoneStatusEffects(t *testing.T) {
	env := newTestEnv(t)
	m, err := env.Engine.CreateMilestone(env.Ctx, projectID, engine.MilestoneInput{Title: "MVP", TargetDate: strPtr("2024-03-01")}, owner)
	require.NoError(t, err)
	require.Equal(t, "2024-03-01T00:00:00Z", *m.TargetDate)

	_, fx, err := env.Engine.ChangeMilestoneStatus(env.Ctx, projectID, m.ID, domain.MilestoneInProgress, mentor)
	require.NoError(t, err)
	require.True(t, fx.Empty())
	done, fx, err := env.Engine.ChangeMilestoneStatus(env.Ctx, projectID, m.ID, domain.MilestoneCompleted, mentor)
	require.NoError(t, err)
	require.Equal(t, domain.MilestoneCompleted, done.Status)
	require.Len(t, fx.MilestonesCompleted, 1)

	_, _, err = env.Engine.ChangeMilestoneStatus(env.Ctx, projectID, m.ID, domain.MilestoneCancelled, mentor)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMilestoneMustBelongToProject(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectInput{ID: "other", Name: "Other"}, owner)
	require.NoError(t, err)
	foreign, err := env.Engine.CreateMilestone(env.Ctx, "other", engine.MilestoneInput{Title: "Elsewhere"}, owner)
	require.NoError(t, err)

	_, _, err = env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "T", MilestoneID: &foreign.ID}, owner)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthorization(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "T"}, gainer)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "T"}, "stranger")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = env.Engine.CreateTask(env.Ctx, "nope", engine.TaskInput{Title: "T"}, owner)
	require.ErrorIs(t, err, domain.ErrNotFound)

	task := env.task(t, "T")
	_, _, err = env.status(t, task.ID, domain.StatusInProgress)
	require.NoError(t, err)

	require.NoError(t, env.Engine.LeaveProject(env.Ctx, projectID, gainer, gainer))
	_, _, err = env.status(t, task.ID, domain.StatusTodo)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAssigneeMustBeActiveMember(t *testing.T) {
	env := newTestEnv(t)
	task, _, err := env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "API", AssignedUserID: strPtr(gainer)}, mentor)
	require.NoError(t, err)
	require.Equal(t, "Backend Developer", *task.AssignedRole)

	_, _, err = env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{Title: "API", AssignedUserID: strPtr("ghost")}, mentor)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, _, err = env.Engine.CreateTask(env.Ctx, projectID, engine.TaskInput{
		Title: "API", AssignedUserID: strPtr(gainer), AssignedRole: strPtr("Designer"),
	}, mentor)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, env.Engine.LeaveProject(env.Ctx, projectID, gainer, owner))
	_, err = env.Engine.UpdateTask(env.Ctx, projectID, task.ID, engine.TaskPatch{AssignedUserID: strPtr(gainer)}, mentor)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	cleared, err := env.Engine.UpdateTask(env.Ctx, projectID, task.ID, engine.TaskPatch{AssignedUserID: strPtr("")}, mentor)
	require.NoError(t, err)
	require.Nil(t, cleared.AssignedUserID)
}

func TestCommitPlanRollsBackOnInvalidGraph(t *testing.T) {
	env := newTestEnv(t)
	now := "2024-01-01T00:00:00Z"
	m := domain.Milestone{ID: "m1", ProjectID: projectID, Title: "M", Status: domain.MilestonePlanned, CreatedAt: now, CreatedBy: owner}
	t1 := domain.Task{ID: "t1", ProjectID: projectID, Title: "one", Type: domain.TypeFeature, Status: domain.StatusTodo, Priority: domain.PriorityLow, MilestoneID: strPtr("m1"), CreatedAt: now, UpdatedAt: now, CreatedBy: owner}
	t2 := t1
	t2.ID, t2.Title, t2.OrderIndex = "t2", "two", 1
	plan := repo.Plan{
		Milestones: []domain.Milestone{m},
		Tasks:      []domain.Task{t1, t2},
		Dependencies: []domain.Dependency{
			{TaskID: "t1", DependsOnTaskID: "t2", CreatedAt: now, CreatedBy: owner},
			{TaskID: "t2", DependsOnTaskID: "t1", CreatedAt: now, CreatedBy: owner},
		},
	}
	_, _, err := env.Engine.CommitPlan(env.Ctx, projectID, plan, owner)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	tasks, err := env.Engine.ListTasks(env.Ctx, projectID, engine.TaskListOptions{})
	require.NoError(t, err)
	require.Empty(t, tasks)
	ms, err := env.Engine.ListMilestones(env.Ctx, projectID)
	require.NoError(t, err)
	require.Empty(t, ms)

	plan.Dependencies = plan.Dependencies[:1]
	res, fx, err := env.Engine.CommitPlan(env.Ctx, projectID, plan, owner)
	require.NoError(t, err)
	require.Len(t, res.Milestones, 1)
	require.Len(t, res.Tasks, 2)
	require.Len(t, fx.TasksCreated, 2)
	assert.Equal(t, 2, res.Milestones[0].TaskCount)
	assert.Equal(t, []string{"t2"}, res.Tasks[0].DependsOn)
}

func TestCommitPlanDropsDepartedAssignee(t *testing.T) {
	env := newTestEnv(t)
	now := "2024-01-01T00:00:00Z"
	base := domain.Task{ProjectID: projectID, Type: domain.TypeFeature, Status: domain.StatusTodo, Priority: domain.PriorityMedium,
		CreatedAt: now, UpdatedAt: now, CreatedBy: owner, AssignedRole: strPtr("Backend Developer"), AssignedUserID: strPtr(gainer)}
	departed := base
	departed.ID, departed.Title = "t1", "API"
	renamed := base
	renamed.ID, renamed.Title, renamed.OrderIndex = "t2", "Mockups", 1
	renamed.AssignedRole = strPtr("Designer")

	require.NoError(t, env.Engine.LeaveProject(env.Ctx, projectID, gainer, owner))
	res, fx, err := env.Engine.CommitPlan(env.Ctx, projectID, repo.Plan{Tasks: []domain.Task{departed, renamed}}, owner)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	require.Len(t, fx.TasksCreated, 2)
	for _, task := range res.Tasks {
		assert.Nil(t, task.AssignedUserID, task.Title)
		require.NotNil(t, task.AssignedRole, task.Title)
	}
	assert.Equal(t, "Backend Developer", *res.Tasks[0].AssignedRole)
	assert.Equal(t, "Designer", *res.Tasks[1].AssignedRole)
}

func TestEventsAreRecorded(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "T")
	_, _, err := env.status(t, task.ID, domain.StatusInProgress)
	require.NoError(t, err)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{ProjectID: projectID, EntityID: task.ID})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "task.status", evts[0].Type)
	assert.Equal(t, gainer, evts[0].ActorID)
	assert.Equal(t, "task.created", evts[1].Type)
}

func strPtr(s string) *string { return &s }
