package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"crewline/internal/domain"
	"crewline/internal/roadmap"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.Bold, color.FgRed).SprintFunc()
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func taskStatus(s domain.TaskStatus) string {
	switch s {
	case domain.StatusDone:
		return success(string(s))
	case domain.StatusInProgress:
		return warning(string(s))
	case domain.StatusBlocked:
		return failure(string(s))
	}
	return string(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func printTasks(tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"#", "ID", "Title", "Type", "Status", "Priority", "Assignee", "Due", "Subtasks", "Deps"})
	for _, t := range tasks {
		assignee := deref(t.AssignedUserID)
		if role := deref(t.AssignedRole); role != "" {
			if assignee == "" {
				assignee = dim(role)
			} else {
				assignee += " (" + role + ")"
			}
		}
		deps := fmt.Sprintf("%d", len(t.DependsOn))
		if len(t.DependsOn) > 0 && !t.DependenciesSatisfied {
			deps = warning(deps + " open")
		}
		status := taskStatus(t.Status)
		if t.IsBlocked && t.Status != domain.StatusBlocked {
			status += failure(" !")
		}
		tw.AppendRow(table.Row{
			t.OrderIndex, t.ID, t.Title, t.Type, status, t.Priority, assignee,
			dueDate(t.DueAt), fmt.Sprintf("%d/%d", t.CompletedSubtaskCount, t.SubtaskCount), deps,
		})
	}
	tw.Render()
	return nil
}

func printTask(t domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	fmt.Printf("%s %s\n", bold(t.Title), dim(t.ID))
	fmt.Printf("  %s  %s  %s\n", taskStatus(t.Status), t.Type, t.Priority)
	if t.Description != "" {
		fmt.Printf("  %s\n", t.Description)
	}
	if m := deref(t.MilestoneID); m != "" {
		fmt.Printf("  milestone: %s\n", m)
	}
	if a := deref(t.AssignedUserID); a != "" || t.AssignedRole != nil {
		fmt.Printf("  assignee: %s %s\n", a, dim(deref(t.AssignedRole)))
	}
	if t.DueAt != nil {
		fmt.Printf("  due: %s\n", dueDate(t.DueAt))
	}
	if len(t.DependsOn) > 0 {
		state := success("satisfied")
		if !t.DependenciesSatisfied {
			state = warning("open")
		}
		fmt.Printf("  depends on: %s (%s)\n", strings.Join(t.DependsOn, ", "), state)
	}
	for _, st := range t.Subtasks {
		mark := "[ ]"
		if st.IsDone {
			mark = success("[x]")
		}
		fmt.Printf("  %s %s %s\n", mark, st.Title, dim(st.ID))
	}
	for _, ref := range t.References {
		fmt.Printf("  %s %s %s\n", dim(string(ref.Type)), ref.URL, ref.Title)
	}
	return nil
}

func dueDate(s *string) string {
	if s == nil {
		return ""
	}
	if len(*s) >= 10 {
		return (*s)[:10]
	}
	return *s
}

func printMilestones(items []domain.Milestone) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"#", "ID", "Title", "Status", "Target", "Tasks"})
	for _, m := range items {
		status := string(m.Status)
		if m.Status == domain.MilestoneCompleted {
			status = success(status)
		}
		tw.AppendRow(table.Row{m.OrderIndex, m.ID, m.Title, status, dueDate(m.TargetDate), fmt.Sprintf("%d/%d", m.CompletedTaskCount, m.TaskCount)})
	}
	tw.Render()
	return nil
}

func printMembers(items []domain.Member) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"User", "Role", "Kind", "Admin", "Joined", "Left"})
	for _, m := range items {
		admin := ""
		if m.IsAdmin {
			admin = "yes"
		}
		tw.AppendRow(table.Row{m.UserID, m.Role, m.Kind, admin, dueDate(&m.JoinedAt), dueDate(m.LeftAt)})
	}
	tw.Render()
	return nil
}

func printEvents(items []domain.Event) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
	for _, ev := range items {
		tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID})
	}
	tw.Render()
	return nil
}

func printRoadmapResult(res roadmap.Result) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	if len(res.Milestones) > 0 {
		if err := printMilestones(res.Milestones); err != nil {
			return err
		}
	}
	if len(res.Tasks) > 0 {
		if err := printTasks(res.Tasks); err != nil {
			return err
		}
	}
	for _, s := range res.Skipped {
		fmt.Printf("%s task %d %q: %s\n", warning("skipped"), s.Index, s.Title, s.Reason)
	}
	for _, n := range res.Notes {
		fmt.Println(dim("note:"), n)
	}
	return nil
}
