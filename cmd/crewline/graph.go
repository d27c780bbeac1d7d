package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crewline/internal/app"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/repo"
)

// changed returns &v when the flag was set on the command line.
func changed(cmd *cobra.Command, name string, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("index must be a non-negative integer, got %q", s)
	}
	return n, nil
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}

	var in engine.ProjectInput
	var kind string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project; --actor-id joins as its admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.CreatorKind = domain.MemberKind(kind)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.CreateProject(ctx, in, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&in.ID, "id", "", "project id (random if omitted)")
	create.Flags().StringVar(&in.Name, "name", "", "project name")
	create.Flags().StringVar(&in.Description, "description", "", "description")
	create.Flags().StringVar(&in.CreatorRole, "role", "", "creator's role in the project")
	create.Flags().StringVar(&kind, "kind", "", "creator's kind (gainer, mentor, nonprofit)")
	_ = create.MarkFlagRequired("name")
	prj.AddCommand(create)

	prj.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})

	prj.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the project with its milestones and board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				p, err := a.Engine.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				milestones, err := a.Engine.ListMilestones(ctx, projectID)
				if err != nil {
					return err
				}
				tasks, err := a.Engine.ListTasks(ctx, projectID, engine.TaskListOptions{})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"project": p, "milestones": milestones, "tasks": tasks})
				}
				fmt.Printf("%s %s (%s)\n", bold(p.Name), dim(p.ID), p.Status)
				if p.Description != "" {
					fmt.Println(p.Description)
				}
				if err := printMilestones(milestones); err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	})
	return prj
}

func memberCmd() *cobra.Command {
	mem := &cobra.Command{Use: "member", Short: "Manage project members"}

	var in engine.MemberInput
	var kind string
	add := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Add or re-activate a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.UserID = args[0]
			in.Kind = domain.MemberKind(kind)
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				m, err := a.Engine.AddMember(ctx, projectID, in, actorID())
				if err != nil {
					return err
				}
				return printMembers([]domain.Member{m})
			})
		},
	}
	add.Flags().StringVar(&in.Role, "role", "", "role label, e.g. Backend Developer")
	add.Flags().StringVar(&kind, "kind", "gainer", "gainer, mentor or nonprofit")
	add.Flags().BoolVar(&in.IsAdmin, "admin", false, "grant admin")
	mem.AddCommand(add)

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				items, err := a.Engine.ListMembers(ctx, projectID, all)
				if err != nil {
					return err
				}
				return printMembers(items)
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include members who left")
	mem.AddCommand(list)

	mem.AddCommand(&cobra.Command{
		Use:   "leave [user-id]",
		Short: "Leave the project, or remove another member",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := actorID()
			if len(args) == 1 {
				userID = args[0]
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				if err := a.Engine.LeaveProject(ctx, projectID, userID, actorID()); err != nil {
					return err
				}
				fmt.Println(success("left:"), userID)
				return nil
			})
		},
	})
	return mem
}

func milestoneCmd() *cobra.Command {
	ms := &cobra.Command{Use: "milestone", Short: "Manage milestones"}

	var title, description, target string
	var order int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.MilestoneInput{Title: title, Description: description, TargetDate: changed(cmd, "target", target)}
			if cmd.Flags().Changed("order") {
				in.OrderIndex = &order
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				m, err := a.Engine.CreateMilestone(ctx, projectID, in, actorID())
				if err != nil {
					return err
				}
				return printMilestones([]domain.Milestone{m})
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "title")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&target, "target", "", "target date (RFC3339 or YYYY-MM-DD)")
	create.Flags().IntVar(&order, "order", 0, "insert position")
	_ = create.MarkFlagRequired("title")
	ms.AddCommand(create)

	ms.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List milestones in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				items, err := a.Engine.ListMilestones(ctx, projectID)
				if err != nil {
					return err
				}
				return printMilestones(items)
			})
		},
	})

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update milestone fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := engine.MilestonePatch{
				Title:       changed(cmd, "title", title),
				Description: changed(cmd, "description", description),
				TargetDate:  changed(cmd, "target", target),
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				m, err := a.Engine.UpdateMilestone(ctx, projectID, args[0], patch, actorID())
				if err != nil {
					return err
				}
				return printMilestones([]domain.Milestone{m})
			})
		},
	}
	update.Flags().StringVar(&title, "title", "", "title")
	update.Flags().StringVar(&description, "description", "", "description")
	update.Flags().StringVar(&target, "target", "", "target date; empty clears it")
	ms.AddCommand(update)

	ms.AddCommand(&cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set status (Planned, InProgress, Completed, Cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseMilestoneStatus(args[1])
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				m, fx, err := a.Engine.ChangeMilestoneStatus(ctx, projectID, args[0], status, actorID())
				if err != nil {
					return err
				}
				a.Notify(ctx, fx)
				return printMilestones([]domain.Milestone{m})
			})
		},
	})

	ms.AddCommand(&cobra.Command{
		Use:   "move <id> <index>",
		Short: "Move a milestone to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				m, err := a.Engine.ReorderMilestone(ctx, projectID, args[0], idx, actorID())
				if err != nil {
					return err
				}
				return printMilestones([]domain.Milestone{m})
			})
		},
	})

	ms.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a milestone; its tasks are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				return a.Engine.DeleteMilestone(ctx, projectID, args[0], actorID())
			})
		},
	})
	return ms
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks sit on one ordered board per project. They move Todo -> InProgress -> Done and can only be Done once every dependency is Done.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				t, err := a.Engine.GetTask(ctx, projectID, args[0])
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	})
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(&cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set status (Todo, InProgress, Blocked, Done)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseTaskStatus(args[1])
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				t, fx, err := a.Engine.ChangeTaskStatus(ctx, projectID, args[0], status, actorID())
				if err != nil {
					return err
				}
				a.Notify(ctx, fx)
				for _, u := range fx.TasksUnblocked {
					fmt.Println(success("unblocked:"), u.Title, dim(u.ID))
				}
				return printTask(t)
			})
		},
	})
	task.AddCommand(&cobra.Command{
		Use:   "move <id> <index>",
		Short: "Move a task to a new board position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				t, err := a.Engine.ReorderTask(ctx, projectID, args[0], idx, actorID())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	})
	task.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task with its subtasks and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				return a.Engine.DeleteTask(ctx, projectID, args[0], actorID())
			})
		},
	})
	task.AddCommand(taskElaborateCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var (
		title, description, typ, priority string
		milestone, role, assignee, due    string
		order                             int
		dependsOn, subtasks               []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.TaskInput{
				Title:          title,
				Description:    description,
				Type:           domain.TaskType(typ),
				Priority:       domain.Priority(priority),
				MilestoneID:    changed(cmd, "milestone", milestone),
				AssignedRole:   changed(cmd, "role", role),
				AssignedUserID: changed(cmd, "assignee", assignee),
				DueAt:          changed(cmd, "due", due),
				DependsOn:      dependsOn,
			}
			if cmd.Flags().Changed("order") {
				in.OrderIndex = &order
			}
			for _, st := range subtasks {
				in.Subtasks = append(in.Subtasks, engine.SubtaskInput{Title: st})
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				t, fx, err := a.Engine.CreateTask(ctx, projectID, in, actorID())
				if err != nil {
					return err
				}
				a.Notify(ctx, fx)
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&typ, "type", "", "Feature, Research, Infra, Docs or Refactor")
	cmd.Flags().StringVar(&priority, "priority", "", "Low, Medium, High or Critical")
	cmd.Flags().StringVar(&milestone, "milestone", "", "milestone id")
	cmd.Flags().StringVar(&role, "role", "", "assigned role")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assigned user id")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().IntVar(&order, "order", 0, "insert position on the board")
	cmd.Flags().StringArrayVar(&dependsOn, "depends-on", nil, "dependency task id (repeatable)")
	cmd.Flags().StringArrayVar(&subtasks, "subtask", nil, "subtask title (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var opts engine.TaskListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				tasks, err := a.Engine.ListTasks(ctx, projectID, opts)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&opts.MilestoneID, "milestone", "", "milestone filter")
	cmd.Flags().StringVar(&opts.AssignedUserID, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&opts.AssignedRole, "role", "", "role filter")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, typ, priority, milestone, role, assignee, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields; an empty value clears milestone, role, assignee or due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := engine.TaskPatch{
				Title:          changed(cmd, "title", title),
				Description:    changed(cmd, "description", description),
				MilestoneID:    changed(cmd, "milestone", milestone),
				AssignedRole:   changed(cmd, "role", role),
				AssignedUserID: changed(cmd, "assignee", assignee),
				DueAt:          changed(cmd, "due", due),
			}
			if cmd.Flags().Changed("type") {
				v := domain.TaskType(typ)
				patch.Type = &v
			}
			if cmd.Flags().Changed("priority") {
				v := domain.Priority(priority)
				patch.Priority = &v
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				t, err := a.Engine.UpdateTask(ctx, projectID, args[0], patch, actorID())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&typ, "type", "", "task type")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&milestone, "milestone", "", "milestone id")
	cmd.Flags().StringVar(&role, "role", "", "assigned role")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assigned user id")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	return cmd
}

func subtaskCmd() *cobra.Command {
	sub := &cobra.Command{Use: "subtask", Short: "Manage a task's checklist"}

	var description string
	add := &cobra.Command{
		Use:   "add <task-id> <title>",
		Short: "Append a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				st, err := a.Engine.CreateSubtask(ctx, projectID, args[0], engine.SubtaskInput{Title: args[1], Description: description}, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "description")
	sub.AddCommand(add)

	var title string
	update := &cobra.Command{
		Use:   "update <task-id> <subtask-id>",
		Short: "Edit a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := engine.SubtaskPatch{Title: changed(cmd, "title", title), Description: changed(cmd, "description", description)}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				st, err := a.Engine.UpdateSubtask(ctx, projectID, args[0], args[1], patch, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	update.Flags().StringVar(&title, "title", "", "title")
	update.Flags().StringVar(&description, "description", "", "description")
	sub.AddCommand(update)

	var undo bool
	done := &cobra.Command{
		Use:   "done <task-id> <subtask-id>",
		Short: "Tick a subtask (--undo to untick)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				st, err := a.Engine.ToggleSubtask(ctx, projectID, args[0], args[1], !undo, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	done.Flags().BoolVar(&undo, "undo", false, "mark as not done")
	sub.AddCommand(done)

	sub.AddCommand(&cobra.Command{
		Use:   "move <task-id> <subtask-id> <index>",
		Short: "Reorder a subtask",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[2])
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				st, err := a.Engine.ReorderSubtask(ctx, projectID, args[0], args[1], idx, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	})

	sub.AddCommand(&cobra.Command{
		Use:   "delete <task-id> <subtask-id>",
		Short: "Delete a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				return a.Engine.DeleteSubtask(ctx, projectID, args[0], args[1], actorID())
			})
		},
	})
	return sub
}

func depCmd() *cobra.Command {
	dep := &cobra.Command{Use: "dep", Short: "Manage task dependencies"}
	dep.AddCommand(&cobra.Command{
		Use:   "add <task-id> <depends-on-id>",
		Short: "Make a task depend on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				d, err := a.Engine.AddDependency(ctx, projectID, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	})
	dep.AddCommand(&cobra.Command{
		Use:   "rm <task-id> <depends-on-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				return a.Engine.RemoveDependency(ctx, projectID, args[0], args[1], actorID())
			})
		},
	})
	dep.AddCommand(&cobra.Command{
		Use:   "list <task-id>",
		Short: "List what a task depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				items, err := a.Engine.ListDependencies(ctx, projectID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return dep
}

func refCmd() *cobra.Command {
	ref := &cobra.Command{Use: "ref", Short: "Manage task references"}
	var typ, title string
	add := &cobra.Command{
		Use:   "add <task-id> <url>",
		Short: "Attach a link to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.ReferenceInput{Type: domain.ReferenceType(typ), URL: args[1], Title: title}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				r, err := a.Engine.AddReference(ctx, projectID, args[0], in, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	add.Flags().StringVar(&typ, "type", "", "Link, Document, PullRequest or Other")
	add.Flags().StringVar(&title, "title", "", "title")
	ref.AddCommand(add)
	ref.AddCommand(&cobra.Command{
		Use:   "list <task-id>",
		Short: "List references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				items, err := a.Engine.ListReferences(ctx, projectID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	ref.AddCommand(&cobra.Command{
		Use:   "rm <task-id> <reference-id>",
		Short: "Remove a reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				return a.Engine.RemoveReference(ctx, projectID, args[0], args[1], actorID())
			})
		},
	})
	return ref
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Audit log"}
	var f repo.EventFilter
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				f.ProjectID = projectID
				events, err := a.Engine.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				return printEvents(events)
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	tail.Flags().Int64Var(&f.Before, "before", 0, "only events older than this id")
	lg.AddCommand(tail)
	return lg
}

func apikeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage API keys for --actor-id"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				key, secret, err := a.Engine.CreateAPIKey(ctx, actorID(), name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": key, "secret": secret})
				}
				fmt.Println(bold(secret))
				fmt.Println(dim("id " + key.ID + "; store the secret now, it is not shown again"))
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label")
	keys.AddCommand(create)
	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListAPIKeys(ctx, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	keys.AddCommand(&cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.RevokeAPIKey(ctx, args[0], actorID())
			})
		},
	})
	return keys
}
