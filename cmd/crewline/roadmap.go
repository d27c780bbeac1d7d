package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crewline/internal/app"
	"crewline/internal/planning"
)

func roadmapCmd() *cobra.Command {
	rm := &cobra.Command{
		Use:   "roadmap",
		Short: "Generate or apply a project roadmap",
		Long:  "A roadmap is a batch of milestones, tasks, subtasks and dependencies. It is applied in one transaction: either all of it lands or none of it does.",
	}

	var req planning.PlanRequest
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Ask the configured generator for a roadmap and apply it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Planner.GenerateRoadmap(ctx, projectID, req, actorID())
				if err != nil {
					return err
				}
				return printRoadmapResult(res)
			})
		},
	}
	gen.Flags().StringArrayVar(&req.Goals, "goal", nil, "project goal (repeatable)")
	gen.Flags().StringArrayVar(&req.Constraints, "constraint", nil, "constraint (repeatable)")
	gen.Flags().StringSliceVar(&req.TechStack, "tech", nil, "technologies, comma separated")
	gen.Flags().IntVar(&req.DurationWeeks, "weeks", 0, "target duration in weeks")
	gen.Flags().StringVar(&req.Notes, "notes", "", "free-form notes for the generator")
	rm.AddCommand(gen)

	var file string
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply roadmap JSON from a file (- for stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Planner.ApplyRoadmap(ctx, projectID, raw, actorID())
				if err != nil {
					return err
				}
				return printRoadmapResult(res)
			})
		},
	}
	apply.Flags().StringVarP(&file, "file", "f", "", "roadmap file")
	_ = apply.MarkFlagRequired("file")
	rm.AddCommand(apply)
	return rm
}

func taskElaborateCmd() *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   "elaborate <id>",
		Short: "Ask the generator for implementation guidance on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				res, err := a.Planner.ElaborateTask(ctx, projectID, args[0], planning.ElaborateRequest{Focus: focus}, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(res.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "what the guidance should concentrate on")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
