// Package planning drives roadmap generation: it assembles project context,
// calls the generator, applies the result and hands effects to the sink.
package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crewline/internal/ctxlog"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/engine/auth"
	"crewline/internal/notify"
	"crewline/internal/roadmap"
)

const DefaultTimeout = 90 * time.Second

type PlanRequest struct {
	Goals         []string `json:"goals,omitempty"`
	Constraints   []string `json:"constraints,omitempty"`
	TechStack     []string `json:"tech_stack,omitempty"`
	DurationWeeks int      `json:"duration_weeks,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type ElaborateRequest struct {
	Focus string `json:"focus,omitempty"`
}

type Elaboration struct {
	TaskID string `json:"task_id"`
	Text   string `json:"text"`
}

// Orchestrator ties the engine to the external generator and sink.
type Orchestrator struct {
	Engine    engine.Engine
	Applier   roadmap.Applier
	Generator domain.RoadmapGenerator
	Sink      domain.NotificationSink
	Members   domain.MembershipProvider
	Timeout   time.Duration
}

func New(eng engine.Engine, members domain.MembershipProvider, gen domain.RoadmapGenerator, sink domain.NotificationSink, timeout time.Duration) Orchestrator {
	return Orchestrator{
		Engine:    eng,
		Applier:   roadmap.Applier{Store: eng, Members: members, Now: eng.Now},
		Generator: gen,
		Sink:      sink,
		Members:   members,
		Timeout:   timeout,
	}
}

func (o Orchestrator) auth() auth.Service {
	return auth.Service{Members: o.Members}
}

func (o Orchestrator) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// GenerateRoadmap asks the generator for a roadmap and applies it.
func (o Orchestrator) GenerateRoadmap(ctx context.Context, projectID string, req PlanRequest, actorID string) (roadmap.Result, error) {
	project, err := o.Engine.GetProject(ctx, projectID)
	if err != nil {
		return roadmap.Result{}, err
	}
	if _, err := o.auth().Require(ctx, projectID, actorID, auth.Manager); err != nil {
		return roadmap.Result{}, err
	}
	roster, err := o.Members.GetActiveMembers(ctx, projectID)
	if err != nil {
		return roadmap.Result{}, err
	}
	existing, err := o.Engine.ListTasks(ctx, projectID, engine.TaskListOptions{})
	if err != nil {
		return roadmap.Result{}, err
	}
	text, err := render(roadmapContext, roadmapData{Project: project, Members: roster, Request: req, Existing: existing})
	if err != nil {
		return roadmap.Result{}, err
	}

	log := ctxlog.FromContext(ctx).With("project_id", projectID)
	log.Debug("generating roadmap", "context_bytes", len(text))
	raw, err := o.call(ctx, domain.RoadmapGenerator.Generate, text)
	if err != nil {
		log.Warn("roadmap generation failed", "error", err)
		return roadmap.Result{}, err
	}
	return o.apply(ctx, projectID, raw, actorID)
}

// ApplyRoadmap applies a caller-supplied roadmap document.
func (o Orchestrator) ApplyRoadmap(ctx context.Context, projectID, raw, actorID string) (roadmap.Result, error) {
	if _, err := o.Engine.GetProject(ctx, projectID); err != nil {
		return roadmap.Result{}, err
	}
	if _, err := o.auth().Require(ctx, projectID, actorID, auth.Manager); err != nil {
		return roadmap.Result{}, err
	}
	return o.apply(ctx, projectID, raw, actorID)
}

func (o Orchestrator) apply(ctx context.Context, projectID, raw, actorID string) (roadmap.Result, error) {
	rm, err := roadmap.Parse(raw)
	if err != nil {
		return roadmap.Result{}, err
	}
	res, fx, err := o.Applier.Apply(ctx, projectID, rm, actorID)
	if err != nil {
		return roadmap.Result{}, err
	}
	_ = notify.Dispatch(ctx, o.Sink, fx)
	return res, nil
}

// ElaborateTask returns advisory guidance for one task. Nothing is stored.
func (o Orchestrator) ElaborateTask(ctx context.Context, projectID, taskID string, req ElaborateRequest, actorID string) (Elaboration, error) {
	project, err := o.Engine.GetProject(ctx, projectID)
	if err != nil {
		return Elaboration{}, err
	}
	if _, err := o.auth().Require(ctx, projectID, actorID, auth.Member); err != nil {
		return Elaboration{}, err
	}
	task, err := o.Engine.GetTask(ctx, projectID, taskID)
	if err != nil {
		return Elaboration{}, err
	}
	roster, err := o.Members.GetActiveMembers(ctx, projectID)
	if err != nil {
		return Elaboration{}, err
	}
	var prereqs []domain.Task
	for _, id := range task.DependsOn {
		dep, err := o.Engine.GetTask(ctx, projectID, id)
		if err != nil {
			return Elaboration{}, err
		}
		prereqs = append(prereqs, dep)
	}
	text, err := render(elaborateContext, elaborateData{
		Project:       project,
		Members:       roster,
		Task:          task,
		Prerequisites: prereqs,
		Focus:         strings.TrimSpace(req.Focus),
	})
	if err != nil {
		return Elaboration{}, err
	}
	out, err := o.call(ctx, domain.RoadmapGenerator.Elaborate, text)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("task elaboration failed", "project_id", projectID, "task_id", taskID, "error", err)
		return Elaboration{}, err
	}
	return Elaboration{TaskID: task.ID, Text: out}, nil
}

// call runs fn under the configured timeout and folds every failure into
// ErrGenerationFailed.
func (o Orchestrator) call(ctx context.Context, fn func(domain.RoadmapGenerator, context.Context, string) (string, error), text string) (string, error) {
	if o.Generator == nil {
		return "", fmt.Errorf("%w: no roadmap generator configured", domain.ErrGenerationFailed)
	}
	cctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()
	out, err := fn(o.Generator, cctx, text)
	if err == nil && cctx.Err() != nil {
		err = cctx.Err()
	}
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: generator timed out after %s", domain.ErrGenerationFailed, o.timeout())
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrGenerationFailed)
	}
	return out, nil
}
