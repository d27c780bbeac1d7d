package engine

import (
	"context"
	"database/sql"
	"fmt"

	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
)

// AddDependency records that taskID cannot be Done before dependsOnID is.
// The cycle check and the insert share the project lock and transaction, so
// two opposing edges racing each other cannot both pass.
func (e Engine) AddDependency(ctx context.Context, projectID, taskID, dependsOnID, actorID string) (domain.Dependency, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Dependency{}, err
	}
	d := domain.Dependency{TaskID: taskID, DependsOnTaskID: dependsOnID, CreatedBy: actorID}
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		g, err := e.Repo.LoadGraph(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := g.AddEdge(taskID, dependsOnID); err != nil {
			return err
		}
		d.CreatedAt = e.stamp()
		if err := e.Repo.InsertDependency(ctx, tx, d); err != nil {
			return err
		}
		return e.append(ctx, tx, events.DependencyAdded, projectID, "task", taskID, actorID, events.Payload{"depends_on": dependsOnID})
	})
	if err != nil {
		return domain.Dependency{}, fmt.Errorf("add dependency: %w", err)
	}
	return d, nil
}

func (e Engine) RemoveDependency(ctx context.Context, projectID, taskID, dependsOnID, actorID string) error {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return err
	}
	return e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		if err := e.Repo.DeleteDependency(ctx, tx, taskID, dependsOnID); err != nil {
			return err
		}
		return e.append(ctx, tx, events.DependencyRemoved, projectID, "task", taskID, actorID, events.Payload{"depends_on": dependsOnID})
	})
}

func (e Engine) ListDependencies(ctx context.Context, projectID, taskID string) ([]domain.Dependency, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	if err := e.Repo.EnsureTask(ctx, nil, projectID, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListDependencies(ctx, nil, taskID)
}
