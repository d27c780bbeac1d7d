package repo

import (
	"context"
	"database/sql"
	"fmt"

	"crewline/internal/domain"
)

// Plan buffers a batch of new entities that must land together. Tasks carry
// their subtasks inline.
type Plan struct {
	Milestones   []domain.Milestone
	Tasks        []domain.Task
	Dependencies []domain.Dependency
}

func (p Plan) Empty() bool {
	return len(p.Milestones) == 0 && len(p.Tasks) == 0
}

// InsertPlan writes every buffered entity on tx. The caller owns commit and
// rollback, so a failure part way leaves nothing behind.
func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p Plan) error {
	if tx == nil {
		return fmt.Errorf("insert plan: transaction required")
	}
	for _, m := range p.Milestones {
		if err := r.InsertMilestone(ctx, tx, m); err != nil {
			return err
		}
	}
	for _, t := range p.Tasks {
		if err := r.InsertTask(ctx, tx, t); err != nil {
			return err
		}
		for _, st := range t.Subtasks {
			if err := r.InsertSubtask(ctx, tx, st); err != nil {
				return err
			}
		}
	}
	for _, d := range p.Dependencies {
		if err := r.InsertDependency(ctx, tx, d); err != nil {
			return err
		}
	}
	return nil
}
