// Package taskstate holds the pure status and ordering rules of the task graph.
package taskstate

import (
	"fmt"

	"crewline/internal/domain"
)

// Outcome is the result of a legal task status transition.
type Outcome struct {
	Status    domain.TaskStatus
	IsBlocked bool
	Changed   bool
	Completed bool
	Reopened  bool
	Unblocked bool
}

func validStatus(s domain.TaskStatus) bool {
	switch s {
	case domain.StatusTodo, domain.StatusInProgress, domain.StatusBlocked, domain.StatusDone:
		return true
	}
	return false
}

// Transition decides whether a task may move from one status to another.
// depsSatisfied only matters for moves into Done. Moving out of Blocked does
// not re-check dependencies; the caller has cleared the block.
func Transition(from, to domain.TaskStatus, isBlocked, depsSatisfied bool) (Outcome, error) {
	if !validStatus(to) {
		return Outcome{}, fmt.Errorf("%w: unknown task status %q", domain.ErrInvalidState, to)
	}
	if from == to {
		return Outcome{Status: from, IsBlocked: isBlocked}, nil
	}
	out := Outcome{Status: to, Changed: true, IsBlocked: to == domain.StatusBlocked}
	switch to {
	case domain.StatusBlocked:
		return out, nil
	case domain.StatusDone:
		if from != domain.StatusTodo && from != domain.StatusInProgress {
			return Outcome{}, fmt.Errorf("%w: cannot complete a task from %s", domain.ErrInvalidState, from)
		}
		if !depsSatisfied {
			return Outcome{}, fmt.Errorf("%w: task has unfinished dependencies", domain.ErrInvalidState)
		}
		out.Completed = true
		return out, nil
	case domain.StatusTodo, domain.StatusInProgress:
		switch from {
		case domain.StatusBlocked:
			out.Unblocked = true
			return out, nil
		case domain.StatusDone:
			if to != domain.StatusTodo {
				return Outcome{}, fmt.Errorf("%w: a done task can only be reopened to %s", domain.ErrInvalidState, domain.StatusTodo)
			}
			out.Reopened = true
			return out, nil
		case domain.StatusTodo, domain.StatusInProgress:
			return out, nil
		}
	}
	return Outcome{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, from, to)
}

// MilestoneOutcome is the result of a legal milestone status transition.
type MilestoneOutcome struct {
	Status    domain.MilestoneStatus
	Changed   bool
	Completed bool
}

var milestoneEdges = map[domain.MilestoneStatus][]domain.MilestoneStatus{
	domain.MilestonePlanned:    {domain.MilestoneInProgress, domain.MilestoneCompleted, domain.MilestoneCancelled},
	domain.MilestoneInProgress: {domain.MilestonePlanned, domain.MilestoneCompleted, domain.MilestoneCancelled},
	domain.MilestoneCompleted:  {domain.MilestoneInProgress},
	domain.MilestoneCancelled:  {domain.MilestonePlanned},
}

func MilestoneTransition(from, to domain.MilestoneStatus) (MilestoneOutcome, error) {
	if _, ok := milestoneEdges[to]; !ok {
		return MilestoneOutcome{}, fmt.Errorf("%w: unknown milestone status %q", domain.ErrInvalidState, to)
	}
	if from == to {
		return MilestoneOutcome{Status: from}, nil
	}
	for _, next := range milestoneEdges[from] {
		if next == to {
			return MilestoneOutcome{Status: to, Changed: true, Completed: to == domain.MilestoneCompleted}, nil
		}
	}
	return MilestoneOutcome{}, fmt.Errorf("%w: milestone %s -> %s", domain.ErrInvalidState, from, to)
}
