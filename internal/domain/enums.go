package domain

import (
	"fmt"
	"strings"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "Todo"
	StatusInProgress TaskStatus = "InProgress"
	StatusBlocked    TaskStatus = "Blocked"
	StatusDone       TaskStatus = "Done"
)

type TaskType string

const (
	TypeFeature  TaskType = "Feature"
	TypeResearch TaskType = "Research"
	TypeInfra    TaskType = "Infra"
	TypeDocs     TaskType = "Docs"
	TypeRefactor TaskType = "Refactor"
)

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

type MilestoneStatus string

const (
	MilestonePlanned    MilestoneStatus = "Planned"
	MilestoneInProgress MilestoneStatus = "InProgress"
	MilestoneCompleted  MilestoneStatus = "Completed"
	MilestoneCancelled  MilestoneStatus = "Cancelled"
)

type ReferenceType string

const (
	RefLink        ReferenceType = "Link"
	RefDocument    ReferenceType = "Document"
	RefPullRequest ReferenceType = "PullRequest"
	RefOther       ReferenceType = "Other"
)

var (
	taskStatuses      = []TaskStatus{StatusTodo, StatusInProgress, StatusBlocked, StatusDone}
	taskTypes         = []TaskType{TypeFeature, TypeResearch, TypeInfra, TypeDocs, TypeRefactor}
	priorities        = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	milestoneStatuses = []MilestoneStatus{MilestonePlanned, MilestoneInProgress, MilestoneCompleted, MilestoneCancelled}
	referenceTypes    = []ReferenceType{RefLink, RefDocument, RefPullRequest, RefOther}
)

// canonical matches s against the allowed values ignoring case, spaces,
// dashes and underscores, so "in progress" and "in_progress" both resolve.
func canonical[T ~string](s string, allowed []T) (T, bool) {
	key := squash(s)
	for _, v := range allowed {
		if squash(string(v)) == key {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func squash(s string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	if v, ok := canonical(s, taskStatuses); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown task status %q", ErrInvalidState, s)
}

func ParseTaskType(s string) (TaskType, error) {
	if v, ok := canonical(s, taskTypes); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown task type %q", ErrInvalidState, s)
}

func ParsePriority(s string) (Priority, error) {
	if v, ok := canonical(s, priorities); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidState, s)
}

func ParseMilestoneStatus(s string) (MilestoneStatus, error) {
	if v, ok := canonical(s, milestoneStatuses); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown milestone status %q", ErrInvalidState, s)
}

func ParseReferenceType(s string) (ReferenceType, error) {
	if v, ok := canonical(s, referenceTypes); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown reference type %q", ErrInvalidState, s)
}
