package auth

import (
	"context"
	"fmt"
	"strings"

	"crewline/internal/domain"
)

// Level is the privilege an operation needs within a project.
type Level int

const (
	// Member needs an active membership.
	Member Level = iota
	// Manager needs an active admin member or a mentor.
	Manager
)

func (l Level) String() string {
	if l == Manager {
		return "admin or mentor"
	}
	return "active member"
}

// ForbiddenError indicates the actor lacks the required standing in a project.
type ForbiddenError struct {
	ProjectID string
	ActorID   string
	Need      Level
}

func (e ForbiddenError) Error() string {
	if e.ActorID == "" {
		return "actor required"
	}
	return fmt.Sprintf("%s must be %s of project %s", e.ActorID, e.Need, e.ProjectID)
}

func (e ForbiddenError) Unwrap() error { return domain.ErrUnauthorized }

// Service checks membership through a MembershipProvider.
type Service struct {
	Members domain.MembershipProvider
}

// Require returns the actor's membership if it meets need.
func (s Service) Require(ctx context.Context, projectID, actorID string, need Level) (domain.Member, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.Member{}, ForbiddenError{ProjectID: projectID, Need: need}
	}
	if s.Members == nil {
		return domain.Member{}, fmt.Errorf("membership provider not configured")
	}
	members, err := s.Members.GetActiveMembers(ctx, projectID)
	if err != nil {
		return domain.Member{}, err
	}
	for _, m := range members {
		if m.UserID != actorID {
			continue
		}
		if need == Manager && !m.CanManage() {
			break
		}
		return m, nil
	}
	return domain.Member{}, ForbiddenError{ProjectID: projectID, ActorID: actorID, Need: need}
}
