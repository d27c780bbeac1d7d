// Package members resolves project rosters from the project_members table.
package members

import (
	"context"

	"crewline/internal/domain"
	"crewline/internal/repo"
)

// Provider implements domain.MembershipProvider over the repo.
type Provider struct {
	Repo repo.Repo
}

func New(r repo.Repo) Provider {
	return Provider{Repo: r}
}

// GetActiveMembers returns members who have not left, in join order.
func (p Provider) GetActiveMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	if _, err := p.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	return p.Repo.ListMembers(ctx, nil, projectID, true)
}

// ByRole returns the first active member whose role matches exactly.
func ByRole(members []domain.Member, role string) (domain.Member, bool) {
	if role == "" {
		return domain.Member{}, false
	}
	for _, m := range members {
		if m.Active() && m.Role == role {
			return m, true
		}
	}
	return domain.Member{}, false
}
