package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"crewline/internal/domain"
)

type staticMembers []domain.Member

func (s staticMembers) GetActiveMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	return s, nil
}

func TestRequire(t *testing.T) {
	svc := Service{Members: staticMembers{
		{ProjectID: "p", UserID: "owner", Kind: domain.KindNonprofit, IsAdmin: true},
		{ProjectID: "p", UserID: "mentor", Kind: domain.KindMentor},
		{ProjectID: "p", UserID: "gainer", Kind: domain.KindGainer, Role: "Backend Developer"},
	}}
	ctx := context.Background()

	for _, id := range []string{"owner", "mentor"} {
		_, err := svc.Require(ctx, "p", id, Manager)
		require.NoError(t, err, id)
	}
	m, err := svc.Require(ctx, "p", "gainer", Member)
	require.NoError(t, err)
	require.Equal(t, "Backend Developer", m.Role)

	_, err = svc.Require(ctx, "p", "gainer", Manager)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	var fe ForbiddenError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, Manager, fe.Need)

	_, err = svc.Require(ctx, "p", "stranger", Member)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Require(ctx, "p", "", Member)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
