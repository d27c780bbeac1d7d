package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"crewline/internal/config"
	"crewline/internal/engine"
	"crewline/internal/notify"
)

func TestOpenWiresSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	cfg.Notifications.Webhooks = []config.WebhookConfig{{URL: "http://127.0.0.1:1/hook"}}
	cfg.Notifications.Realtime.Enabled = true

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	fan, ok := a.Sink.(notify.Fanout)
	require.True(t, ok)
	require.Len(t, fan, 3)
	require.NotNil(t, a.Realtime)
}

func TestResolveProject(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	cfg.Notifications.Log = false
	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	_, err = a.ResolveProject(ctx, "")
	require.Error(t, err)

	p, err := a.Engine.CreateProject(ctx, engine.ProjectInput{Name: "Solo"}, "me")
	require.NoError(t, err)
	id, err := a.ResolveProject(ctx, "")
	require.NoError(t, err)
	require.Equal(t, p.ID, id)

	id, err = a.ResolveProject(ctx, "explicit")
	require.NoError(t, err)
	require.Equal(t, "explicit", id)
}
