// Package app wires storage, the engine, planning and notification sinks
// from a config.Config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"crewline/internal/config"
	"crewline/internal/ctxlog"
	"crewline/internal/db"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/generator"
	"crewline/internal/members"
	"crewline/internal/migrate"
	"crewline/internal/notify"
	"crewline/internal/planning"
	"crewline/internal/repo"
)

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Repo     repo.Repo
	Members  members.Provider
	Engine   engine.Engine
	Planner  planning.Orchestrator
	Sink     domain.NotificationSink
	Realtime *notify.Realtime
	Logger   *slog.Logger
}

// Open opens the workspace database, applies migrations and builds every
// component the config enables.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	conn, err := db.Open(db.Config{Workspace: cfg.Database.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	gen, err := generator.New(cfg.Generator)
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := repo.Repo{DB: conn}
	provider := members.New(r)
	eng := engine.New(conn, provider)

	a := &App{Config: cfg, DB: conn, Repo: r, Members: provider, Engine: eng, Logger: logger}
	var sinks notify.Fanout
	if cfg.Notifications.Log {
		sinks = append(sinks, notify.LogSink{Logger: logger})
	}
	if len(cfg.Notifications.Webhooks) > 0 {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notifications.Webhooks))
	}
	if cfg.Notifications.Realtime.Enabled {
		a.Realtime = notify.NewRealtime()
		sinks = append(sinks, a.Realtime)
	}
	a.Sink = sinks
	a.Planner = planning.New(eng, provider, gen, a.Sink, cfg.Generator.TimeoutDuration())
	logger.Debug("app ready", "db", db.Path(cfg.Database.Workspace), "generator", cfg.Generator.Provider, "sinks", len(sinks))
	return a, nil
}

// Notify dispatches effects of a committed mutation to the configured sinks.
func (a *App) Notify(ctx context.Context, fx domain.Effects) {
	_ = notify.Dispatch(ctx, a.Sink, fx)
}

// ResolveProject returns override, or the only project in the database
// when override is empty.
func (a *App) ResolveProject(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	projects, err := a.Engine.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	if len(projects) == 1 {
		return projects[0].ID, nil
	}
	return "", fmt.Errorf("project not specified; use --project")
}

func (a *App) Close() error {
	if a.Realtime != nil {
		a.Realtime.Close()
	}
	return a.DB.Close()
}
