package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crewline/internal/ctxlog"
	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
	"crewline/internal/repo"
)

// Engine applies graph mutations for every project in one database. Each
// mutation authorizes first, then runs in a single transaction under the
// project's lock and reports the notifications it warrants as Effects.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Now    func() time.Time
	locks  *keyedMutex
}

func New(db *sql.DB, members domain.MembershipProvider) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Auth:   auth.Service{Members: members},
		Now:    time.Now,
		locks:  newKeyedMutex(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// mutate runs fn in one transaction while holding the project lock.
func (e Engine) mutate(ctx context.Context, projectID string, fn func(tx *sql.Tx) error) error {
	if e.locks == nil {
		return fmt.Errorf("engine not initialised; use engine.New")
	}
	unlock := e.locks.Lock(projectID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// authorize checks the project exists and the actor holds need in it.
func (e Engine) authorize(ctx context.Context, projectID, actorID string, need auth.Level) (domain.Member, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return domain.Member{}, err
	}
	m, err := e.Auth.Require(ctx, projectID, actorID, need)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("authorization denied", "project_id", projectID, "actor_id", actorID, "need", need.String())
		return domain.Member{}, err
	}
	return m, nil
}

func (e Engine) append(ctx context.Context, tx *sql.Tx, typ, projectID, kind, entityID, actorID string, payload events.Payload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, events.Entry{
		Type:       typ,
		ProjectID:  projectID,
		EntityKind: kind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    payload,
	})
}

func newID() string {
	return uuid.NewString()
}

func requireTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", domain.ErrInvalidState)
	}
	return title, nil
}

// normalizeTime accepts RFC3339 or a bare date and returns RFC3339 UTC.
// A nil or empty input yields nil.
func normalizeTime(v *string) (*string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timestamp %q", domain.ErrInvalidState, s)
		}
	}
	out := t.UTC().Format(time.RFC3339)
	return &out, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ListEvents returns the audit log of a project, newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	if f.ProjectID != "" {
		if _, err := e.Repo.GetProject(ctx, nil, f.ProjectID); err != nil {
			return nil, err
		}
	}
	return e.Repo.LatestEvents(ctx, f)
}
