package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
)

type ReferenceInput struct {
	Type  domain.ReferenceType
	URL   string
	Title string
}

func (e Engine) AddReference(ctx context.Context, projectID, taskID string, in ReferenceInput, actorID string) (domain.Reference, error) {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return domain.Reference{}, err
	}
	raw := strings.TrimSpace(in.URL)
	if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
		return domain.Reference{}, fmt.Errorf("%w: reference url %q must be absolute", domain.ErrInvalidState, raw)
	}
	typ := domain.RefLink
	if in.Type != "" {
		var err error
		if typ, err = domain.ParseReferenceType(string(in.Type)); err != nil {
			return domain.Reference{}, err
		}
	}
	ref := domain.Reference{ID: newID(), TaskID: taskID, Type: typ, URL: raw, Title: strings.TrimSpace(in.Title)}
	err := e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		ref.CreatedAt = e.stamp()
		if err := e.Repo.InsertReference(ctx, tx, ref); err != nil {
			return err
		}
		return e.append(ctx, tx, events.ReferenceAdded, projectID, "task", taskID, actorID, events.Payload{"reference_id": ref.ID, "type": ref.Type, "url": ref.URL})
	})
	return ref, err
}

func (e Engine) RemoveReference(ctx context.Context, projectID, taskID, id, actorID string) error {
	if _, err := e.authorize(ctx, projectID, actorID, auth.Manager); err != nil {
		return err
	}
	return e.mutate(ctx, projectID, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTask(ctx, tx, projectID, taskID); err != nil {
			return err
		}
		if err := e.Repo.DeleteReference(ctx, tx, taskID, id); err != nil {
			return err
		}
		return e.append(ctx, tx, events.ReferenceRemoved, projectID, "task", taskID, actorID, events.Payload{"reference_id": id})
	})
}

func (e Engine) ListReferences(ctx context.Context, projectID, taskID string) ([]domain.Reference, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	if err := e.Repo.EnsureTask(ctx, nil, projectID, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListReferences(ctx, nil, taskID)
}
