package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"crewline/internal/domain"
	"crewline/internal/engine/auth"
	"crewline/internal/events"
	"crewline/internal/repo"
)

const apiKeyPrefix = "cl_"

// CreateAPIKey mints a key for actorID. The plaintext is returned once and
// only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", auth.ForbiddenError{}
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	secret := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.stamp(),
	}
	err := e.mutate(ctx, "api_keys", func(tx *sql.Tx) error {
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return err
		}
		return e.append(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, actorID, events.Payload{"name": key.Name})
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// RevokeAPIKey deletes a key owned by actorID.
func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	return e.mutate(ctx, "api_keys", func(tx *sql.Tx) error {
		if err := e.Repo.DeleteAPIKey(ctx, tx, id, actorID); err != nil {
			return err
		}
		return e.append(ctx, tx, events.APIKeyRevoked, "", "api_key", id, actorID, nil)
	})
}
