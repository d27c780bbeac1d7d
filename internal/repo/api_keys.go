package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"strings"

	"crewline/internal/domain"
)

const apiKeyColumns = `id, actor_id, name, key_hash, created_at`

// HashAPIKey is the stored form of a plaintext key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func scanAPIKey(s scanner) (domain.APIKey, error) {
	var k domain.APIKey
	err := s.Scan(&k.ID, &k.ActorID, &k.Name, &k.KeyHash, &k.CreatedAt)
	return k, err
}

// InsertAPIKey stores a key whose KeyHash is already set.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, k domain.APIKey) error {
	_, err := r.conn(tx).ExecContext(ctx,
		`INSERT INTO api_keys(`+apiKeyColumns+`) VALUES (?,?,?,?,?)`,
		k.ID, k.ActorID, k.Name, k.KeyHash, k.CreatedAt)
	return translate(err, "insert api key")
}

func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	k, err := scanAPIKey(r.DB.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=?`, hash))
	if err != nil {
		return domain.APIKey{}, translate(err, "api key")
	}
	return k, nil
}

// ListAPIKeys returns the keys owned by actorID, newest first.
func (r Repo) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE actor_id=? ORDER BY created_at DESC, id`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteAPIKey removes key id only if actorID owns it.
func (r Repo) DeleteAPIKey(ctx context.Context, tx *sql.Tx, id, actorID string) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM api_keys WHERE id=? AND actor_id=?`, id, actorID)
	if err != nil {
		return translate(err, "delete api key")
	}
	return affectedOne(res, "api key "+id)
}
