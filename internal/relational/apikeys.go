package relational

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sibyl-platform/sibyl/internal/model"
)

// ApiKeyStore provides typed CRUD for ApiKey rows. The raw key material
// never touches this package: callers hash with authz's PBKDF2 routine
// before Create, and GetByPrefix returns the stored salt+hash for the
// caller to compare against.
type ApiKeyStore struct {
	db *DB
}

func NewApiKeyStore(db *DB) *ApiKeyStore { return &ApiKeyStore{db: db} }

func (s *ApiKeyStore) Create(ctx context.Context, k *model.ApiKey) error {
	var projectIDs []uuid.UUID
	if k.ProjectIDs != nil {
		projectIDs = k.ProjectIDs
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO api_keys (id, organization_id, user_id, prefix, salt_hex, hash_hex, scopes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, k.ID, k.OrganizationID, k.UserID, k.Prefix, k.SaltHex, k.HashHex, k.Scopes, k.CreatedAt)
	if err != nil {
		return wrapStorageErr(err)
	}
	for _, pid := range projectIDs {
		if _, err := s.db.Pool.Exec(ctx, `
			INSERT INTO api_key_project_scopes (api_key_id, project_id) VALUES ($1, $2)
		`, k.ID, pid); err != nil {
			return wrapStorageErr(err)
		}
	}
	return nil
}

// GetByPrefix looks up a key by its fast-lookup prefix; callers must still
// verify the hash with a constant-time compare before trusting the result.
func (s *ApiKeyStore) GetByPrefix(ctx context.Context, prefix string) (*model.ApiKey, error) {
	var k model.ApiKey
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, organization_id, user_id, prefix, salt_hex, hash_hex, scopes, revoked_at, expires_at, created_at
		FROM api_keys WHERE prefix = $1
	`, prefix).Scan(&k.ID, &k.OrganizationID, &k.UserID, &k.Prefix, &k.SaltHex, &k.HashHex,
		&k.Scopes, &k.RevokedAt, &k.ExpiresAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundErr("api_key", prefix)
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	rows, err := s.db.Pool.Query(ctx, `SELECT project_id FROM api_key_project_scopes WHERE api_key_id = $1`, k.ID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		if err := rows.Scan(&pid); err != nil {
			return nil, wrapStorageErr(err)
		}
		k.ProjectIDs = append(k.ProjectIDs, pid)
	}
	return &k, nil
}

func (s *ApiKeyStore) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Pool.Exec(ctx, `UPDATE api_keys SET revoked_at = now() WHERE id = $1`, id)
	return wrapStorageErr(err)
}
