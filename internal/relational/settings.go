package relational

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SystemSetting is a per-organization key/value configuration row whose
// value may be encrypted at rest (see internal/secrets).
type SystemSetting struct {
	OrganizationID uuid.UUID
	Key            string
	Value          string
	Encrypted      bool
	UpdatedAt      time.Time
}

// UserSession is a server-side session record backing cookie auth.
type UserSession struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// AuditLog is an append-only record of a mutating action.
type AuditLog struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Action         string
	ResourceType   string
	ResourceID     string
	CreatedAt      time.Time
}

// SettingsStore provides CRUD for SystemSetting, UserSession, and AuditLog.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore { return &SettingsStore{db: db} }

func (s *SettingsStore) GetSetting(ctx context.Context, orgID uuid.UUID, key string) (*SystemSetting, error) {
	var st SystemSetting
	err := s.db.Pool.QueryRow(ctx, `
		SELECT organization_id, key, value, encrypted, updated_at
		FROM system_settings WHERE organization_id = $1 AND key = $2
	`, orgID, key).Scan(&st.OrganizationID, &st.Key, &st.Value, &st.Encrypted, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundErr("system_setting", key)
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return &st, nil
}

func (s *SettingsStore) PutSetting(ctx context.Context, st *SystemSetting) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO system_settings (organization_id, key, value, encrypted, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (organization_id, key) DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted, updated_at = EXCLUDED.updated_at
	`, st.OrganizationID, st.Key, st.Value, st.Encrypted, st.UpdatedAt)
	return wrapStorageErr(err)
}

func (s *SettingsStore) CreateSession(ctx context.Context, sess *UserSession) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, organization_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sess.ID, sess.UserID, sess.OrganizationID, sess.ExpiresAt, sess.CreatedAt)
	return wrapStorageErr(err)
}

func (s *SettingsStore) GetSession(ctx context.Context, id uuid.UUID) (*UserSession, error) {
	var sess UserSession
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, organization_id, expires_at, created_at FROM user_sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.OrganizationID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundErr("user_session", id.String())
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return &sess, nil
}

func (s *SettingsStore) RecordAudit(ctx context.Context, a *AuditLog) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, a.ID, a.OrganizationID, a.UserID, a.Action, a.ResourceType, a.ResourceID, a.CreatedAt)
	return wrapStorageErr(err)
}
