package relational

import (
	"errors"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// OrgStore provides typed CRUD for Organization, Membership, Project,
// ProjectMember, and TeamProject, plus the atomic cross-table invariants
// the invariant this layer enforces: removing the last owner fails, demoting the last
// owner fails, creating a shared project twice per org fails.
type OrgStore struct {
	db *DB
}

func NewOrgStore(db *DB) *OrgStore { return &OrgStore{db: db} }

func (s *OrgStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return s.db.WithoutRLS(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO organizations (id, slug, name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, org.ID, org.Slug, org.Name, org.CreatedAt, org.UpdatedAt)
		if isUniqueViolation(err) {
			return sibylerr.Conflict("organization slug already exists", map[string]any{"slug": org.Slug})
		}
		return wrapStorageErr(err)
	})
}

func (s *OrgStore) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, slug, name, created_at, updated_at FROM organizations WHERE id = $1
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sibylerr.NotFound("organization", id.String())
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return &org, nil
}

// AddMember inserts or updates a (user, org) membership row.
func (s *OrgStore) AddMember(ctx context.Context, m *model.Membership) error {
	return s.db.WithoutRLS(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO organization_members (user_id, organization_id, role, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, organization_id) DO UPDATE SET role = EXCLUDED.role
		`, m.UserID, m.OrganizationID, string(m.Role), m.CreatedAt)
		return wrapStorageErr(err)
	})
}

// GetMembership returns the caller's org-level role, or ErrNotFound if the
// user is not a member (§4.4 step 5: "missing membership => not a member").
func (s *OrgStore) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	var role string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT user_id, organization_id, role, created_at
		FROM organization_members WHERE user_id = $1 AND organization_id = $2
	`, userID, orgID).Scan(&m.UserID, &m.OrganizationID, &role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sibylerr.NotFound("membership", userID.String())
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	m.Role = model.OrgRole(role)
	return &m, nil
}

func (s *OrgStore) countOwners(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM organization_members WHERE organization_id = $1 AND role = 'owner'
	`, orgID).Scan(&n)
	return n, wrapStorageErr(err)
}

// RemoveMember fails if the user is the organization's last owner.
func (s *OrgStore) RemoveMember(ctx context.Context, userID, orgID uuid.UUID) error {
	return s.db.WithoutRLS(ctx, func(ctx context.Context, tx pgx.Tx) error {
		m, err := s.memberTx(ctx, tx, userID, orgID)
		if err != nil {
			return err
		}
		if m.Role == model.OrgOwner {
			owners, err := s.countOwners(ctx, tx, orgID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return sibylerr.Conflict("cannot remove the last owner of an organization", map[string]any{"organization_id": orgID.String()})
			}
		}
		_, err = tx.Exec(ctx, `DELETE FROM organization_members WHERE user_id = $1 AND organization_id = $2`, userID, orgID)
		return wrapStorageErr(err)
	})
}

// SetMemberRole fails if demoting the last owner away from "owner".
func (s *OrgStore) SetMemberRole(ctx context.Context, userID, orgID uuid.UUID, newRole model.OrgRole) error {
	return s.db.WithoutRLS(ctx, func(ctx context.Context, tx pgx.Tx) error {
		m, err := s.memberTx(ctx, tx, userID, orgID)
		if err != nil {
			return err
		}
		if m.Role == model.OrgOwner && newRole != model.OrgOwner {
			owners, err := s.countOwners(ctx, tx, orgID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return sibylerr.Conflict("cannot demote the last owner of an organization", map[string]any{"organization_id": orgID.String()})
			}
		}
		_, err = tx.Exec(ctx, `UPDATE organization_members SET role = $3 WHERE user_id = $1 AND organization_id = $2`,
			userID, orgID, string(newRole))
		return wrapStorageErr(err)
	})
}

func (s *OrgStore) memberTx(ctx context.Context, tx pgx.Tx, userID, orgID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	var role string
	err := tx.QueryRow(ctx, `
		SELECT user_id, organization_id, role, created_at
		FROM organization_members WHERE user_id = $1 AND organization_id = $2
	`, userID, orgID).Scan(&m.UserID, &m.OrganizationID, &role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sibylerr.NotFound("membership", userID.String())
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	m.Role = model.OrgRole(role)
	return &m, nil
}

// CreateProject enforces "exactly one project per organization carries
// is_shared = true": a second shared-project create fails with Conflict.
func (s *OrgStore) CreateProject(ctx context.Context, p *model.Project) error {
	return s.db.WithoutRLS(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if p.IsShared {
			var n int
			if err := tx.QueryRow(ctx, `
				SELECT count(*) FROM projects WHERE organization_id = $1 AND is_shared
			`, p.OrganizationID).Scan(&n); err != nil {
				return wrapStorageErr(err)
			}
			if n > 0 {
				return sibylerr.Conflict("organization already has a shared project", map[string]any{"organization_id": p.OrganizationID.String()})
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (id, organization_id, slug, name, graph_id, visibility, default_role, is_shared, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, p.ID, p.OrganizationID, p.Slug, p.Name, p.GraphID, string(p.Visibility), string(p.DefaultRole), p.IsShared, p.CreatedAt, p.UpdatedAt)
		if isUniqueViolation(err) {
			return sibylerr.Conflict("project slug already exists in organization", map[string]any{"slug": p.Slug})
		}
		return wrapStorageErr(err)
	})
}

func (s *OrgStore) GetSharedProject(ctx context.Context, orgID uuid.UUID) (*model.Project, error) {
	return s.scanProject(ctx, `
		SELECT id, organization_id, slug, name, graph_id, visibility, default_role, is_shared, created_at, updated_at
		FROM projects WHERE organization_id = $1 AND is_shared
	`, orgID)
}

func (s *OrgStore) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return s.scanProject(ctx, `
		SELECT id, organization_id, slug, name, graph_id, visibility, default_role, is_shared, created_at, updated_at
		FROM projects WHERE id = $1
	`, id)
}

func (s *OrgStore) scanProject(ctx context.Context, query string, arg any) (*model.Project, error) {
	var p model.Project
	var vis, role string
	err := s.db.Pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.OrganizationID, &p.Slug, &p.Name, &p.GraphID, &vis, &role, &p.IsShared, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sibylerr.NotFound("project", "")
	}
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	p.Visibility, p.DefaultRole = model.Visibility(vis), model.ProjectRole(role)
	return &p, nil
}

// ListProjectsByOrg returns every project owned by an organization (used
// by the accessible-project-set resolver for visibility=org defaults).
func (s *OrgStore) ListProjectsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Project, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, organization_id, slug, name, graph_id, visibility, default_role, is_shared, created_at, updated_at
		FROM projects WHERE organization_id = $1
	`, orgID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		var p model.Project
		var vis, role string
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Slug, &p.Name, &p.GraphID, &vis, &role, &p.IsShared, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, wrapStorageErr(err)
		}
		p.Visibility, p.DefaultRole = model.Visibility(vis), model.ProjectRole(role)
		out = append(out, p)
	}
	return out, nil
}

// DeleteProject fails if any Entity still references the project's graph
// ID; hasEntities is supplied by the caller (the graph store owns that
// check; relational cascade is on RBAC rows only).
func (s *OrgStore) DeleteProject(ctx context.Context, id uuid.UUID, hasEntities bool) error {
	if hasEntities {
		return sibylerr.Conflict("project still referenced by entities", map[string]any{"project_id": id.String()})
	}
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return wrapStorageErr(err)
}

func (s *OrgStore) AddProjectMember(ctx context.Context, pm *model.ProjectMember) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO project_members (user_id, project_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, project_id) DO UPDATE SET role = EXCLUDED.role
	`, pm.UserID, pm.ProjectID, string(pm.Role), pm.CreatedAt)
	return wrapStorageErr(err)
}

func (s *OrgStore) ListProjectMembers(ctx context.Context, userID uuid.UUID) ([]model.ProjectMember, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT user_id, project_id, role, created_at FROM project_members WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []model.ProjectMember
	for rows.Next() {
		var pm model.ProjectMember
		var role string
		if err := rows.Scan(&pm.UserID, &pm.ProjectID, &role, &pm.CreatedAt); err != nil {
			return nil, wrapStorageErr(err)
		}
		pm.Role = model.ProjectRole(role)
		out = append(out, pm)
	}
	return out, nil
}

func (s *OrgStore) ListTeamProjectGrants(ctx context.Context, userID uuid.UUID) ([]model.TeamProject, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT tp.team_id, tp.project_id, tp.role
		FROM team_projects tp
		JOIN team_members tm ON tm.team_id = tp.team_id
		WHERE tm.user_id = $1
	`, userID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []model.TeamProject
	for rows.Next() {
		var tp model.TeamProject
		var role string
		if err := rows.Scan(&tp.TeamID, &tp.ProjectID, &role); err != nil {
			return nil, wrapStorageErr(err)
		}
		tp.Role = model.ProjectRole(role)
		out = append(out, tp)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return containsCode(err, "23505")
}

func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	return sibylerr.StorageUnavailable("relational store", err)
}

func notFoundErr(resourceType, resourceID string) error {
	return sibylerr.NotFound(resourceType, resourceID)
}

func containsCode(err error, code string) bool {
	// pgx wraps *pgconn.PgError; we check the SQLSTATE code textually to
	// avoid importing pgconn for a single field comparison.
	type sqlstateErr interface{ SQLState() string }
	var se sqlstateErr
	if errors.As(err, &se) {
		return se.SQLState() == code
	}
	return false
}
