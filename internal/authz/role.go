package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/relational"
)

// ProjectRoleSource answers the membership/team/visibility lookups needed
// to compute an effective project role, decoupled from a concrete store so
// this package can be unit tested without Postgres.
type ProjectRoleSource interface {
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	DirectProjectRole(ctx context.Context, projectID, userID uuid.UUID) (model.ProjectRole, bool, error)
	TeamGrantedProjectRole(ctx context.Context, projectID, userID uuid.UUID) (model.ProjectRole, bool, error)
	ListOrgProjects(ctx context.Context, orgID uuid.UUID) ([]model.Project, error)
}

// EffectiveProjectRole computes max(org-owner/admin override, direct
// project membership, team-mediated grant, org-visibility default role),
// per the ordering owner > maintainer > contributor > viewer. orgRole may
// be nil when the caller has no organization context at all, in which case
// only direct/team grants on the project can apply.
func EffectiveProjectRole(ctx context.Context, src ProjectRoleSource, projectID, userID uuid.UUID, orgRole *model.OrgRole) (model.ProjectRole, bool, error) {
	project, err := src.GetProject(ctx, projectID)
	if err != nil {
		return "", false, err
	}

	var best model.ProjectRole
	has := false

	if orgRole != nil && (*orgRole == model.OrgOwner || *orgRole == model.OrgAdmin) {
		best, has = model.RoleOwner, true
	}

	if role, ok, err := src.DirectProjectRole(ctx, projectID, userID); err != nil {
		return "", false, err
	} else if ok && (!has || role.Outranks(best)) {
		best, has = role, true
	}

	if role, ok, err := src.TeamGrantedProjectRole(ctx, projectID, userID); err != nil {
		return "", false, err
	} else if ok && (!has || role.Outranks(best)) {
		best, has = role, true
	}

	if orgRole != nil && project.Visibility == model.VisibilityOrg {
		defRole := project.DefaultRole
		if !has || defRole.Outranks(best) {
			best, has = defRole, true
		}
	}

	return best, has, nil
}

// AccessibleProjectSet returns the set of project IDs where the caller's
// effective role is at least viewer, plus the org's shared project. A nil
// return (as opposed to an empty, non-nil slice) means "no filter", the
// distinction the migration window depends on: callers resolved before
// project RBAC existed get unrestricted access rather than an empty one.
func AccessibleProjectSet(ctx context.Context, src ProjectRoleSource, orgID, userID uuid.UUID, orgRole *model.OrgRole, migrationWindow bool) ([]uuid.UUID, error) {
	if migrationWindow {
		return nil, nil
	}

	projects, err := src.ListOrgProjects(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var accessible []uuid.UUID
	for _, p := range projects {
		role, ok, err := EffectiveProjectRole(ctx, src, p.ID, userID, orgRole)
		if err != nil {
			return nil, err
		}
		if (ok && role.AtLeast(model.RoleViewer)) || p.IsShared {
			accessible = append(accessible, p.ID)
		}
	}
	if accessible == nil {
		accessible = []uuid.UUID{}
	}
	return accessible, nil
}

// relationalRoleSource adapts internal/relational's OrgStore to
// ProjectRoleSource for production wiring.
type relationalRoleSource struct {
	orgs *relational.OrgStore
}

// NewRelationalRoleSource wraps an OrgStore for effective-role resolution.
func NewRelationalRoleSource(orgs *relational.OrgStore) ProjectRoleSource {
	return &relationalRoleSource{orgs: orgs}
}

func (s *relationalRoleSource) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return s.orgs.GetProject(ctx, id)
}

func (s *relationalRoleSource) DirectProjectRole(ctx context.Context, projectID, userID uuid.UUID) (model.ProjectRole, bool, error) {
	members, err := s.orgs.ListProjectMembers(ctx, userID)
	if err != nil {
		return "", false, err
	}
	for _, m := range members {
		if m.ProjectID == projectID {
			return m.Role, true, nil
		}
	}
	return "", false, nil
}

func (s *relationalRoleSource) TeamGrantedProjectRole(ctx context.Context, projectID, userID uuid.UUID) (model.ProjectRole, bool, error) {
	grants, err := s.orgs.ListTeamProjectGrants(ctx, userID)
	if err != nil {
		return "", false, err
	}
	var best model.ProjectRole
	has := false
	for _, g := range grants {
		if g.ProjectID != projectID {
			continue
		}
		if !has || g.Role.Outranks(best) {
			best, has = g.Role, true
		}
	}
	return best, has, nil
}

func (s *relationalRoleSource) ListOrgProjects(ctx context.Context, orgID uuid.UUID) ([]model.Project, error) {
	return s.orgs.ListProjectsByOrg(ctx, orgID)
}
