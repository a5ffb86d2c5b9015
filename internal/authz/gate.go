package authz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// errNoOpServerMisconfig is returned when disable_auth=true is set in a
// production environment: the original accepted this (warn-and-bypass),
// but a no-op authorizer in production is a misconfiguration this
// implementation refuses to start with rather than silently grant every
// request full access.
var errNoOpServerMisconfig = errors.New("disable_auth is not permitted when environment=production")

// nowFunc is overridden in tests to make API key expiry checks deterministic.
var nowFunc = time.Now

// Credential is the raw bearer value a transport layer extracted from a
// request (Authorization header or cookie), not yet classified as JWT or
// API key.
type Credential struct {
	Token  string
	Method string // HTTP method, used for REST scope enforcement
	Path   string // request path, used to detect REST vs. other surfaces
}

// MembershipSource resolves the org-level role for a user, backing step 5
// of the resolution pipeline.
type MembershipSource interface {
	GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error)
}

// ApiKeyLookup resolves a stored API key by its prefix for verification.
type ApiKeyLookup interface {
	GetByPrefix(ctx context.Context, prefix string) (*model.ApiKey, error)
}

// Resolver implements the AuthContext resolution pipeline: JWT first, then
// sk_-prefixed API key, then org-membership lookup to fill in OrgRole.
type Resolver struct {
	jwt         *JWTManager
	memberships MembershipSource
	apiKeys     ApiKeyLookup
	disableAuth bool
	environment string
}

// NewResolver builds a Resolver. disableAuth/environment implement the gate
// policy: disable_auth is only honored outside production.
func NewResolver(jwt *JWTManager, memberships MembershipSource, apiKeys ApiKeyLookup, disableAuth bool, environment string) *Resolver {
	return &Resolver{jwt: jwt, memberships: memberships, apiKeys: apiKeys, disableAuth: disableAuth, environment: environment}
}

// devBypassContext is the fixed AuthContext returned when auth is disabled
// in a non-production environment: full scope, no org, so callers relying
// on org-scoped RLS still get a 403 via NoOrgContext rather than silently
// seeing everything.
var devBypassUserID = uuid.Nil

// Resolve runs the 5-step pipeline: JWT verify, else API key verify (with
// REST scope enforcement), else unauthenticated; then fills in OrgRole from
// the membership table when the context carries an org claim.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (*AuthContext, error) {
	if r.disableAuth {
		if r.environment == "production" {
			return nil, sibylerr.Internal("", errNoOpServerMisconfig)
		}
		return &AuthContext{UserID: devBypassUserID, Scopes: map[string]bool{"api:read": true, "api:write": true}}, nil
	}

	if claims, err := r.jwt.Verify(cred.Token); err == nil {
		return r.contextFromJWTClaims(ctx, claims)
	}

	if IsApiKey(cred.Token) {
		return r.contextFromApiKey(ctx, cred)
	}

	return nil, sibylerr.NoOrgContext("authenticate")
}

func (r *Resolver) contextFromJWTClaims(ctx context.Context, claims *Claims) (*AuthContext, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidClaims
	}
	scopes := map[string]bool{}
	for _, s := range claims.Scopes {
		scopes[s] = true
	}

	ac := &AuthContext{UserID: userID, Scopes: scopes}
	if claims.Org == "" {
		return ac, nil
	}
	orgID, err := uuid.Parse(claims.Org)
	if err != nil {
		return ac, nil
	}
	ac.OrganizationID = &orgID

	m, err := r.memberships.GetMembership(ctx, userID, orgID)
	if err == nil {
		ac.OrgRole = &m.Role
	}
	return ac, nil
}

func (r *Resolver) contextFromApiKey(ctx context.Context, cred Credential) (*AuthContext, error) {
	prefix := ApiKeyPrefix(cred.Token)
	key, err := r.apiKeys.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, sibylerr.NoOrgContext("authenticate")
	}
	if key.Expired(nowFunc()) || !VerifyApiKey(cred.Token, key.SaltHex, key.HashHex) {
		return nil, sibylerr.NoOrgContext("authenticate")
	}

	if isRESTRequest(cred.Path) && !ApiKeyAllowsREST(key.Scopes, cred.Method) {
		return nil, sibylerr.InsufficientPermissions("API key scope does not permit this REST operation", map[string]any{
			"method": cred.Method,
		})
	}

	scopes := map[string]bool{}
	for _, s := range key.Scopes {
		scopes[s] = true
	}
	ac := &AuthContext{
		UserID:                   key.UserID,
		OrganizationID:           &key.OrganizationID,
		Scopes:                   scopes,
		ApiKeyID:                 &key.ID,
		ApiKeyProjectRestriction: key.ProjectIDs,
	}

	m, err := r.memberships.GetMembership(ctx, key.UserID, key.OrganizationID)
	if err == nil {
		ac.OrgRole = &m.Role
	}
	return ac, nil
}

func isRESTRequest(path string) bool {
	return len(path) >= 5 && path[:5] == "/api/"
}

// RequireOrgRole fails unless ac carries an organization and its role is
// one of allowed.
func RequireOrgRole(ac AuthContext, allowed ...model.OrgRole) error {
	if ac.OrganizationID == nil || ac.OrgRole == nil {
		return sibylerr.NoOrgContext("require_org_role")
	}
	for _, a := range allowed {
		if *ac.OrgRole == a {
			return nil
		}
	}
	return sibylerr.OrgAccessDenied(string(allowed[0]), string(*ac.OrgRole), ac.OrganizationID.String())
}

// VerifyProjectAccess fails unless ac's effective role on projectID is at
// least minRole, honoring the API key's project restriction if present.
func VerifyProjectAccess(ctx context.Context, src ProjectRoleSource, ac AuthContext, projectID uuid.UUID, minRole model.ProjectRole) error {
	if restriction, restricted := ac.restrictsToProjects(); restricted && !containsUUID(restriction, projectID) {
		return sibylerr.ProjectAccessDenied(projectID.String(), string(minRole), "")
	}

	role, ok, err := EffectiveProjectRole(ctx, src, projectID, ac.UserID, ac.OrgRole)
	if err != nil {
		return err
	}
	if !ok || !role.AtLeast(minRole) {
		actual := ""
		if ok {
			actual = string(role)
		}
		return sibylerr.ProjectAccessDenied(projectID.String(), string(minRole), actual)
	}
	return nil
}

func containsUUID(set []uuid.UUID, id uuid.UUID) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
