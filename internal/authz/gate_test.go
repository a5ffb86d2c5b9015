package authz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/model"
)

type fakeMemberships struct {
	byUserOrg map[[2]uuid.UUID]model.Membership
}

func (f *fakeMemberships) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error) {
	m, ok := f.byUserOrg[[2]uuid.UUID{userID, orgID}]
	if !ok {
		return nil, errNotFoundFake
	}
	return &m, nil
}

type fakeApiKeys struct {
	byPrefix map[string]model.ApiKey
}

func (f *fakeApiKeys) GetByPrefix(ctx context.Context, prefix string) (*model.ApiKey, error) {
	k, ok := f.byPrefix[prefix]
	if !ok {
		return nil, errNotFoundFake
	}
	return &k, nil
}

func TestResolveJWTFillsOrgRole(t *testing.T) {
	jwtMgr := NewJWTManager("secret", "sibyl")
	userID := uuid.New()
	orgID := uuid.New()
	token, err := jwtMgr.Issue(userID, &orgID, []string{"api:read"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	members := &fakeMemberships{byUserOrg: map[[2]uuid.UUID]model.Membership{
		{userID, orgID}: {UserID: userID, OrganizationID: orgID, Role: model.OrgAdmin},
	}}
	r := NewResolver(jwtMgr, members, &fakeApiKeys{}, false, "production")

	ac, err := r.Resolve(context.Background(), Credential{Token: token, Method: "GET", Path: "/api/search"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ac.OrgRole == nil || *ac.OrgRole != model.OrgAdmin {
		t.Fatalf("OrgRole = %v, want OrgAdmin", ac.OrgRole)
	}
	if !ac.HasScope("api:read") {
		t.Fatal("expected api:read scope")
	}
}

func TestResolveApiKeyRejectsInsufficientRESTScope(t *testing.T) {
	key, err := GenerateApiKey(true)
	if err != nil {
		t.Fatalf("GenerateApiKey: %v", err)
	}
	saltHex, hashHex, err := HashApiKey(key)
	if err != nil {
		t.Fatalf("HashApiKey: %v", err)
	}
	prefix := ApiKeyPrefix(key)
	userID, orgID := uuid.New(), uuid.New()

	keys := &fakeApiKeys{byPrefix: map[string]model.ApiKey{
		prefix: {ID: uuid.New(), UserID: userID, OrganizationID: orgID, SaltHex: saltHex, HashHex: hashHex, Scopes: []string{"api:read"}},
	}}
	jwtMgr := NewJWTManager("secret", "sibyl")
	r := NewResolver(jwtMgr, &fakeMemberships{}, keys, false, "production")

	_, err = r.Resolve(context.Background(), Credential{Token: key, Method: "POST", Path: "/api/entities"})
	if err == nil {
		t.Fatal("Resolve succeeded, want scope-denied error")
	}
}

func TestResolveApiKeyExpired(t *testing.T) {
	key, _ := GenerateApiKey(true)
	saltHex, hashHex, _ := HashApiKey(key)
	prefix := ApiKeyPrefix(key)
	past := time.Now().Add(-time.Hour)

	keys := &fakeApiKeys{byPrefix: map[string]model.ApiKey{
		prefix: {ID: uuid.New(), UserID: uuid.New(), OrganizationID: uuid.New(), SaltHex: saltHex, HashHex: hashHex, Scopes: []string{"api:write"}, ExpiresAt: &past},
	}}
	r := NewResolver(NewJWTManager("secret", "sibyl"), &fakeMemberships{}, keys, false, "production")

	_, err := r.Resolve(context.Background(), Credential{Token: key, Method: "GET", Path: "/api/entities"})
	if err == nil {
		t.Fatal("Resolve succeeded with expired key, want error")
	}
}

func TestResolveDisableAuthRejectedInProduction(t *testing.T) {
	r := NewResolver(NewJWTManager("secret", "sibyl"), &fakeMemberships{}, &fakeApiKeys{}, true, "production")
	if _, err := r.Resolve(context.Background(), Credential{Token: "anything"}); err == nil {
		t.Fatal("Resolve succeeded with disable_auth in production, want rejection")
	}
}

func TestResolveDisableAuthAllowedInDevelopment(t *testing.T) {
	r := NewResolver(NewJWTManager("secret", "sibyl"), &fakeMemberships{}, &fakeApiKeys{}, true, "development")
	ac, err := r.Resolve(context.Background(), Credential{Token: "anything"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ac.HasScope("api:write") {
		t.Fatal("expected dev bypass to carry full scope")
	}
}

func TestRequireOrgRole(t *testing.T) {
	orgID := uuid.New()
	admin := model.OrgAdmin
	ac := AuthContext{OrganizationID: &orgID, OrgRole: &admin}

	if err := RequireOrgRole(ac, model.OrgOwner, model.OrgAdmin); err != nil {
		t.Fatalf("RequireOrgRole: %v", err)
	}
	if err := RequireOrgRole(ac, model.OrgOwner); err == nil {
		t.Fatal("RequireOrgRole succeeded, want denial for non-owner")
	}
	if err := RequireOrgRole(AuthContext{}, model.OrgOwner); err == nil {
		t.Fatal("RequireOrgRole succeeded with no org context, want denial")
	}
}

func TestVerifyProjectAccessHonorsApiKeyRestriction(t *testing.T) {
	projectID := uuid.New()
	otherProjectID := uuid.New()
	src := &fakeRoleSource{
		projects: map[uuid.UUID]model.Project{
			projectID:      {ID: projectID, Visibility: model.VisibilityPrivate, DefaultRole: model.RoleViewer},
			otherProjectID: {ID: otherProjectID, Visibility: model.VisibilityPrivate, DefaultRole: model.RoleViewer},
		},
		direct: map[uuid.UUID]model.ProjectRole{
			projectID:      model.RoleMaintainer,
			otherProjectID: model.RoleMaintainer,
		},
	}
	keyID := uuid.New()
	ac := AuthContext{UserID: uuid.New(), ApiKeyID: &keyID, ApiKeyProjectRestriction: []uuid.UUID{projectID}}

	if err := VerifyProjectAccess(context.Background(), src, ac, projectID, model.RoleViewer); err != nil {
		t.Fatalf("VerifyProjectAccess on allow-listed project: %v", err)
	}
	if err := VerifyProjectAccess(context.Background(), src, ac, otherProjectID, model.RoleViewer); err == nil {
		t.Fatal("VerifyProjectAccess succeeded on project outside the API key's restriction")
	}
}

func TestVerifyProjectAccessInsufficientRole(t *testing.T) {
	projectID := uuid.New()
	src := &fakeRoleSource{
		projects: map[uuid.UUID]model.Project{
			projectID: {ID: projectID, Visibility: model.VisibilityPrivate, DefaultRole: model.RoleViewer},
		},
		direct: map[uuid.UUID]model.ProjectRole{projectID: model.RoleViewer},
	}
	ac := AuthContext{UserID: uuid.New()}
	if err := VerifyProjectAccess(context.Background(), src, ac, projectID, model.RoleMaintainer); err == nil {
		t.Fatal("VerifyProjectAccess succeeded despite insufficient role")
	}
}
