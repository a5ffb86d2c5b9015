// Package authz implements the authorization kernel: AuthContext
// resolution (JWT then API key), effective project role computation,
// accessible-project-set resolution, and the gate policy predicates route
// handlers call before touching a store. Request/library shaped rather
// than tied to any particular transport's interceptor chain.
package authz

import (
	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/model"
)

// AuthContext is the resolved identity + authorization scope for one
// request. It is a value object: nothing about it depends on request
// transport.
type AuthContext struct {
	UserID uuid.UUID

	// OrganizationID is nil when the token carries no org claim.
	OrganizationID *uuid.UUID
	OrgRole        *model.OrgRole

	// Scopes is frozen at resolution time; it is never mutated once set.
	Scopes map[string]bool

	// ApiKeyID is set only when this context was resolved from an API key.
	ApiKeyID *uuid.UUID

	// ApiKeyProjectRestriction carries the API key's project allow-list:
	// nil means unrestricted (all accessible projects), a non-nil slice
	// (including an empty one) means "only these projects".
	ApiKeyProjectRestriction []uuid.UUID
}

// HasScope reports whether scope is present.
func (a AuthContext) HasScope(scope string) bool {
	return a.Scopes[scope]
}

// HasOrg reports whether the context carries an organization claim.
func (a AuthContext) HasOrg() bool {
	return a.OrganizationID != nil
}

// restrictsToProjects reports whether the API key narrows the accessible
// project set, and if so, returns the allow-list.
func (a AuthContext) restrictsToProjects() ([]uuid.UUID, bool) {
	if a.ApiKeyID == nil || a.ApiKeyProjectRestriction == nil {
		return nil, false
	}
	return a.ApiKeyProjectRestriction, true
}
