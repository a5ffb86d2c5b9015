// Package sibylerr defines the structured error taxonomy shared across
// Sibyl's components: a machine-readable Code, a human Message, and an
// optional Details bag, modeled on the original's AuthorizationError
// hierarchy but expressed as plain Go error values since Go has no
// exception hierarchy to mirror directly.
package sibylerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP-status-agnostic propagation decisions
// (§7): which kinds pass through unchanged, which get retried, which get
// logged-and-masked.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthentication    Kind = "authentication"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindTimeout           Kind = "timeout"
	KindInternal          Kind = "internal"
)

// Code is a machine-readable authorization error code (§4.4, §7).
type Code string

const (
	CodeNoOrgContext          Code = "no_org_context"
	CodeOrgAccessDenied       Code = "org_access_denied"
	CodeOrgRoleRequired       Code = "org_role_required"
	CodeProjectAccessDenied   Code = "project_access_denied"
	CodeProjectNotFound       Code = "project_not_found"
	CodeResourceAccessDenied  Code = "resource_access_denied"
	CodeOwnershipRequired     Code = "ownership_required"
	CodeInsufficientPerms     Code = "insufficient_permissions"
	CodeForbidden             Code = "forbidden"
)

// Error is Sibyl's structured error value. It implements error and carries
// enough structure for a caller to render a 4xx/5xx JSON body without
// Sibyl itself depending on any HTTP framework.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
	// RefID is populated for Internal errors: the only thing the client
	// ever sees for an unanticipated failure is this correlation ID.
	RefID string
	Err   error // wrapped cause, not surfaced to the caller
}

func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, code Code, msg string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Details: details}
}

// NoOrgContext is raised when org context is required but missing.
func NoOrgContext(action string) *Error {
	return newErr(KindAuthorization, CodeNoOrgContext,
		fmt.Sprintf("organization context is required to %s", action),
		map[string]any{"hint": "select an organization"})
}

// OrgAccessDenied is raised when a user lacks the required org-level role.
func OrgAccessDenied(requiredRole string, actualRole string, orgID string) *Error {
	details := map[string]any{"required_role": requiredRole}
	if actualRole != "" {
		details["actual_role"] = actualRole
	}
	if orgID != "" {
		details["org_id"] = orgID
	}
	return newErr(KindAuthorization, CodeOrgAccessDenied,
		fmt.Sprintf("requires %s role in organization", requiredRole), details)
}

// ProjectAccessDenied is raised when a user lacks the required project role.
func ProjectAccessDenied(projectID, requiredRole, actualRole string) *Error {
	details := map[string]any{
		"project_id":    projectID,
		"required_role": requiredRole,
	}
	if actualRole != "" {
		details["actual_role"] = actualRole
	}
	return newErr(KindAuthorization, CodeProjectAccessDenied,
		fmt.Sprintf("requires %s access to project", requiredRole), details)
}

// ResourceAccessDenied is raised when a user lacks access to a specific
// resource regardless of project role (e.g. cross-org reference).
func ResourceAccessDenied(resourceType, resourceID, reason string) *Error {
	details := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	if reason != "" {
		details["reason"] = reason
	}
	return newErr(KindAuthorization, CodeResourceAccessDenied,
		fmt.Sprintf("access to %s denied", resourceType), details)
}

// OwnershipRequired is raised when only the resource owner may act.
func OwnershipRequired(resourceType, resourceID, action string) *Error {
	return newErr(KindAuthorization, CodeOwnershipRequired,
		fmt.Sprintf("only the owner may %s this %s", action, resourceType),
		map[string]any{"resource_type": resourceType, "resource_id": resourceID})
}

// InsufficientPermissions is a catch-all authorization denial that doesn't
// fit the org/project/resource shapes above.
func InsufficientPermissions(msg string, details map[string]any) *Error {
	return newErr(KindAuthorization, CodeInsufficientPerms, msg, details)
}

// Validation wraps a malformed-input failure.
func Validation(msg string, details map[string]any) *Error {
	return newErr(KindValidation, "", msg, details)
}

// NotFound wraps a missing-entity failure.
func NotFound(resourceType, resourceID string) *Error {
	return newErr(KindNotFound, "", fmt.Sprintf("%s not found", resourceType),
		map[string]any{"resource_type": resourceType, "resource_id": resourceID})
}

// Conflict wraps a uniqueness / state collision.
func Conflict(msg string, details map[string]any) *Error {
	return newErr(KindConflict, "", msg, details)
}

// InvalidTransition wraps a state-machine violation, enumerating the
// states that would have been legal.
func InvalidTransition(from, to string, allowed []string) *Error {
	return newErr(KindInvalidTransition, "", fmt.Sprintf("cannot transition from %s to %s", from, to),
		map[string]any{"from": from, "to": to, "allowed": allowed})
}

// StorageUnavailable wraps a downstream-outage failure (graph/chunk/
// relational/Redis connectivity).
func StorageUnavailable(store string, cause error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: fmt.Sprintf("%s unavailable", store), Err: cause}
}

// TimeoutExceeded wraps an operation that exceeded its deadline.
func TimeoutExceeded(op string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s exceeded its deadline", op), Err: cause}
}

// Internal wraps an unanticipated error behind a correlation ID; callers
// must log the full error server-side and return only refID to the client.
func Internal(refID string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", RefID: refID, Err: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
