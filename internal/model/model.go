// Package model holds the shared domain types for Sibyl's graph, chunk, and
// relational data: entities, relationships, chunks, documents, sources,
// episodes, and the RBAC records that scope them to an organization and
// project.
package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType discriminates the tagged-variant entities stored in the graph.
type EntityType string

const (
	EntityPattern        EntityType = "pattern"
	EntityRule           EntityType = "rule"
	EntityTemplate       EntityType = "template"
	EntityTask           EntityType = "task"
	EntityProject        EntityType = "project"
	EntityEpic           EntityType = "epic"
	EntityEpisode        EntityType = "episode"
	EntityTopic          EntityType = "topic"
	EntityLanguage       EntityType = "language"
	EntityTool           EntityType = "tool"
	EntityConfigFile     EntityType = "config_file"
	EntitySlashCommand   EntityType = "slash_command"
	EntityKnowledgeSrc   EntityType = "knowledge_source"
	EntityDocument       EntityType = "document"
	EntityCommunity      EntityType = "community"
	EntitySource         EntityType = "source"
)

// ValidEntityTypes is the allow-list consulted wherever an entity_type is
// accepted from a caller.
var ValidEntityTypes = map[EntityType]bool{
	EntityPattern: true, EntityRule: true, EntityTemplate: true, EntityTask: true,
	EntityProject: true, EntityEpic: true, EntityEpisode: true, EntityTopic: true,
	EntityLanguage: true, EntityTool: true, EntityConfigFile: true,
	EntitySlashCommand: true, EntityKnowledgeSrc: true, EntityDocument: true,
	EntityCommunity: true, EntitySource: true,
}

const (
	MaxEntityContentLen = 50_000
	MaxEntityNameLen    = 200
)

// Entity is a semantic record in the property graph. entity_type is the
// discriminator for what would otherwise be a class hierarchy (Pattern,
// Rule, Task, Project, Epic, Episode, ...); subtype-specific fields live in
// Metadata rather than as distinct Go types.
type Entity struct {
	ID             string         `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	ProjectID      string         `json:"project_id,omitempty"` // "" = unassigned / shared-project
	EntityType     EntityType     `json:"entity_type"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Content        string         `json:"content,omitempty"`
	Embedding      []float32      `json:"embedding,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RelationshipType enumerates the typed edges the graph store allows to
// appear literally in a Cypher fragment (the Cypher-injection guard).
type RelationshipType string

const (
	RelAppliesTo  RelationshipType = "applies_to"
	RelRelatedTo  RelationshipType = "related_to"
	RelDependsOn  RelationshipType = "depends_on"
	RelBlocks     RelationshipType = "blocks"
	RelReferences RelationshipType = "references"
	RelContains   RelationshipType = "contains"
	RelSupersedes RelationshipType = "supersedes"
	RelSimilarTo  RelationshipType = "similar_to"
)

// ValidRelationshipTypes is the allow-list used by the Cypher-injection
// guard: any relationship type not in this set is rejected before a query
// is built.
var ValidRelationshipTypes = map[RelationshipType]bool{
	RelAppliesTo: true, RelRelatedTo: true, RelDependsOn: true, RelBlocks: true,
	RelReferences: true, RelContains: true, RelSupersedes: true, RelSimilarTo: true,
}

// Relationship is a directed typed edge between two entities in the same
// tenant. (SourceID, TargetID, Type) is unique within a tenant: a repeat
// create returns the existing edge's ID.
type Relationship struct {
	ID             string            `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	SourceID       string            `json:"source_id"`
	TargetID       string            `json:"target_id"`
	Type           RelationshipType  `json:"type"`
	Weight         float32           `json:"weight"`
	Fact           string            `json:"fact,omitempty"`
	ValidFrom      *time.Time        `json:"valid_from,omitempty"`
	ValidTo        *time.Time        `json:"valid_to,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ChunkType distinguishes how a Chunk's text should be treated by chunking
// and rendering logic.
type ChunkType string

const (
	ChunkProse   ChunkType = "prose"
	ChunkCode    ChunkType = "code"
	ChunkHeading ChunkType = "heading"
)

// Chunk is a retrievable fragment of a Document's text, totally ordered
// within the document by Ordinal.
type Chunk struct {
	ID             uuid.UUID      `json:"id"`
	DocumentID     uuid.UUID      `json:"document_id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	ProjectID      string         `json:"project_id,omitempty"`
	Ordinal        int            `json:"ordinal"`
	Text           string         `json:"text"`
	PrecedingCtx   string         `json:"preceding_context,omitempty"`
	Vector         []float32      `json:"vector,omitempty"`
	Tokens         map[string]int `json:"tokens,omitempty"` // BM25 term frequencies
	Language       string         `json:"language,omitempty"`
	ChunkType      ChunkType      `json:"chunk_type"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SourceStatus is the crawl-source status machine.
type SourceStatus string

const (
	SourcePending   SourceStatus = "pending"
	SourceRunning   SourceStatus = "running"
	SourceCompleted SourceStatus = "completed"
	SourceFailed    SourceStatus = "failed"
	SourcePartial   SourceStatus = "partial"
)

// Source is a named crawl target owning many Documents.
type Source struct {
	ID              uuid.UUID         `json:"id"`
	OrganizationID  uuid.UUID         `json:"organization_id"`
	ProjectID       string            `json:"project_id,omitempty"`
	Name            string            `json:"name"`
	RootURL         string            `json:"root_url"`
	Status          SourceStatus      `json:"status"`
	IncludePatterns []string          `json:"include_patterns,omitempty"`
	ExcludePatterns []string          `json:"exclude_patterns,omitempty"`
	MaxDepth        int               `json:"max_depth"`
	UseHeadless     bool              `json:"use_headless"`
	PagesCrawled    int               `json:"pages_crawled"`
	PagesTotal      int               `json:"pages_total"`
	PagesFailed     int               `json:"pages_failed"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Document is one fetched page belonging to a Source; replaceable on
// re-crawl (old chunks discarded, new chunks inserted atomically).
type Document struct {
	ID             uuid.UUID         `json:"id"`
	SourceID       uuid.UUID         `json:"source_id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	ProjectID      string            `json:"project_id,omitempty"`
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	ContentHash    string            `json:"content_hash"`
	ChunkCount     int               `json:"chunk_count"`
	Status         string            `json:"status"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Episode is an append-only learning/decision/debugging record. ValidFrom
// is distinct from CreatedAt and is what temporal decay operates on.
type Episode struct {
	ID             string         `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	ProjectID      string         `json:"project_id,omitempty"`
	Name           string         `json:"name"`
	Content        string         `json:"content"`
	ValidFrom      time.Time      `json:"valid_from"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// OrgRole is a user's role within an Organization.
type OrgRole string

const (
	OrgOwner  OrgRole = "owner"
	OrgAdmin  OrgRole = "admin"
	OrgMember OrgRole = "member"
	OrgViewer OrgRole = "viewer"
)

// ProjectRole is a user's effective role on a Project. Order matters:
// higher index outranks lower.
type ProjectRole string

const (
	RoleOwner      ProjectRole = "owner"
	RoleMaintainer ProjectRole = "maintainer"
	RoleContributor ProjectRole = "contributor"
	RoleViewer     ProjectRole = "viewer"
)

var projectRoleRank = map[ProjectRole]int{
	RoleViewer: 0, RoleContributor: 1, RoleMaintainer: 2, RoleOwner: 3,
}

// Outranks reports whether r is a strictly higher privilege than other.
func (r ProjectRole) Outranks(other ProjectRole) bool {
	return projectRoleRank[r] > projectRoleRank[other]
}

// AtLeast reports whether r meets or exceeds the minimum required role.
func (r ProjectRole) AtLeast(min ProjectRole) bool {
	return projectRoleRank[r] >= projectRoleRank[min]
}

// MaxRole returns whichever of a, b ranks higher.
func MaxRole(a, b ProjectRole) ProjectRole {
	if a.Outranks(b) {
		return a
	}
	return b
}

// Visibility controls who gets a project's default role without an
// explicit membership grant.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityProject Visibility = "project"
	VisibilityOrg     Visibility = "org"
)

// SharedProjectSlug is the mandatory per-organization project that holds
// org-wide knowledge not tied to a specific project.
const SharedProjectSlug = "_shared"

// Organization is the tenant boundary.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project belongs to one Organization; Slug is unique per organization.
type Project struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Slug           string      `json:"slug"`
	Name           string      `json:"name"`
	GraphID        string      `json:"graph_id"` // links graph-side entities to this row
	Visibility     Visibility  `json:"visibility"`
	DefaultRole    ProjectRole `json:"default_role"`
	IsShared       bool        `json:"is_shared"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Membership binds a user to an Organization with an org-wide role.
type Membership struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           OrgRole   `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProjectMember is a direct project-role grant to a user.
type ProjectMember struct {
	UserID    uuid.UUID   `json:"user_id"`
	ProjectID uuid.UUID   `json:"project_id"`
	Role      ProjectRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// Team is an organization-scoped group of users.
type Team struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// TeamProject is a team-mediated project-role grant.
type TeamProject struct {
	TeamID    uuid.UUID   `json:"team_id"`
	ProjectID uuid.UUID   `json:"project_id"`
	Role      ProjectRole `json:"role"`
}

// ApiKey is an API credential scoped to an org/user with optional project
// restriction and expiry. The raw key is never persisted; only its PBKDF2
// hash, alongside the prefix used for fast lookup.
type ApiKey struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Prefix         string     `json:"prefix"`
	SaltHex        string     `json:"-"`
	HashHex        string     `json:"-"`
	Scopes         []string   `json:"scopes"`
	ProjectIDs     []uuid.UUID `json:"project_ids,omitempty"` // nil = unrestricted, empty = none
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Expired reports whether the key is unusable at instant now.
func (k *ApiKey) Expired(now time.Time) bool {
	if k.RevokedAt != nil {
		return true
	}
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
