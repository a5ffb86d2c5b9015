// Package graphstore implements C1's GraphStore over Neo4j: entities,
// relationships, traversal, and full-text edge search, all scoped by a
// group_id (the stringified organization ID) and guarded against
// Cypher injection for the handful of values that must appear literally
// in a query rather than as a bound parameter.
package graphstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// Direction controls traversal orientation.
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirBoth     Direction = "both"
)

// Filter constrains list/search operations to a project scope.
type Filter struct {
	ProjectFilter []string // graph-side project identifiers; nil = no filter
	EntityType    model.EntityType
}

// TraverseHop is one visited node in a traversal result.
type TraverseHop struct {
	Entity       model.Entity
	RelationPath []string
	Depth        int
}

// Store is the GraphStore interface C2/C3 depend on.
type Store interface {
	CreateEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error)
	CreateEntityDirect(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error)
	GetEntity(ctx context.Context, groupID uuid.UUID, id string) (*model.Entity, error)
	UpdateEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error)
	DeleteEntity(ctx context.Context, groupID uuid.UUID, id string) error
	ListByType(ctx context.Context, groupID uuid.UUID, f Filter, limit, offset int) ([]model.Entity, int, error)
	BatchCreate(ctx context.Context, groupID uuid.UUID, entities []model.Entity) ([]model.Entity, error)
	BatchUpdate(ctx context.Context, groupID uuid.UUID, entities []model.Entity) error
	BatchDelete(ctx context.Context, groupID uuid.UUID, ids []string) error

	CreateRelationship(ctx context.Context, groupID uuid.UUID, r *model.Relationship) (*model.Relationship, error)
	ListEdges(ctx context.Context, groupID uuid.UUID, sourceID string, relType model.RelationshipType) ([]model.Relationship, error)

	SearchNodes(ctx context.Context, groupID uuid.UUID, query string, f Filter, limit int) ([]model.Entity, error)
	SearchEdges(ctx context.Context, groupID uuid.UUID, query string, f Filter, limit int) ([]model.Relationship, error)
	Traverse(ctx context.Context, groupID uuid.UUID, sourceID string, edgeTypes []model.RelationshipType, maxDepth int, dir Direction) ([]TraverseHop, error)
	AggregateCountsByType(ctx context.Context, groupID uuid.UUID) (map[model.EntityType]int, error)

	Close(ctx context.Context) error
}

const (
	maxTraverseDepth = 10
	maxListLimit     = 500
)

// clampLimit bounds a caller-supplied pagination integer before it is
// interpolated into a Cypher range clause (Neo4j has no parameterized
// LIMIT/variable-depth syntax, so these must be validated, not bound).
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func clampDepth(depth int) (int, error) {
	if depth < 1 || depth > maxTraverseDepth {
		return 0, sibylerr.Validation("max_depth out of range", map[string]any{"max_depth": depth, "limit": maxTraverseDepth})
	}
	return depth, nil
}

// relTypePattern validates a set of relationship types against the
// allow-list and renders the `:TYPE1|TYPE2` Cypher fragment. This is the
// Cypher-injection guard for relationship-type names, which Neo4j cannot
// bind as query parameters.
func relTypePattern(types []model.RelationshipType) (string, error) {
	if len(types) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(types))
	for _, t := range types {
		if !model.ValidRelationshipTypes[t] {
			return "", sibylerr.Validation("unknown relationship type", map[string]any{"type": string(t)})
		}
		parts = append(parts, strings.ToUpper(string(t)))
	}
	return ":" + strings.Join(parts, "|"), nil
}

// Neo4jStore is the Neo4j-backed Store implementation.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// New dials a Neo4j instance and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error { return s.driver.Close(ctx) }

func entityLabel(t model.EntityType) string {
	// Labels are drawn from the same closed enum as relationship types, so
	// they never need runtime validation beyond the enum membership check
	// already performed at the model layer.
	return "Entity"
}

func (s *Neo4jStore) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, fn)
}

func (s *Neo4jStore) read(ctx context.Context, fn func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, fn)
}

func (s *Neo4jStore) CreateEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return s.upsertEntity(ctx, groupID, e)
}

// CreateEntityDirect bypasses any extraction step and preserves the
// caller's ID and metadata verbatim.
func (s *Neo4jStore) CreateEntityDirect(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	if e.ID == "" {
		return nil, sibylerr.Validation("direct create requires caller-supplied id", nil)
	}
	return s.upsertEntity(ctx, groupID, e)
}

func (s *Neo4jStore) upsertEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	if !model.ValidEntityTypes[e.EntityType] {
		return nil, sibylerr.Validation("unknown entity_type", map[string]any{"entity_type": string(e.EntityType)})
	}
	if len(e.Name) > model.MaxEntityNameLen || len(e.Content) > model.MaxEntityContentLen {
		return nil, sibylerr.Validation("entity exceeds size limits", nil)
	}
	e.OrganizationID = groupID
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `
		MERGE (n:` + entityLabel(e.EntityType) + ` {uuid: $uuid, group_id: $group_id})
		ON CREATE SET n.created_at = $created_at
		SET n.entity_type = $entity_type, n.project_id = $project_id, n.name = $name,
		    n.description = $description, n.content = $content, n.metadata = $metadata,
		    n.updated_at = $updated_at
		RETURN n
	`
	params := map[string]any{
		"uuid": e.ID, "group_id": groupID.String(), "entity_type": string(e.EntityType),
		"project_id": e.ProjectID, "name": e.Name, "description": e.Description,
		"content": e.Content, "metadata": metadataToJSON(e.Metadata),
		"created_at": e.CreatedAt.Unix(), "updated_at": e.UpdatedAt.Unix(),
	}
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, params)
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return e, nil
}

func (s *Neo4jStore) GetEntity(ctx context.Context, groupID uuid.UUID, id string) (*model.Entity, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Entity {uuid: $uuid, group_id: $group_id}) RETURN n`,
			map[string]any{"uuid": id, "group_id": groupID.String()})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, nil // not found, not an error at this layer
		}
		node, _ := record.Get("n")
		return nodeToEntity(node.(neo4j.Node), groupID), nil
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	if result == nil {
		return nil, sibylerr.NotFound("entity", id)
	}
	return result.(*model.Entity), nil
}

func (s *Neo4jStore) UpdateEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	existing, err := s.GetEntity(ctx, groupID, e.ID)
	if err != nil {
		return nil, err
	}
	e.EntityType = existing.EntityType // entity_type is immutable after creation
	e.CreatedAt = existing.CreatedAt
	return s.upsertEntity(ctx, groupID, e)
}

func (s *Neo4jStore) DeleteEntity(ctx context.Context, groupID uuid.UUID, id string) error {
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// DETACH DELETE cascades to every relationship touching the node.
		return tx.Run(ctx, `MATCH (n:Entity {uuid: $uuid, group_id: $group_id}) DETACH DELETE n`,
			map[string]any{"uuid": id, "group_id": groupID.String()})
	})
	if err != nil {
		return sibylerr.StorageUnavailable("graph", err)
	}
	return nil
}

func (s *Neo4jStore) ListByType(ctx context.Context, groupID uuid.UUID, f Filter, limit, offset int) ([]model.Entity, int, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	params := map[string]any{"group_id": groupID.String(), "limit": limit, "offset": offset}
	where := "n.group_id = $group_id"
	if f.EntityType != "" {
		where += " AND n.entity_type = $entity_type"
		params["entity_type"] = string(f.EntityType)
	}
	if f.ProjectFilter != nil {
		where += " AND n.project_id IN $project_filter"
		params["project_filter"] = f.ProjectFilter
	}

	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Entity) WHERE `+where+`
			RETURN n ORDER BY n.updated_at DESC SKIP $offset LIMIT $limit`, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		entities := make([]model.Entity, 0, len(records))
		for _, rec := range records {
			node, _ := rec.Get("n")
			entities = append(entities, *nodeToEntity(node.(neo4j.Node), groupID))
		}
		return entities, nil
	})
	if err != nil {
		return nil, 0, sibylerr.StorageUnavailable("graph", err)
	}
	entities := result.([]model.Entity)

	total, err := s.countByType(ctx, groupID, f)
	if err != nil {
		return entities, len(entities), nil
	}
	return entities, total, nil
}

func (s *Neo4jStore) countByType(ctx context.Context, groupID uuid.UUID, f Filter) (int, error) {
	params := map[string]any{"group_id": groupID.String()}
	where := "n.group_id = $group_id"
	if f.EntityType != "" {
		where += " AND n.entity_type = $entity_type"
		params["entity_type"] = string(f.EntityType)
	}
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Entity) WHERE `+where+` RETURN count(n) as c`, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return 0, err
		}
		c, _ := rec.Get("c")
		return int(c.(int64)), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// BatchCreate performs a single-round-trip UNWIND bulk insert.
func (s *Neo4jStore) BatchCreate(ctx context.Context, groupID uuid.UUID, entities []model.Entity) ([]model.Entity, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	rows := make([]map[string]any, 0, len(entities))
	now := time.Now()
	for i := range entities {
		e := &entities[i]
		if !model.ValidEntityTypes[e.EntityType] {
			return nil, sibylerr.Validation("unknown entity_type", map[string]any{"entity_type": string(e.EntityType)})
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.OrganizationID = groupID
		e.CreatedAt, e.UpdatedAt = now, now
		rows = append(rows, map[string]any{
			"uuid": e.ID, "entity_type": string(e.EntityType), "project_id": e.ProjectID,
			"name": e.Name, "description": e.Description, "content": e.Content,
			"metadata": metadataToJSON(e.Metadata), "created_at": now.Unix(), "updated_at": now.Unix(),
		})
	}
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			UNWIND $rows AS row
			MERGE (n:Entity {uuid: row.uuid, group_id: $group_id})
			SET n.entity_type = row.entity_type, n.project_id = row.project_id, n.name = row.name,
			    n.description = row.description, n.content = row.content, n.metadata = row.metadata,
			    n.created_at = row.created_at, n.updated_at = row.updated_at
		`, map[string]any{"rows": rows, "group_id": groupID.String()})
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return entities, nil
}

func (s *Neo4jStore) BatchUpdate(ctx context.Context, groupID uuid.UUID, entities []model.Entity) error {
	_, err := s.BatchCreate(ctx, groupID, entities)
	return err
}

func (s *Neo4jStore) BatchDelete(ctx context.Context, groupID uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			UNWIND $ids AS id
			MATCH (n:Entity {uuid: id, group_id: $group_id})
			DETACH DELETE n
		`, map[string]any{"ids": ids, "group_id": groupID.String()})
	})
	if err != nil {
		return sibylerr.StorageUnavailable("graph", err)
	}
	return nil
}

// CreateRelationship dedups on (source_id, target_id, type) within a
// tenant: a repeat create returns the existing edge's ID via MERGE.
func (s *Neo4jStore) CreateRelationship(ctx context.Context, groupID uuid.UUID, r *model.Relationship) (*model.Relationship, error) {
	if !model.ValidRelationshipTypes[r.Type] {
		return nil, sibylerr.Validation("unknown relationship type", map[string]any{"type": string(r.Type)})
	}
	pattern, err := relTypePattern([]model.RelationshipType{r.Type})
	if err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.OrganizationID = groupID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := fmt.Sprintf(`
		MATCH (s:Entity {uuid: $source_id, group_id: $group_id})
		MATCH (t:Entity {uuid: $target_id, group_id: $group_id})
		MERGE (s)-[rel%s]->(t)
		ON CREATE SET rel.uuid = $uuid, rel.weight = $weight, rel.fact = $fact, rel.created_at = $created_at
		RETURN rel.uuid AS uuid
	`, pattern)
	params := map[string]any{
		"source_id": r.SourceID, "target_id": r.TargetID, "group_id": groupID.String(),
		"uuid": r.ID, "weight": r.Weight, "fact": r.Fact, "created_at": r.CreatedAt.Unix(),
	}
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, sibylerr.NotFound("entity", r.SourceID+" or "+r.TargetID)
		}
		id, _ := rec.Get("uuid")
		return id.(string), nil
	})
	if err != nil {
		if _, ok := err.(*sibylerr.Error); ok {
			return nil, err
		}
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	r.ID = result.(string)
	return r, nil
}

func (s *Neo4jStore) ListEdges(ctx context.Context, groupID uuid.UUID, sourceID string, relType model.RelationshipType) ([]model.Relationship, error) {
	pattern, err := relTypePattern([]model.RelationshipType{relType})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		MATCH (s:Entity {uuid: $source_id, group_id: $group_id})-[rel%s]->(t:Entity)
		RETURN rel.uuid AS uuid, t.uuid AS target_id, rel.weight AS weight, rel.fact AS fact, rel.created_at AS created_at
	`, pattern)
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"source_id": sourceID, "group_id": groupID.String()})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]model.Relationship, 0, len(records))
		for _, rec := range records {
			edges = append(edges, recordToRelationship(rec, groupID, sourceID, relType))
		}
		return edges, nil
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return result.([]model.Relationship), nil
}

// SearchNodes does a simple CONTAINS-based textual match over name,
// description, and content. A full deployment would back this with a
// Neo4j full-text index; the contract here matches search_nodes(query,
// filter) regardless of index technology.
func (s *Neo4jStore) SearchNodes(ctx context.Context, groupID uuid.UUID, query string, f Filter, limit int) ([]model.Entity, error) {
	limit = clampLimit(limit)
	params := map[string]any{"group_id": groupID.String(), "q": strings.ToLower(query), "limit": limit}
	where := "n.group_id = $group_id AND (toLower(n.name) CONTAINS $q OR toLower(n.description) CONTAINS $q OR toLower(n.content) CONTAINS $q)"
	if f.EntityType != "" {
		where += " AND n.entity_type = $entity_type"
		params["entity_type"] = string(f.EntityType)
	}
	if f.ProjectFilter != nil {
		where += " AND n.project_id IN $project_filter"
		params["project_filter"] = f.ProjectFilter
	}
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Entity) WHERE `+where+` RETURN n LIMIT $limit`, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		entities := make([]model.Entity, 0, len(records))
		for _, rec := range records {
			node, _ := rec.Get("n")
			entities = append(entities, *nodeToEntity(node.(neo4j.Node), groupID))
		}
		return entities, nil
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return result.([]model.Entity), nil
}

// SearchEdges implements full-text edge search: it
// never matches `(n)-[e {uuid:$uuid}]->(m)` against a caller-known UUID
// (the Cartesian label x edge-count pattern). Instead it reads
// startNode(rel)/endNode(rel) directly off the matched relationship.
func (s *Neo4jStore) SearchEdges(ctx context.Context, groupID uuid.UUID, query string, f Filter, limit int) ([]model.Relationship, error) {
	limit = clampLimit(limit)
	q := strings.ToLower(query)
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Entity {group_id: $group_id})-[rel]->(t:Entity {group_id: $group_id})
			WHERE toLower(rel.fact) CONTAINS $q
			RETURN rel.uuid AS uuid, type(rel) AS type, startNode(rel).uuid AS source_id,
			       endNode(rel).uuid AS target_id, rel.weight AS weight, rel.fact AS fact,
			       rel.created_at AS created_at
			LIMIT $limit
		`, map[string]any{"group_id": groupID.String(), "q": q, "limit": limit})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]model.Relationship, 0, len(records))
		for _, rec := range records {
			typ, _ := rec.Get("type")
			src, _ := rec.Get("source_id")
			edges = append(edges, recordToRelationship(rec, groupID, src.(string), model.RelationshipType(strings.ToLower(typ.(string)))))
		}
		return edges, nil
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return result.([]model.Relationship), nil
}

// Traverse walks up to maxDepth hops along edgeTypes in the given
// direction, collecting the relation path and depth per visited node.
func (s *Neo4jStore) Traverse(ctx context.Context, groupID uuid.UUID, sourceID string, edgeTypes []model.RelationshipType, maxDepth int, dir Direction) ([]TraverseHop, error) {
	depth, err := clampDepth(maxDepth)
	if err != nil {
		return nil, err
	}
	pattern, err := relTypePattern(edgeTypes)
	if err != nil {
		return nil, err
	}

	var arrow string
	switch dir {
	case DirIncoming:
		arrow = fmt.Sprintf("<-[rels%s*1..%d]-", pattern, depth)
	case DirBoth:
		arrow = fmt.Sprintf("-[rels%s*1..%d]-", pattern, depth)
	default:
		arrow = fmt.Sprintf("-[rels%s*1..%d]->", pattern, depth)
	}

	query := fmt.Sprintf(`
		MATCH p = (s:Entity {uuid: $source_id, group_id: $group_id})%s(n:Entity)
		RETURN n, [r IN relationships(p) | type(r)] AS rel_path, length(p) AS depth
	`, arrow)
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"source_id": sourceID, "group_id": groupID.String()})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		hops := make([]TraverseHop, 0, len(records))
		for _, rec := range records {
			node, _ := rec.Get("n")
			path, _ := rec.Get("rel_path")
			d, _ := rec.Get("depth")
			relPath := make([]string, 0)
			for _, p := range path.([]any) {
				relPath = append(relPath, p.(string))
			}
			hops = append(hops, TraverseHop{
				Entity:       *nodeToEntity(node.(neo4j.Node), groupID),
				RelationPath: relPath,
				Depth:        int(d.(int64)),
			})
		}
		return hops, nil
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return result.([]TraverseHop), nil
}

func (s *Neo4jStore) AggregateCountsByType(ctx context.Context, groupID uuid.UUID) (map[model.EntityType]int, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity {group_id: $group_id})
			RETURN n.entity_type AS entity_type, count(n) AS c
		`, map[string]any{"group_id": groupID.String()})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		counts := make(map[model.EntityType]int, len(records))
		for _, rec := range records {
			t, _ := rec.Get("entity_type")
			c, _ := rec.Get("c")
			counts[model.EntityType(t.(string))] = int(c.(int64))
		}
		return counts, nil
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("graph", err)
	}
	return result.(map[model.EntityType]int), nil
}

func recordToRelationship(rec *neo4j.Record, groupID uuid.UUID, sourceID string, relType model.RelationshipType) model.Relationship {
	r := model.Relationship{OrganizationID: groupID, SourceID: sourceID, Type: relType}
	if v, ok := rec.Get("uuid"); ok && v != nil {
		r.ID = v.(string)
	}
	if v, ok := rec.Get("target_id"); ok && v != nil {
		r.TargetID = v.(string)
	}
	if v, ok := rec.Get("weight"); ok && v != nil {
		r.Weight = float32(v.(float64))
	}
	if v, ok := rec.Get("fact"); ok && v != nil {
		r.Fact = v.(string)
	}
	if v, ok := rec.Get("created_at"); ok && v != nil {
		r.CreatedAt = time.Unix(v.(int64), 0)
	}
	return r
}

func nodeToEntity(node neo4j.Node, groupID uuid.UUID) *model.Entity {
	props := node.Props
	e := &model.Entity{OrganizationID: groupID}
	if v, ok := props["uuid"].(string); ok {
		e.ID = v
	}
	if v, ok := props["entity_type"].(string); ok {
		e.EntityType = model.EntityType(v)
	}
	if v, ok := props["project_id"].(string); ok {
		e.ProjectID = v
	}
	if v, ok := props["name"].(string); ok {
		e.Name = v
	}
	if v, ok := props["description"].(string); ok {
		e.Description = v
	}
	if v, ok := props["content"].(string); ok {
		e.Content = v
	}
	if v, ok := props["metadata"].(string); ok {
		e.Metadata = jsonToMetadata(v)
	}
	if v, ok := props["created_at"].(int64); ok {
		e.CreatedAt = time.Unix(v, 0)
	}
	if v, ok := props["updated_at"].(int64); ok {
		e.UpdatedAt = time.Unix(v, 0)
	}
	return e
}
