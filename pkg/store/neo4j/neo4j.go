// Package neo4j mirrors project graphs into Neo4j. Every node carries the
// KnowledgeNode label and is merged by its ID within a project; relationship
// types are derived from the edge type with RelationshipLabel.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const nodeLabel = "KnowledgeNode"

var _ store.GraphMirror = (*Neo4jStorage)(nil)

type Config struct {
	URI      string
	Username string
	Password string
	Database string

	MaxConnectionPoolSize int
	ConnectionTimeout     time.Duration
	ConnectRetries        int
}

// Neo4jStorage is the graph mirror. Each call opens its own session and
// runs a single statement.
type Neo4jStorage struct {
	config Config
	driver neo4j.DriverWithContext
}

// Connect creates the driver and verifies connectivity, retrying with
// exponential backoff.
func Connect(ctx context.Context, config Config) (*Neo4jStorage, error) {
	if config.URI == "" {
		return nil, errors.New("neo4j uri is empty")
	}
	if config.MaxConnectionPoolSize <= 0 {
		config.MaxConnectionPoolSize = 50
	}
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 30 * time.Second
	}
	if config.ConnectRetries <= 0 {
		config.ConnectRetries = 5
	}

	auth := neo4j.BasicAuth(config.Username, config.Password, "")
	configure := func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = config.MaxConnectionPoolSize
		c.ConnectionAcquisitionTimeout = config.ConnectionTimeout
	}

	var driver neo4j.DriverWithContext
	err := util.RetryErrWithBackoff(ctx, config.ConnectRetries, 100*time.Millisecond, config.ConnectionTimeout, func(ctx context.Context) error {
		d, err := neo4j.NewDriverWithContext(config.URI, auth, configure)
		if err != nil {
			return err
		}
		if err := d.VerifyConnectivity(ctx); err != nil {
			_ = d.Close(ctx)
			logger.Warn("[Neo4j] Connectivity check failed", "uri", config.URI, "err", err)
			return err
		}
		driver = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}

	return &Neo4jStorage{config: config, driver: driver}, nil
}

func (s *Neo4jStorage) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Neo4jStorage) write(ctx context.Context, cypher string, params map[string]any) (int64, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, err
		}
		c := summary.Counters()
		return int64(c.NodesDeleted() + c.RelationshipsDeleted() + c.NodesCreated() + c.RelationshipsCreated()), nil
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

const deleteRelationshipsCypher = `
MATCH ()-[r]-()
WHERE r.project_id = $project_id
DELETE r
`

const deleteNodesCypher = `
MATCH (n:` + nodeLabel + `)
WHERE n.project_id = $project_id
DETACH DELETE n
`

// DeleteProjectSubgraph removes the project's relationships, then its nodes.
func (s *Neo4jStorage) DeleteProjectSubgraph(ctx context.Context, projectID string) error {
	params := map[string]any{"project_id": projectID}
	rels, err := s.write(ctx, deleteRelationshipsCypher, params)
	if err != nil {
		return fmt.Errorf("delete relationships: %w", err)
	}
	nodes, err := s.write(ctx, deleteNodesCypher, params)
	if err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	logger.Debug("[Neo4j] Deleted project subgraph", "project_id", projectID, "relationships", rels, "nodes", nodes)
	return nil
}

const upsertNodeCypher = `
MERGE (n:` + nodeLabel + ` {id: $id, project_id: $project_id})
SET n += $properties,
    n.type = $type,
    n.value = $value,
    n.key = $key,
    n.name = $value
`

func (s *Neo4jStorage) UpsertNode(ctx context.Context, projectID string, node common.Node) error {
	_, err := s.write(ctx, upsertNodeCypher, nodeParams(projectID, node))
	return err
}

func nodeParams(projectID string, node common.Node) map[string]any {
	return map[string]any{
		"id":         node.ID,
		"project_id": projectID,
		"type":       node.Type.String(),
		"value":      node.Value,
		"key":        node.Key,
		"properties": extraProperties(node.Properties),
	}
}

// createEdgeCypher needs the relationship type spliced in, Cypher has no
// parameter for it.
const createEdgeCypher = `
MATCH (a:` + nodeLabel + ` {id: $from_id, project_id: $project_id})
MATCH (b:` + nodeLabel + ` {id: $to_id, project_id: $project_id})
MERGE (a)-[r:%s {id: $id}]->(b)
SET r += $properties,
    r.type = $type,
    r.value = $value,
    r.eventRel = $eventRel,
    r.project_id = $project_id
`

// CreateEdge creates the relationship between two mirrored nodes.
func (s *Neo4jStorage) CreateEdge(ctx context.Context, projectID string, edge common.Edge, from, to common.Node) error {
	label := RelationshipLabel(edge.Type)
	cypher := fmt.Sprintf(createEdgeCypher, quoteIdentifier(label))
	created, err := s.write(ctx, cypher, edgeParams(projectID, edge, from, to))
	if err != nil {
		return err
	}
	if created == 0 {
		logger.Debug("[Neo4j] Relationship already present", "edge_id", edge.ID, "type", label)
	}
	return nil
}

func edgeParams(projectID string, edge common.Edge, from, to common.Node) map[string]any {
	return map[string]any{
		"id":         edge.ID,
		"from_id":    from.ID,
		"to_id":      to.ID,
		"project_id": projectID,
		"type":       edge.Type,
		"value":      edge.Value,
		"eventRel":   edge.EventRel,
		"properties": extraProperties(edge.Properties),
	}
}

// extraProperties drops keys that identify the element, so a model supplied
// property can never move a node or edge to another project.
func extraProperties(p common.Properties) map[string]any {
	out := p.ToMap()
	delete(out, "id")
	delete(out, common.PropProjectID)
	return out
}
