package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphNode is a mirrored node as stored in Neo4j.
type GraphNode struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Value      string         `json:"value"`
	Key        string         `json:"key"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge is a mirrored relationship as stored in Neo4j.
type GraphEdge struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Value      string         `json:"value"`
	EventRel   string         `json:"eventRel"`
	Properties map[string]any `json:"properties"`
}

type ProjectGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

const projectNodesCypher = `
MATCH (n:` + nodeLabel + `)
WHERE n.project_id = $project_id
RETURN n
ORDER BY n.type DESC, n.value ASC
`

const projectEdgesCypher = `
MATCH (a)-[r]->(b)
WHERE r.project_id = $project_id
RETURN a.id AS from, b.id AS to, r
`

// GetProjectGraph reads the mirrored subgraph of a project directly from
// Neo4j.
func (s *Neo4jStorage) GetProjectGraph(ctx context.Context, projectID string) (ProjectGraph, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	params := map[string]any{"project_id": projectID}
	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		graph := ProjectGraph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}

		result, err := tx.Run(ctx, projectNodesCypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			n, _, err := neo4j.GetRecordValue[neo4j.Node](record, "n")
			if err != nil {
				return nil, err
			}
			graph.Nodes = append(graph.Nodes, graphNode(n.Props))
		}

		result, err = tx.Run(ctx, projectEdgesCypher, params)
		if err != nil {
			return nil, err
		}
		records, err = result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			r, _, err := neo4j.GetRecordValue[neo4j.Relationship](record, "r")
			if err != nil {
				return nil, err
			}
			from, _ := record.Get("from")
			to, _ := record.Get("to")
			graph.Edges = append(graph.Edges, GraphEdge{
				From:       toString(from),
				To:         toString(to),
				Type:       r.Type,
				Value:      propString(r.Props, "value"),
				EventRel:   propString(r.Props, "eventRel"),
				Properties: r.Props,
			})
		}
		return graph, nil
	})
	if err != nil {
		return ProjectGraph{}, fmt.Errorf("read project graph: %w", err)
	}
	return res.(ProjectGraph), nil
}

func graphNode(props map[string]any) GraphNode {
	return GraphNode{
		ID:         propString(props, "id"),
		Type:       propString(props, "type"),
		Value:      propString(props, "value"),
		Key:        propString(props, "key"),
		Properties: props,
	}
}

func propString(props map[string]any, key string) string {
	return toString(props[key])
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	}
	return fmt.Sprint(v)
}
