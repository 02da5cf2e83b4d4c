package pgx

import (
	"context"
	"fmt"

	"github.com/finkg/backend/pkg/ai"
	"github.com/finkg/backend/pkg/common"

	"github.com/pgvector/pgvector-go"
)

const selectNodesWithoutEmbeddingSQL = `
SELECT id, type, value, key, properties
FROM node_table
WHERE project_id = $1
  AND embedding IS NULL
  AND COALESCE(properties->>'context', '') <> ''
ORDER BY type DESC, value ASC
`

const updateNodeEmbeddingSQL = `
UPDATE node_table SET embedding = $3
WHERE project_id = $1 AND id = $2
`

const searchNodesSQL = `
SELECT id, type, value, key, properties
FROM node_table
WHERE project_id = $1 AND embedding IS NOT NULL
ORDER BY embedding <=> $2
LIMIT $3
`

func (s *GraphDBStorage) GetNodesWithoutEmbedding(ctx context.Context, projectID string) ([]common.Node, error) {
	rows, err := s.conn.Query(ctx, selectNodesWithoutEmbeddingSQL, projectID)
	if err != nil {
		return nil, err
	}
	return scanNodes(rows)
}

func (s *GraphDBStorage) SaveNodeEmbedding(ctx context.Context, projectID string, nodeID string, embedding []float32) error {
	if len(embedding) != ai.EmbeddingDimensions {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), ai.EmbeddingDimensions)
	}
	_, err := s.conn.Exec(ctx, updateNodeEmbeddingSQL, projectID, nodeID, pgvector.NewVector(embedding))
	return err
}

// SearchNodes returns the project's nodes closest to embedding by cosine
// distance. Nodes without an embedding are never returned.
func (s *GraphDBStorage) SearchNodes(ctx context.Context, projectID string, embedding []float32, limit int) ([]common.Node, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.conn.Query(ctx, searchNodesSQL, projectID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, err
	}
	return scanNodes(rows)
}
