package pgx

import (
	"context"
	"fmt"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

var nodeColumns = []string{"id", "project_id", "type", "value", "key", "properties"}

const deleteProjectNodesSQL = `DELETE FROM node_table WHERE project_id = $1`

const selectProjectNodesSQL = `
SELECT id, type, value, key, properties
FROM node_table
WHERE project_id = $1
ORDER BY type DESC, value ASC
`

const countProjectNodesSQL = `SELECT count(*) FROM node_table WHERE project_id = $1`

func nodeRows(projectID string, nodes []common.Node) ([][]any, error) {
	rows := make([][]any, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node without id: %q", n.Value)
		}
		props, err := encodeProperties(n.Properties)
		if err != nil {
			return nil, fmt.Errorf("encode properties of node %s: %w", n.ID, err)
		}
		rows = append(rows, []any{
			util.SanitizePostgresText(n.ID),
			projectID,
			int16(n.Type),
			util.SanitizePostgresText(n.Value),
			util.SanitizePostgresText(n.Key),
			props,
		})
	}
	return rows, nil
}

// ReplaceNodes deletes the project's nodes and copies the new set in one
// transaction. On error the previous set stays untouched.
func (s *GraphDBStorage) ReplaceNodes(ctx context.Context, projectID string, nodes []common.Node) error {
	rows, err := nodeRows(projectID, nodes)
	if err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, deleteProjectNodesSQL, projectID)
	if err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	logger.Debug("[Store] Deleted project nodes", "project_id", projectID, "count", tag.RowsAffected())

	err = store.ChunkRange(len(rows), s.copyChunk, func(start, end int) error {
		_, err := tx.CopyFrom(ctx, pgxv5.Identifier{"node_table"}, nodeColumns, pgxv5.CopyFromRows(rows[start:end]))
		return err
	})
	if err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *GraphDBStorage) GetNodes(ctx context.Context, projectID string) ([]common.Node, error) {
	rows, err := s.conn.Query(ctx, selectProjectNodesSQL, projectID)
	if err != nil {
		return nil, err
	}
	return scanNodes(rows)
}

func scanNodes(rows pgxv5.Rows) ([]common.Node, error) {
	defer rows.Close()

	nodes := make([]common.Node, 0)
	for rows.Next() {
		var (
			n     common.Node
			t     int16
			props []byte
		)
		if err := rows.Scan(&n.ID, &t, &n.Value, &n.Key, &props); err != nil {
			return nil, err
		}
		n.Type = common.NodeType(t)
		n.Properties = decodeProperties(props)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *GraphDBStorage) DeleteNodes(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.conn.Exec(ctx, deleteProjectNodesSQL, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *GraphDBStorage) CountNodes(ctx context.Context, projectID string) (int64, error) {
	return s.count(ctx, countProjectNodesSQL, projectID)
}
