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

var edgeColumns = []string{"id", "project_id", "type", "from_id", "to_id", "value", "event_rel", "properties"}

const selectProjectEdgesSQL = `
SELECT id, type, from_id, to_id, value, event_rel, properties
FROM edge_table
WHERE project_id = $1
ORDER BY row_id
`

const countProjectEdgesSQL = `SELECT count(*) FROM edge_table WHERE project_id = $1`

const deleteProjectEdgesSQL = `DELETE FROM edge_table WHERE project_id = $1`

const deleteProjectEdgesByMethodSQL = `
DELETE FROM edge_table
WHERE project_id = $1 AND properties->>'extraction_method' = $2
`

// edgeDeleteStatement returns the delete that clears the edges a pass with
// mode replaces.
func edgeDeleteStatement(projectID string, mode common.RelationMode) (string, []any) {
	if mode.Scoped() {
		return deleteProjectEdgesByMethodSQL, []any{projectID, string(mode)}
	}
	return deleteProjectEdgesSQL, []any{projectID}
}

func edgeRows(projectID string, edges []common.Edge) ([][]any, error) {
	rows := make([][]any, 0, len(edges))
	for _, e := range edges {
		if e.From == "" || e.To == "" {
			return nil, fmt.Errorf("edge %s has an empty endpoint", e.ID)
		}
		props, err := encodeProperties(e.Properties)
		if err != nil {
			return nil, fmt.Errorf("encode properties of edge %s: %w", e.ID, err)
		}
		rows = append(rows, []any{
			e.ID,
			projectID,
			util.SanitizePostgresText(e.Type),
			e.From,
			e.To,
			util.SanitizePostgresText(e.Value),
			util.SanitizePostgresText(e.EventRel),
			props,
		})
	}
	return rows, nil
}

// ReplaceEdges deletes the edges selected by mode and copies the new edges
// in one transaction.
func (s *GraphDBStorage) ReplaceEdges(ctx context.Context, projectID string, edges []common.Edge, mode common.RelationMode) error {
	rows, err := edgeRows(projectID, edges)
	if err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	sql, args := edgeDeleteStatement(projectID, mode)
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	logger.Debug("[Store] Deleted project edges", "project_id", projectID, "mode", mode, "count", tag.RowsAffected())

	err = store.ChunkRange(len(rows), s.copyChunk, func(start, end int) error {
		_, err := tx.CopyFrom(ctx, pgxv5.Identifier{"edge_table"}, edgeColumns, pgxv5.CopyFromRows(rows[start:end]))
		return err
	})
	if err != nil {
		return fmt.Errorf("insert edges: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *GraphDBStorage) GetEdges(ctx context.Context, projectID string) ([]common.Edge, error) {
	rows, err := s.conn.Query(ctx, selectProjectEdgesSQL, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]common.Edge, 0)
	for rows.Next() {
		var (
			e     common.Edge
			props []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.From, &e.To, &e.Value, &e.EventRel, &props); err != nil {
			return nil, err
		}
		e.Properties = decodeProperties(props)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *GraphDBStorage) DeleteEdges(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.conn.Exec(ctx, deleteProjectEdgesSQL, projectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *GraphDBStorage) CountEdges(ctx context.Context, projectID string) (int64, error) {
	return s.count(ctx, countProjectEdgesSQL, projectID)
}
