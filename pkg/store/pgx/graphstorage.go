package pgx

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

var (
	_ store.GraphStorage        = (*GraphDBStorage)(nil)
	_ store.AnnouncementStorage = (*GraphDBStorage)(nil)
	_ store.EmbeddingStorage    = (*GraphDBStorage)(nil)
)

// GraphDBStorage implements the relational graph storage on PostgreSQL.
// Nodes and edges live in node_table and edge_table keyed by project;
// node embeddings are stored next to the nodes using pgvector.
//
// Connections are taken from the pool per statement. Replace operations run
// inside a single transaction.
type GraphDBStorage struct {
	conn      pgxIConn
	copyChunk int
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithCopyChunk sets how many rows are sent per COPY call.
func WithCopyChunk(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if n > 0 {
			s.copyChunk = n
		}
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing pool or connection.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:      conn,
		copyChunk: 1000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *GraphDBStorage) count(ctx context.Context, sql string, projectID string) (int64, error) {
	var n int64
	if err := s.conn.QueryRow(ctx, sql, projectID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// encodeProperties sanitizes every key and value for a text column.
func encodeProperties(p common.Properties) ([]byte, error) {
	clean := make(map[string]string, len(p))
	for k, v := range p {
		k = util.SanitizePostgresText(k)
		if strings.TrimSpace(k) == "" {
			continue
		}
		clean[k] = util.SanitizePostgresText(v)
	}
	return json.Marshal(clean)
}

func decodeProperties(raw []byte) common.Properties {
	if len(raw) == 0 {
		return common.Properties{}
	}
	var p common.Properties
	if err := json.Unmarshal(raw, &p); err != nil {
		return common.Properties{common.PropRaw: string(raw)}
	}
	return p
}
