package store

import (
	"context"

	"github.com/finkg/backend/pkg/common"
)

// GraphStorage is the authoritative relational store for project graphs.
// Replace operations run the delete and the insert in one transaction, so a
// failed insert leaves the previous rows in place.
type GraphStorage interface {
	// ReplaceNodes deletes every node of the project and inserts nodes.
	ReplaceNodes(ctx context.Context, projectID string, nodes []common.Node) error
	// ReplaceEdges deletes the edges selected by mode and inserts edges. The
	// general mode deletes every edge of the project, scoped modes only the
	// edges whose extraction_method equals the mode.
	ReplaceEdges(ctx context.Context, projectID string, edges []common.Edge, mode common.RelationMode) error

	// GetNodes returns the nodes of a project ordered by type descending,
	// then value ascending.
	GetNodes(ctx context.Context, projectID string) ([]common.Node, error)
	GetEdges(ctx context.Context, projectID string) ([]common.Edge, error)

	DeleteNodes(ctx context.Context, projectID string) (int64, error)
	DeleteEdges(ctx context.Context, projectID string) (int64, error)

	CountNodes(ctx context.Context, projectID string) (int64, error)
	CountEdges(ctx context.Context, projectID string) (int64, error)
}

// AnnouncementStorage reads announcements that are owned by the project
// management service.
type AnnouncementStorage interface {
	// GetAnnouncementsByIDs returns the announcements ordered by date descending.
	GetAnnouncementsByIDs(ctx context.Context, ids []string) ([]common.Announcement, error)
	// GetProjectAnnouncements returns up to limit announcements listed in the
	// project's data list, newest first. Unknown projects yield no rows.
	GetProjectAnnouncements(ctx context.Context, projectID string, limit int) ([]common.Announcement, error)
}

// EmbeddingStorage keeps node embeddings used for question answering.
type EmbeddingStorage interface {
	GetNodesWithoutEmbedding(ctx context.Context, projectID string) ([]common.Node, error)
	SaveNodeEmbedding(ctx context.Context, projectID string, nodeID string, embedding []float32) error
	SearchNodes(ctx context.Context, projectID string, embedding []float32, limit int) ([]common.Node, error)
}

// GraphMirror is the property graph replica of the relational data. Writes
// are independent statements without a surrounding transaction.
type GraphMirror interface {
	// DeleteProjectSubgraph removes every relationship and then every node
	// tagged with the project.
	DeleteProjectSubgraph(ctx context.Context, projectID string) error
	// UpsertNode merges a node by its ID.
	UpsertNode(ctx context.Context, projectID string, node common.Node) error
	// CreateEdge creates a typed relationship between two mirrored nodes.
	CreateEdge(ctx context.Context, projectID string, edge common.Edge, from, to common.Node) error
}
