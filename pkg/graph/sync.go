package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/leaselock"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/store"
)

// Locker serializes writes to one project graph.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Synchronizer writes extraction results to the relational store and keeps
// the graph mirror in step with it. The relational store is authoritative;
// the mirror is rebuilt from it after every edge write.
type Synchronizer struct {
	store    store.GraphStorage
	mirror   store.GraphMirror
	locker   Locker
	lockOpts leaselock.Options
}

type SynchronizerOption func(*Synchronizer)

// WithMirror enables mirroring into a property graph.
func WithMirror(m store.GraphMirror) SynchronizerOption {
	return func(s *Synchronizer) {
		s.mirror = m
	}
}

// WithLocker runs every write under a per-project lease.
func WithLocker(l Locker, ttl time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		s.locker = l
		s.lockOpts = leaselock.Options{
			TTL:          ttl,
			Wait:         true,
			WaitInterval: 500 * time.Millisecond,
			WaitJitter:   250 * time.Millisecond,
			TokenPrefix:  "sync-",
		}
	}
}

func NewSynchronizer(s store.GraphStorage, opts ...SynchronizerOption) *Synchronizer {
	out := &Synchronizer{store: s}
	for _, o := range opts {
		o(out)
	}
	return out
}

func (s *Synchronizer) withProjectLock(ctx context.Context, projectID string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLease(ctx, leaselock.ProjectKey(projectID), s.lockOpts, fn)
}

// ReplaceNodes swaps the project's node set for nodes in one transaction.
// It returns the nodes that were written.
func (s *Synchronizer) ReplaceNodes(ctx context.Context, projectID string, nodes []common.Node) ([]common.Node, error) {
	nodes = DedupeNodes(nodes)
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		return s.store.ReplaceNodes(ctx, projectID, nodes)
	})
	if err != nil {
		return nil, fmt.Errorf("replace nodes: %w", err)
	}
	logger.Info("[Sync] Replaced nodes", "project_id", projectID, "count", len(nodes))
	return nodes, nil
}

// EdgeSyncResult describes what an edge write persisted.
type EdgeSyncResult struct {
	Edges       []common.Edge
	Dropped     int
	MirrorNodes int
	MirrorEdges int
}

// ReplaceEdges checks edges against the project's current nodes, replaces
// the relational rows selected by mode and then rebuilds the graph mirror.
// When no edge survives the check, nothing is written.
//
// A mirror failure does not undo the relational write: the result is
// returned together with a *MirrorError.
func (s *Synchronizer) ReplaceEdges(
	ctx context.Context,
	projectID string,
	edges []common.Edge,
	mode common.RelationMode,
) (EdgeSyncResult, error) {
	if mode == "" {
		mode = common.RelationGeneral
	}

	var result EdgeSyncResult
	var mirrorErr error
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		nodes, err := s.store.GetNodes(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load nodes: %w", err)
		}
		valid, dropped := FilterDanglingEdges(DedupeEdges(edges), nodes)
		if dropped > 0 {
			logger.Warn("[Sync] Dropped edges with missing nodes", "project_id", projectID, "dropped", dropped)
		}
		result.Dropped = dropped
		if len(valid) == 0 {
			logger.Info("[Sync] No valid edges, keeping stored edges", "project_id", projectID, "mode", mode)
			return nil
		}
		if err := s.store.ReplaceEdges(ctx, projectID, valid, mode); err != nil {
			return fmt.Errorf("replace edges: %w", err)
		}
		result.Edges = valid

		result.MirrorNodes, result.MirrorEdges, mirrorErr = s.resync(ctx, projectID)
		return nil
	})
	if err != nil {
		return EdgeSyncResult{}, err
	}
	if len(result.Edges) == 0 {
		return result, nil
	}
	logger.Info("[Sync] Replaced edges", "project_id", projectID, "mode", mode, "count", len(result.Edges))

	if mirrorErr != nil {
		logger.Error("[Sync] Graph mirror failed after relational write", "project_id", projectID, "err", mirrorErr)
		return result, &MirrorError{ProjectID: projectID, Err: mirrorErr}
	}
	return result, nil
}

// ResyncMirror rebuilds the project's mirror subgraph from the relational
// store. It returns the number of mirrored nodes and edges.
func (s *Synchronizer) ResyncMirror(ctx context.Context, projectID string) (int, int, error) {
	var nodes, edges int
	var mirrorErr error
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		nodes, edges, mirrorErr = s.resync(ctx, projectID)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if mirrorErr != nil {
		return nodes, edges, &MirrorError{ProjectID: projectID, Err: mirrorErr}
	}
	return nodes, edges, nil
}

func (s *Synchronizer) resync(ctx context.Context, projectID string) (int, int, error) {
	if s.mirror == nil {
		return 0, 0, nil
	}

	if err := s.mirror.DeleteProjectSubgraph(ctx, projectID); err != nil {
		return 0, 0, fmt.Errorf("delete subgraph: %w", err)
	}

	nodes, err := s.store.GetNodes(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("load nodes: %w", err)
	}
	for _, n := range nodes {
		if err := s.mirror.UpsertNode(ctx, projectID, n); err != nil {
			return 0, 0, fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
	}

	edges, err := s.store.GetEdges(ctx, projectID)
	if err != nil {
		return len(nodes), 0, fmt.Errorf("load edges: %w", err)
	}
	byID := common.NodesByID(nodes)
	created := 0
	for _, e := range edges {
		from, okFrom := byID[e.From]
		to, okTo := byID[e.To]
		if !okFrom || !okTo {
			logger.Warn("[Sync] Skipping mirror edge with missing node", "project_id", projectID, "edge_id", e.ID)
			continue
		}
		if err := s.mirror.CreateEdge(ctx, projectID, e, from, to); err != nil {
			return len(nodes), created, fmt.Errorf("create edge %s: %w", e.ID, err)
		}
		created++
	}

	return len(nodes), created, nil
}

// DeleteNodes removes the project's relational node rows.
func (s *Synchronizer) DeleteNodes(ctx context.Context, projectID string) (int64, error) {
	var deleted int64
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		deleted, err = s.store.DeleteNodes(ctx, projectID)
		return err
	})
	return deleted, err
}

// DeleteEdges removes the project's relational edge rows and its mirrored
// subgraph. A mirror failure is reported as *MirrorError next to the
// relational count.
func (s *Synchronizer) DeleteEdges(ctx context.Context, projectID string) (int64, error) {
	var deleted int64
	var mirrorErr error
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		deleted, err = s.store.DeleteEdges(ctx, projectID)
		if err != nil {
			return err
		}
		if s.mirror != nil {
			mirrorErr = s.mirror.DeleteProjectSubgraph(ctx, projectID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if mirrorErr != nil {
		return deleted, &MirrorError{ProjectID: projectID, Err: mirrorErr}
	}
	return deleted, nil
}

// Status reports whether a project has any nodes or edges.
type Status struct {
	HasNodes bool
	HasEdges bool
}

// HasData runs two independent existence checks against the relational
// store.
func (s *Synchronizer) HasData(ctx context.Context, projectID string) (Status, error) {
	nodes, err := s.store.CountNodes(ctx, projectID)
	if err != nil {
		return Status{}, fmt.Errorf("count nodes: %w", err)
	}
	edges, err := s.store.CountEdges(ctx, projectID)
	if err != nil {
		return Status{}, fmt.Errorf("count edges: %w", err)
	}
	return Status{HasNodes: nodes > 0, HasEdges: edges > 0}, nil
}

// IsMirrorError reports whether err only concerns the graph mirror.
func IsMirrorError(err error) bool {
	var me *MirrorError
	return errors.As(err, &me)
}
