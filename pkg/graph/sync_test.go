package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/leaselock"
)

type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func seededStore() *fakeGraphStore {
	s := newFakeGraphStore()
	s.nodes["p1"] = []common.Node{
		node("a", common.NodeTypeEvent, "a"),
		node("b", common.NodeTypeEvent, "b"),
		node("c", common.NodeTypeEntity, "c"),
	}
	s.edges["p1"] = []common.Edge{
		edge("a", "b", "causal"),
		edge("b", "c", "temporal"),
	}
	return s
}

func TestReplaceEdgesDeletionScope(t *testing.T) {
	tests := []struct {
		name string
		mode common.RelationMode
		want string
	}{
		{name: "causal keeps temporal", mode: common.RelationCausal, want: "a>c,b>c"},
		{name: "temporal keeps causal", mode: common.RelationTemporal, want: "a>b,a>c"},
		{name: "general replaces all", mode: common.RelationGeneral, want: "a>c"},
		{name: "empty mode is general", mode: "", want: "a>c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore()
			mode := tt.mode
			if mode == "" {
				mode = common.RelationGeneral
			}
			syncer := NewSynchronizer(s)

			_, err := syncer.ReplaceEdges(context.Background(), "p1", []common.Edge{edge("a", "c", string(mode))}, tt.mode)
			if err != nil {
				t.Fatalf("ReplaceEdges: %v", err)
			}
			if got := edgeIDs(s.edges["p1"]); got != tt.want {
				t.Fatalf("stored edges = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReplaceEdgesDropsDangling(t *testing.T) {
	s := seededStore()
	mirror := newFakeMirror()
	syncer := NewSynchronizer(s, WithMirror(mirror))

	res, err := syncer.ReplaceEdges(context.Background(), "p1", []common.Edge{
		edge("a", "c", "general"),
		edge("a", "zzz", "general"),
	}, common.RelationGeneral)
	if err != nil {
		t.Fatalf("ReplaceEdges: %v", err)
	}
	if res.Dropped != 1 || len(res.Edges) != 1 {
		t.Fatalf("expected 1 kept and 1 dropped, got %+v", res)
	}
	for _, e := range s.edges["p1"] {
		if e.To == "zzz" {
			t.Fatalf("dangling edge persisted")
		}
	}
	if len(mirror.edges["p1"]) != 1 {
		t.Fatalf("expected 1 mirrored edge, got %d", len(mirror.edges["p1"]))
	}
}

func TestReplaceEdgesAllDanglingKeepsStored(t *testing.T) {
	s := seededStore()
	syncer := NewSynchronizer(s)

	res, err := syncer.ReplaceEdges(context.Background(), "p1", []common.Edge{edge("x", "y", "general")}, common.RelationGeneral)
	if err != nil {
		t.Fatalf("ReplaceEdges: %v", err)
	}
	if len(res.Edges) != 0 || res.Dropped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := edgeIDs(s.edges["p1"]); got != "a>b,b>c" {
		t.Fatalf("stored edges changed: %s", got)
	}
}

func TestReplaceEdgesMirrorsFullProject(t *testing.T) {
	s := seededStore()
	mirror := newFakeMirror()
	syncer := NewSynchronizer(s, WithMirror(mirror))

	res, err := syncer.ReplaceEdges(context.Background(), "p1", []common.Edge{edge("c", "a", "causal")}, common.RelationCausal)
	if err != nil {
		t.Fatalf("ReplaceEdges: %v", err)
	}
	if res.MirrorNodes != 3 || res.MirrorEdges != 2 {
		t.Fatalf("expected 3 nodes and 2 edges mirrored, got %+v", res)
	}
	if got := edgeIDs(mirror.edges["p1"]); got != "b>c,c>a" {
		t.Fatalf("mirror edges = %s", got)
	}
	if mirror.calls[0] != "delete" {
		t.Fatalf("resync must start by deleting the subgraph, calls: %v", mirror.calls)
	}
}

func TestReplaceEdgesMirrorFailure(t *testing.T) {
	s := seededStore()
	mirror := newFakeMirror()
	mirror.failEdge = errors.New("neo4j unavailable")
	syncer := NewSynchronizer(s, WithMirror(mirror))

	res, err := syncer.ReplaceEdges(context.Background(), "p1", []common.Edge{edge("a", "c", "general")}, common.RelationGeneral)

	var me *MirrorError
	if !errors.As(err, &me) {
		t.Fatalf("expected MirrorError, got %v", err)
	}
	if me.ProjectID != "p1" || !errors.Is(err, mirror.failEdge) {
		t.Fatalf("unexpected mirror error: %v", me)
	}
	if !IsMirrorError(err) {
		t.Fatalf("IsMirrorError must detect %v", err)
	}
	if len(res.Edges) != 1 {
		t.Fatalf("result must be returned with the mirror error, got %+v", res)
	}
	if got := edgeIDs(s.edges["p1"]); got != "a>c" {
		t.Fatalf("relational write must stay committed, got %s", got)
	}
}

func TestReplaceEdgesStoreFailure(t *testing.T) {
	s := seededStore()
	s.failReplaceEdges = errors.New("tx aborted")
	mirror := newFakeMirror()
	syncer := NewSynchronizer(s, WithMirror(mirror))

	_, err := syncer.ReplaceEdges(context.Background(), "p1", []common.Edge{edge("a", "c", "general")}, common.RelationGeneral)
	if err == nil || IsMirrorError(err) {
		t.Fatalf("expected plain store error, got %v", err)
	}
	if len(mirror.calls) != 0 {
		t.Fatalf("mirror must not be touched after a failed write")
	}
}

func TestReplaceNodes(t *testing.T) {
	s := seededStore()
	locker := &recordingLocker{}
	syncer := NewSynchronizer(s, WithLocker(locker, 0))

	saved, err := syncer.ReplaceNodes(context.Background(), "p1", []common.Node{
		node("x", common.NodeTypeEntity, "x"),
		node("x", common.NodeTypeEntity, "x"),
	})
	if err != nil {
		t.Fatalf("ReplaceNodes: %v", err)
	}
	if len(saved) != 1 || len(s.nodes["p1"]) != 1 || s.nodes["p1"][0].ID != "x" {
		t.Fatalf("expected full replace with deduped nodes, got %+v", s.nodes["p1"])
	}
	if len(locker.keys) != 1 || locker.keys[0] != "graph:project:p1" {
		t.Fatalf("expected project lock, got %v", locker.keys)
	}
}

func TestReplaceNodesFailureKeepsPrevious(t *testing.T) {
	s := seededStore()
	s.failReplaceNodes = errors.New("copy failed")
	syncer := NewSynchronizer(s)

	if _, err := syncer.ReplaceNodes(context.Background(), "p1", []common.Node{node("x", 0, "x")}); err == nil {
		t.Fatalf("expected error")
	}
	if len(s.nodes["p1"]) != 3 {
		t.Fatalf("previous node set must remain, got %d nodes", len(s.nodes["p1"]))
	}
}

func TestDeleteEdges(t *testing.T) {
	s := seededStore()
	mirror := newFakeMirror()
	mirror.failDel = errors.New("timeout")
	syncer := NewSynchronizer(s, WithMirror(mirror))

	deleted, err := syncer.DeleteEdges(context.Background(), "p1")
	if deleted != 2 {
		t.Fatalf("expected 2 deleted edges, got %d", deleted)
	}
	if !IsMirrorError(err) {
		t.Fatalf("expected mirror error, got %v", err)
	}
	if len(s.edges["p1"]) != 0 {
		t.Fatalf("relational edges must be gone")
	}
}

func TestDeleteNodesAndHasData(t *testing.T) {
	s := seededStore()
	syncer := NewSynchronizer(s)
	ctx := context.Background()

	status, err := syncer.HasData(ctx, "p1")
	if err != nil || !status.HasNodes || !status.HasEdges {
		t.Fatalf("expected data, got %+v, %v", status, err)
	}

	deleted, err := syncer.DeleteNodes(ctx, "p1")
	if err != nil || deleted != 3 {
		t.Fatalf("DeleteNodes = %d, %v", deleted, err)
	}

	status, err = syncer.HasData(ctx, "p1")
	if err != nil || status.HasNodes || !status.HasEdges {
		t.Fatalf("expected edges only, got %+v, %v", status, err)
	}

	status, _ = syncer.HasData(ctx, "other")
	if status.HasNodes || status.HasEdges {
		t.Fatalf("unknown project must be empty")
	}
}

func TestResyncMirrorSkipsUnresolvable(t *testing.T) {
	s := seededStore()
	s.edges["p1"] = append(s.edges["p1"], edge("a", "gone", "general"))
	mirror := newFakeMirror()
	syncer := NewSynchronizer(s, WithMirror(mirror))

	nodes, edges, err := syncer.ResyncMirror(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ResyncMirror: %v", err)
	}
	if nodes != 3 || edges != 2 {
		t.Fatalf("expected 3 nodes, 2 edges, got %d, %d", nodes, edges)
	}
}
