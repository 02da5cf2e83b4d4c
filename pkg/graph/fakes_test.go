package graph

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/finkg/backend/pkg/ai"
	"github.com/finkg/backend/pkg/common"
)

type aiReply struct {
	text string
	err  error
}

// fakeAIClient answers completions from a script, one reply per call. The
// last reply repeats once the script is exhausted.
type fakeAIClient struct {
	mu      sync.Mutex
	replies []aiReply
	calls   int
	prompts []string
	options []ai.GenerateOptions
}

func (f *fakeAIClient) GenerateCompletion(_ context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.options = append(f.options, ai.ApplyOptions(ai.GenerateOptions{}, opts...))
	idx := min(f.calls, len(f.replies)-1)
	f.calls++
	if idx < 0 {
		return "", errors.New("no scripted reply")
	}
	return f.replies[idx].text, f.replies[idx].err
}

func (f *fakeAIClient) GenerateChat(context.Context, []ai.ChatMessage, ...ai.GenerateOption) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeAIClient) GenerateEmbedding(context.Context, []byte) ([]float32, error) {
	return make([]float32, ai.EmbeddingDimensions), nil
}

func (f *fakeAIClient) ResetMetrics()               {}
func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// fakeGraphStore keeps project graphs in memory with the same replace
// semantics as the relational store.
type fakeGraphStore struct {
	mu    sync.Mutex
	nodes map[string][]common.Node
	edges map[string][]common.Edge

	failReplaceNodes error
	failReplaceEdges error
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{
		nodes: map[string][]common.Node{},
		edges: map[string][]common.Edge{},
	}
}

func (s *fakeGraphStore) ReplaceNodes(_ context.Context, projectID string, nodes []common.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReplaceNodes != nil {
		return s.failReplaceNodes
	}
	s.nodes[projectID] = append([]common.Node(nil), nodes...)
	return nil
}

func (s *fakeGraphStore) ReplaceEdges(_ context.Context, projectID string, edges []common.Edge, mode common.RelationMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReplaceEdges != nil {
		return s.failReplaceEdges
	}
	var kept []common.Edge
	if mode.Scoped() {
		for _, e := range s.edges[projectID] {
			if e.Properties[common.PropExtractionMethod] != string(mode) {
				kept = append(kept, e)
			}
		}
	}
	s.edges[projectID] = append(kept, edges...)
	return nil
}

func (s *fakeGraphStore) GetNodes(_ context.Context, projectID string) ([]common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]common.Node(nil), s.nodes[projectID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type > out[j].Type
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (s *fakeGraphStore) GetEdges(_ context.Context, projectID string) ([]common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Edge(nil), s.edges[projectID]...), nil
}

func (s *fakeGraphStore) DeleteNodes(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.nodes[projectID])
	delete(s.nodes, projectID)
	return int64(n), nil
}

func (s *fakeGraphStore) DeleteEdges(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.edges[projectID])
	delete(s.edges, projectID)
	return int64(n), nil
}

func (s *fakeGraphStore) CountNodes(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.nodes[projectID])), nil
}

func (s *fakeGraphStore) CountEdges(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.edges[projectID])), nil
}

// fakeMirror records the mirrored subgraph per project.
type fakeMirror struct {
	nodes    map[string]map[string]common.Node
	edges    map[string][]common.Edge
	calls    []string
	failEdge error
	failDel  error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		nodes: map[string]map[string]common.Node{},
		edges: map[string][]common.Edge{},
	}
}

func (m *fakeMirror) DeleteProjectSubgraph(_ context.Context, projectID string) error {
	m.calls = append(m.calls, "delete")
	if m.failDel != nil {
		return m.failDel
	}
	delete(m.nodes, projectID)
	delete(m.edges, projectID)
	return nil
}

func (m *fakeMirror) UpsertNode(_ context.Context, projectID string, node common.Node) error {
	m.calls = append(m.calls, "node")
	if m.nodes[projectID] == nil {
		m.nodes[projectID] = map[string]common.Node{}
	}
	m.nodes[projectID][node.ID] = node
	return nil
}

func (m *fakeMirror) CreateEdge(_ context.Context, projectID string, edge common.Edge, _, _ common.Node) error {
	m.calls = append(m.calls, "edge")
	if m.failEdge != nil {
		return m.failEdge
	}
	m.edges[projectID] = append(m.edges[projectID], edge)
	return nil
}

func node(id string, t common.NodeType, value string) common.Node {
	return common.Node{
		ID:         id,
		Type:       t,
		Value:      value,
		Key:        "role",
		Properties: common.Properties{common.PropProjectID: "p1", common.PropSource: common.SourceLLM},
	}
}

func edge(from, to, method string) common.Edge {
	return common.Edge{
		ID:         EdgeID(from, to, method, "v"),
		Type:       method,
		From:       from,
		To:         to,
		Value:      "v",
		EventRel:   "v",
		Properties: common.Properties{common.PropExtractionMethod: method},
	}
}

func edgeIDs(edges []common.Edge) string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.From+">"+e.To)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
