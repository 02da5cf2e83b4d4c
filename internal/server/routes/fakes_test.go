package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/store/neo4j"

	"github.com/labstack/echo/v4"
)

type memStore struct {
	mu            sync.Mutex
	announcements map[string]common.Announcement
	projectAnns   map[string][]string
	nodes         map[string][]common.Node
	edges         map[string][]common.Edge
	failWrites    bool
}

func newMemStore() *memStore {
	return &memStore{
		announcements: map[string]common.Announcement{},
		projectAnns:   map[string][]string{},
		nodes:         map[string][]common.Node{},
		edges:         map[string][]common.Edge{},
	}
}

func (s *memStore) ReplaceNodes(_ context.Context, projectID string, nodes []common.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("write failed")
	}
	s.nodes[projectID] = append([]common.Node(nil), nodes...)
	return nil
}

func (s *memStore) ReplaceEdges(_ context.Context, projectID string, edges []common.Edge, mode common.RelationMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("write failed")
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

func (s *memStore) GetNodes(_ context.Context, projectID string) ([]common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Node(nil), s.nodes[projectID]...), nil
}

func (s *memStore) GetEdges(_ context.Context, projectID string) ([]common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Edge(nil), s.edges[projectID]...), nil
}

func (s *memStore) DeleteNodes(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.nodes[projectID])
	delete(s.nodes, projectID)
	return int64(n), nil
}

func (s *memStore) DeleteEdges(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.edges[projectID])
	delete(s.edges, projectID)
	return int64(n), nil
}

func (s *memStore) CountNodes(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.nodes[projectID])), nil
}

func (s *memStore) CountEdges(_ context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.edges[projectID])), nil
}

func (s *memStore) GetAnnouncementsByIDs(_ context.Context, ids []string) ([]common.Announcement, error) {
	var out []common.Announcement
	for _, id := range ids {
		if a, ok := s.announcements[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) GetProjectAnnouncements(ctx context.Context, projectID string, limit int) ([]common.Announcement, error) {
	out, _ := s.GetAnnouncementsByIDs(ctx, s.projectAnns[projectID])
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeMirror struct {
	fail bool
}

func (m *fakeMirror) DeleteProjectSubgraph(context.Context, string) error {
	if m.fail {
		return errors.New("neo4j unavailable")
	}
	return nil
}

func (m *fakeMirror) UpsertNode(context.Context, string, common.Node) error { return nil }

func (m *fakeMirror) CreateEdge(context.Context, string, common.Edge, common.Node, common.Node) error {
	return nil
}

type fakeExtractor struct {
	nodes     map[string][]common.Node
	edges     []common.Edge
	edgeCalls int
	gotAnns   []common.Announcement
}

func (f *fakeExtractor) ExtractNodes(_ context.Context, text string, _ string) graph.NodeExtraction {
	return graph.NodeExtraction{Nodes: f.nodes[text], Attempts: 1}
}

func (f *fakeExtractor) ExtractEdges(
	_ context.Context,
	_ []common.Node,
	_ common.RelationMode,
	_ string,
	announcements []common.Announcement,
) graph.EdgeExtraction {
	f.edgeCalls++
	f.gotAnns = announcements
	return graph.EdgeExtraction{Edges: f.edges, Attempts: 1}
}

type fakeAnswerer struct {
	projectID string
	question  string
}

func (f *fakeAnswerer) Ask(_ context.Context, projectID, question string) (string, error) {
	f.projectID = projectID
	f.question = question
	return "answer for " + question, nil
}

type fakeGraphView struct{}

func (fakeGraphView) GetProjectGraph(context.Context, string) (neo4j.ProjectGraph, error) {
	return neo4j.ProjectGraph{Nodes: []neo4j.GraphNode{{ID: "n1"}}, Edges: []neo4j.GraphEdge{}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	queues []string
}

func (p *recordingPublisher) Publish(_ context.Context, queueName string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = append(p.queues, queueName)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queues...)
}

type recordingArchive struct {
	mu    sync.Mutex
	kinds []string
}

func (a *recordingArchive) ArchiveExtraction(_ context.Context, projectID, kind string, _ any) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kinds = append(a.kinds, kind)
	return "projects/" + projectID + "/extractions/x.json", nil
}

type testEnv struct {
	store     *memStore
	mirror    *fakeMirror
	extractor *fakeExtractor
	answerer  *fakeAnswerer
	queue     *recordingPublisher
	archive   *recordingArchive
	app       *middleware.App
	echo      *echo.Echo
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     newMemStore(),
		mirror:    &fakeMirror{},
		extractor: &fakeExtractor{nodes: map[string][]common.Node{}},
		answerer:  &fakeAnswerer{},
		queue:     &recordingPublisher{},
		archive:   &recordingArchive{},
	}
	env.app = &middleware.App{
		Store:     env.store,
		Sync:      graph.NewSynchronizer(env.store, graph.WithMirror(env.mirror)),
		Extractor: env.extractor,
		Answerer:  env.answerer,
		Queue:     env.queue,
		Archive:   env.archive,
	}

	e := echo.New()
	e.Validator = util.NewValidator()
	e.Use(middleware.AppContextMiddleware(env.app))
	e.POST("/extract_nodes_with_llm", ExtractNodesHandler)
	e.POST("/extract_relations", ExtractRelationsHandler)
	e.POST("/check_extraction_status", CheckExtractionStatusHandler)
	e.GET("/get_nodes_by_project", GetNodesHandler)
	e.GET("/get_edges_by_project", GetEdgesHandler)
	e.GET("/get_neo4j_graph", GetMirrorGraphHandler)
	e.POST("/delete_nodes_by_project", DeleteNodesHandler)
	e.POST("/delete_edges_by_project", DeleteEdgesHandler)
	e.POST("/askAI", AskHandler)
	env.echo = e
	return env
}

func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func node(id string, t common.NodeType, value string) common.Node {
	return common.Node{ID: id, Type: t, Value: value, Properties: common.Properties{common.PropContext: value}}
}

func edge(id, from, to string, mode common.RelationMode) common.Edge {
	return common.Edge{
		ID:         id,
		Type:       "Relation",
		From:       from,
		To:         to,
		Value:      id,
		Properties: common.Properties{common.PropExtractionMethod: string(mode)},
	}
}
