package query

import (
	"sort"
	"sync"

	"github.com/finkg/backend/pkg/logger"
)

type TraceEventKind string

const (
	TraceEventEmbeddedNodeIDs TraceEventKind = "embedded_node_ids"
	TraceEventQueriedNodeIDs  TraceEventKind = "queried_node_ids"
	TraceEventUsedEdgeIDs     TraceEventKind = "used_edge_ids"
)

// TraceEvent is an extensible event envelope for query tracing.
type TraceEvent struct {
	Kind    TraceEventKind
	NodeIDs []string
	EdgeIDs []string
}

// Tracer is a sink for query tracing events.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

// LogTracer writes every event to the debug log.
type LogTracer struct{}

func (LogTracer) Record(event TraceEvent) {
	logger.Debug("[Query] Trace", "kind", string(event.Kind), "node_ids", event.NodeIDs, "edge_ids", event.EdgeIDs)
}

func record(t Tracer, event TraceEvent) {
	if t == nil {
		return
	}
	t.Record(event)
}

// QueryTrace collects which nodes and edges a question was answered from.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	embeddedNodeIDs map[string]struct{}
	queriedNodeIDs  map[string]struct{}
	usedEdgeIDs     map[string]struct{}
}

type QueryTraceSnapshot struct {
	EmbeddedNodeIDs []string
	QueriedNodeIDs  []string
	UsedEdgeIDs     []string
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		embeddedNodeIDs: make(map[string]struct{}),
		queriedNodeIDs:  make(map[string]struct{}),
		usedEdgeIDs:     make(map[string]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventEmbeddedNodeIDs:
		addIDs(t.embeddedNodeIDs, event.NodeIDs)
	case TraceEventQueriedNodeIDs:
		addIDs(t.queriedNodeIDs, event.NodeIDs)
	case TraceEventUsedEdgeIDs:
		addIDs(t.usedEdgeIDs, event.EdgeIDs)
	}
}

func addIDs(set map[string]struct{}, ids []string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
}

func sortedIDs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		EmbeddedNodeIDs: sortedIDs(t.embeddedNodeIDs),
		QueriedNodeIDs:  sortedIDs(t.queriedNodeIDs),
		UsedEdgeIDs:     sortedIDs(t.usedEdgeIDs),
	}
}
