// Package query answers questions about a project graph. Node contexts are
// embedded on demand, the nodes closest to the question are looked up by
// vector similarity and the model answers from those nodes and their edges.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finkg/backend/pkg/ai"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/store"
)

// NoDataAnswer is returned when the project has no searchable nodes.
const NoDataAnswer = "The knowledge graph of this project does not contain enough information to answer the question."

const (
	defaultTopK        = 5
	defaultParallel    = 4
	embeddingChunkSize = 32
)

// GraphReader is the part of the relational store the answerer reads edges
// and endpoint names from.
type GraphReader interface {
	GetNodes(ctx context.Context, projectID string) ([]common.Node, error)
	GetEdges(ctx context.Context, projectID string) ([]common.Edge, error)
}

type Answerer struct {
	aiClient   ai.GraphAIClient
	embeddings store.EmbeddingStorage
	graph      GraphReader
	topK       int
	parallel   int
	tracer     Tracer
	options    ai.GenerateOptions
}

type AnswererOption func(*Answerer)

func WithTopK(k int) AnswererOption {
	return func(a *Answerer) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithParallel limits concurrent embedding requests.
func WithParallel(n int) AnswererOption {
	return func(a *Answerer) {
		if n > 0 {
			a.parallel = n
		}
	}
}

func WithTracer(t Tracer) AnswererOption {
	return func(a *Answerer) {
		a.tracer = t
	}
}

// WithChatModel overrides the model used for answers.
func WithChatModel(model string) AnswererOption {
	return func(a *Answerer) {
		a.options.Model = model
	}
}

func NewAnswerer(client ai.GraphAIClient, embeddings store.EmbeddingStorage, graph GraphReader, opts ...AnswererOption) *Answerer {
	a := &Answerer{
		aiClient:   client,
		embeddings: embeddings,
		graph:      graph,
		topK:       defaultTopK,
		parallel:   defaultParallel,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a)
	}
	return a
}

// EmbedMissing embeds the context of every project node that has one but no
// embedding yet. A failed chunk is logged and skipped; the count of stored
// embeddings is returned.
func (a *Answerer) EmbedMissing(ctx context.Context, projectID string) (int, error) {
	nodes, err := a.embeddings.GetNodesWithoutEmbedding(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list nodes without embedding: %w", err)
	}
	if len(nodes) == 0 {
		return 0, nil
	}

	stored := 0
	err = store.ChunkRange(len(nodes), embeddingChunkSize, func(start, end int) error {
		chunk := nodes[start:end]
		inputs := make([]string, len(chunk))
		for i, n := range chunk {
			inputs[i] = n.Properties[common.PropContext]
		}

		vectors, err := store.GenerateEmbeddings(ctx, a.aiClient, inputs, a.parallel)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("[Query] Embedding chunk failed", "project_id", projectID, "nodes", len(chunk), "err", err)
			return nil
		}

		ids := make([]string, 0, len(chunk))
		for i, n := range chunk {
			if err := a.embeddings.SaveNodeEmbedding(ctx, projectID, n.ID, ai.FitDimensions(vectors[i])); err != nil {
				return fmt.Errorf("save embedding for node %s: %w", n.ID, err)
			}
			ids = append(ids, n.ID)
			stored++
		}
		record(a.tracer, TraceEvent{Kind: TraceEventEmbeddedNodeIDs, NodeIDs: ids})
		return nil
	})

	logger.Debug("[Query] Embedded nodes", "project_id", projectID, "count", stored)
	return stored, err
}

// Ask answers question from the project graph.
func (a *Answerer) Ask(ctx context.Context, projectID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is empty")
	}

	if _, err := a.EmbedMissing(ctx, projectID); err != nil {
		return "", err
	}

	embedding, err := a.aiClient.GenerateEmbedding(ctx, []byte(question))
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	nodes, err := a.embeddings.SearchNodes(ctx, projectID, ai.FitDimensions(embedding), a.topK)
	if err != nil {
		return "", fmt.Errorf("search nodes: %w", err)
	}
	if len(nodes) == 0 {
		return NoDataAnswer, nil
	}
	record(a.tracer, TraceEvent{Kind: TraceEventQueriedNodeIDs, NodeIDs: nodeIDs(nodes)})

	background, err := a.background(ctx, projectID, nodes)
	if err != nil {
		return "", err
	}

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(fmt.Sprintf(ai.QueryAnswerPrompt, background, question)),
		ai.WithModel(a.options.Model),
	}
	answer, err := a.aiClient.GenerateChat(ctx, []ai.ChatMessage{{Role: "user", Message: question}}, opts...)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// background renders the matched nodes and every edge touching one of them.
func (a *Answerer) background(ctx context.Context, projectID string, matched []common.Node) (string, error) {
	all, err := a.graph.GetNodes(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load nodes: %w", err)
	}
	edges, err := a.graph.GetEdges(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load edges: %w", err)
	}

	byID := common.NodesByID(all)
	inMatch := make(map[string]struct{}, len(matched))
	for _, n := range matched {
		inMatch[n.ID] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("Nodes:\n")
	for _, n := range matched {
		fmt.Fprintf(&b, "- [%s] %s (%s)", n.Type, n.Value, n.Key)
		if c := n.Properties[common.PropContext]; c != "" {
			fmt.Fprintf(&b, ": %s", c)
		}
		b.WriteByte('\n')
	}

	var used []string
	for _, e := range common.WithNodes(edges, all) {
		_, fromMatched := inMatch[e.From]
		_, toMatched := inMatch[e.To]
		if !fromMatched && !toMatched {
			continue
		}
		if len(used) == 0 {
			b.WriteString("\nRelations:\n")
		}
		fmt.Fprintf(&b, "- %s -[%s: %s]-> %s", byID[e.From].Value, e.Type, e.Value, byID[e.To].Value)
		if c := e.Properties[common.PropContext]; c != "" {
			fmt.Fprintf(&b, " (%s)", c)
		}
		b.WriteByte('\n')
		used = append(used, e.ID)
	}
	record(a.tracer, TraceEvent{Kind: TraceEventUsedEdgeIDs, EdgeIDs: used})

	return strings.TrimSpace(b.String()), nil
}

func nodeIDs(nodes []common.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}
