package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/ai"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
)

type extractEdge struct {
	From       common.ID         `json:"from" jsonschema_description:"ID of the source node, taken from the node list"`
	To         common.ID         `json:"to" jsonschema_description:"ID of the target node, taken from the node list"`
	Type       common.Text       `json:"type" jsonschema_description:"Relation type, e.g. Causal Relation or Temporal Relation"`
	Value      common.Text       `json:"value" jsonschema_description:"Short phrase describing the relation"`
	EventRel   common.Text       `json:"eventRel,omitempty" jsonschema_description:"Optional secondary relation label"`
	Context    common.Text       `json:"context" jsonschema_description:"Passage of the announcement that shows the relation"`
	Properties common.Properties `json:"properties,omitempty" jsonschema_description:"Extra attributes of the relation"`
}

type extractEdgesResponse struct {
	Edges *[]extractEdge `json:"edges" jsonschema_description:"Relations between the listed nodes"`
}

// Default relation types when the model leaves the type empty.
const (
	RelationTypeCausal   = "Causal Relation"
	RelationTypeTemporal = "Temporal Relation"
	RelationTypeGeneral  = "Relation"
)

func defaultRelationType(mode common.RelationMode) string {
	switch mode {
	case common.RelationCausal:
		return RelationTypeCausal
	case common.RelationTemporal:
		return RelationTypeTemporal
	}
	return RelationTypeGeneral
}

// EdgeExtraction is the outcome of one edge extraction call.
type EdgeExtraction struct {
	Edges []common.Edge
	// Dropped counts returned edges whose endpoints are not in the node set.
	Dropped  int
	Attempts int
	Err      error
}

// ExtractEdges asks the model for relations between nodes, using up to three
// announcements as supporting text. Only the first 50 nodes are listed in the
// prompt, but an edge is valid when both endpoints are anywhere in nodes.
func (c *GraphClient) ExtractEdges(
	ctx context.Context,
	nodes []common.Node,
	mode common.RelationMode,
	projectID string,
	announcements []common.Announcement,
) EdgeExtraction {
	if len(nodes) == 0 {
		return EdgeExtraction{}
	}
	if mode == "" {
		mode = common.RelationGeneral
	}
	relationPrompt, ok := ai.RelationPrompts[string(mode)]
	if !ok {
		return EdgeExtraction{Err: fmt.Errorf("%w: %q", common.ErrInvalidRelationMode, mode)}
	}

	systemPrompt := relationPrompt + fmt.Sprintf(ai.RelationOutputPrompt, ai.SchemaString(extractEdgesResponse{}))
	userPrompt := fmt.Sprintf(ai.RelationUserPrompt, nodeSummaryLines(nodes), announcementExcerpt(announcements))

	res, attempts, err := c.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		logger.Warn("[Extract] Relation extraction call failed", "project_id", projectID, "mode", mode, "attempts", attempts, "err", err)
		return EdgeExtraction{Attempts: attempts, Err: err}
	}

	var parsed extractEdgesResponse
	if err := ai.DecodeModelJSON(res, &parsed); err != nil {
		logger.Warn("[Extract] Failed to parse relation response", "project_id", projectID, "mode", mode, "err", err)
		return EdgeExtraction{Attempts: attempts, Err: err}
	}
	if parsed.Edges == nil {
		err := fmt.Errorf("response has no edges field")
		logger.Warn("[Extract] Failed to parse relation response", "project_id", projectID, "mode", mode, "err", err)
		return EdgeExtraction{Attempts: attempts, Err: err}
	}

	byID := common.NodesByID(nodes)
	edges := make([]common.Edge, 0, len(*parsed.Edges))
	dropped := 0
	for _, re := range *parsed.Edges {
		from, to := string(re.From), string(re.To)
		_, okFrom := byID[from]
		_, okTo := byID[to]
		if !okFrom || !okTo {
			dropped++
			logger.Warn("[Extract] Skipping relation with unknown node", "project_id", projectID, "from", from, "to", to)
			continue
		}

		relType := re.Type.String()
		if relType == "" {
			relType = defaultRelationType(mode)
		}
		value := re.Value.String()
		eventRel := re.EventRel.String()
		if eventRel == "" {
			eventRel = value
		}

		props := re.Properties.Clone()
		props[common.PropSource] = common.SourceLLM
		props[common.PropExtractionMethod] = string(mode)
		if ctxText := re.Context.String(); ctxText != "" {
			props[common.PropContext] = ctxText
		} else if _, ok := props[common.PropContext]; !ok {
			props[common.PropContext] = ""
		}

		edges = append(edges, common.Edge{
			ID:         EdgeID(from, to, relType, value),
			Type:       relType,
			From:       from,
			To:         to,
			Value:      value,
			EventRel:   eventRel,
			Properties: props,
		})
	}

	return EdgeExtraction{Edges: DedupeEdges(edges), Dropped: dropped, Attempts: attempts}
}

func nodeSummaryLines(nodes []common.Node) string {
	limit := min(len(nodes), maxPromptNodes)
	lines := make([]string, 0, limit)
	for _, n := range nodes[:limit] {
		lines = append(lines, fmt.Sprintf("ID: %s | Type: %s | Value: %s | Key: %s", n.ID, n.Type, n.Value, n.Key))
	}
	return strings.Join(lines, "\n")
}

func announcementExcerpt(announcements []common.Announcement) string {
	limit := min(len(announcements), maxExcerptDocuments)
	parts := make([]string, 0, limit)
	for _, a := range announcements[:limit] {
		parts = append(parts, util.TruncateRunes(NormalizeText(a.Content), maxExcerptDocRunes))
	}
	return util.TruncateRunes(strings.Join(parts, "\n\n"), maxExcerptTotalRunes)
}
