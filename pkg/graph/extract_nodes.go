package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/ai"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
)

type extractNode struct {
	Type       int               `json:"type" jsonschema:"enum=0,enum=1" jsonschema_description:"1 for events, 0 for entities"`
	Value      string            `json:"value" jsonschema_description:"Trigger word of the event or value of the entity, copied from the text"`
	Key        string            `json:"key" jsonschema_description:"Event type for events, argument role for entities"`
	Properties map[string]string `json:"properties,omitempty" jsonschema_description:"Extra attributes, context holds the source sentence"`
}

type extractNodesResponse struct {
	Nodes []extractNode `json:"nodes" jsonschema_description:"Nodes found in the announcement"`
}

// decoded counterparts, lenient about the shapes models return
type rawNode struct {
	Type       json.RawMessage   `json:"type"`
	Value      common.Text       `json:"value"`
	Key        common.Text       `json:"key"`
	Properties common.Properties `json:"properties"`
}

type rawNodesResponse struct {
	Nodes *[]rawNode `json:"nodes"`
}

var nodeSystemPrompt = fmt.Sprintf(ai.NodeExtractionPrompt, ai.SchemaString(extractNodesResponse{}))

// NodeExtraction is the outcome of one node extraction call.
type NodeExtraction struct {
	Nodes []common.Node
	// Attempts is the number of model calls that were made.
	Attempts int
	// Err holds the reason for an empty result after a soft failure.
	Err error
}

// ExtractNodes extracts entity and event nodes from an announcement body.
// The text is normalized first and at most the first 15000 characters are
// sent to the model. Node IDs are generated here; whatever ID the model
// returns is ignored.
func (c *GraphClient) ExtractNodes(ctx context.Context, text string, projectID string) NodeExtraction {
	normalized := NormalizeText(text)
	if normalized == "" {
		return NodeExtraction{}
	}

	userPrompt := fmt.Sprintf(ai.NodeExtractionUserPrompt, util.TruncateRunes(normalized, maxTextRunes))
	res, attempts, err := c.complete(ctx, nodeSystemPrompt, userPrompt)
	if err != nil {
		logger.Warn("[Extract] Node extraction call failed", "project_id", projectID, "attempts", attempts, "err", err)
		return NodeExtraction{Attempts: attempts, Err: err}
	}

	var parsed rawNodesResponse
	if err := ai.DecodeModelJSON(res, &parsed); err != nil {
		logger.Warn("[Extract] Failed to parse node response", "project_id", projectID, "err", err)
		return NodeExtraction{Attempts: attempts, Err: err}
	}
	if parsed.Nodes == nil {
		err := fmt.Errorf("response has no nodes field")
		logger.Warn("[Extract] Failed to parse node response", "project_id", projectID, "err", err)
		return NodeExtraction{Attempts: attempts, Err: err}
	}

	now := c.now()
	nodes := make([]common.Node, 0, len(*parsed.Nodes))
	for _, rn := range *parsed.Nodes {
		value := rn.Value.String()
		if value == "" {
			continue
		}
		var nodeType common.NodeType
		if err := nodeType.UnmarshalJSON(rn.Type); err != nil {
			logger.Debug("[Extract] Skipping node with unknown type", "value", value, "err", err)
			continue
		}

		window := ContextWindow(normalized, value, contextRadius)
		props := rn.Properties.Clone()
		props[common.PropProjectID] = projectID
		props[common.PropSource] = common.SourceLLM
		if strings.TrimSpace(props[common.PropContext]) == "" && window != "" {
			props[common.PropContext] = window
		}

		nodes = append(nodes, common.Node{
			ID:         NodeID(nodeType, value, window, now),
			Type:       nodeType,
			Value:      value,
			Key:        rn.Key.String(),
			Properties: props,
		})
	}

	return NodeExtraction{Nodes: DedupeNodes(nodes), Attempts: attempts}
}
