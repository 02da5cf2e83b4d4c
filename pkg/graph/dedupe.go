package graph

import (
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
)

// DedupeNodes drops nodes whose ID was already seen, keeping the first.
// The ID does not cover the key, so an entity named twice with different
// roles keeps the role it was first seen with.
func DedupeNodes(nodes []common.Node) []common.Node {
	seen := make(map[string]int, len(nodes))
	out := make([]common.Node, 0, len(nodes))
	for _, n := range nodes {
		if i, ok := seen[n.ID]; ok {
			if kept := out[i]; kept.Key != n.Key {
				logger.Debug("[Extract] Dropped duplicate node with another role",
					"id", n.ID, "value", n.Value, "kept_key", kept.Key, "dropped_key", n.Key)
			}
			continue
		}
		seen[n.ID] = len(out)
		out = append(out, n)
	}
	return out
}

// DedupeEdges drops edges whose ID was already seen, keeping the first.
func DedupeEdges(edges []common.Edge) []common.Edge {
	seen := make(map[string]struct{}, len(edges))
	out := make([]common.Edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// FilterDanglingEdges splits edges into those whose endpoints both exist in
// nodes and the number of edges that were dropped.
func FilterDanglingEdges(edges []common.Edge, nodes []common.Node) ([]common.Edge, int) {
	byID := common.NodesByID(nodes)
	out := make([]common.Edge, 0, len(edges))
	dropped := 0
	for _, e := range edges {
		_, okFrom := byID[e.From]
		_, okTo := byID[e.To]
		if !okFrom || !okTo {
			dropped++
			continue
		}
		out = append(out, e)
	}
	return out, dropped
}
