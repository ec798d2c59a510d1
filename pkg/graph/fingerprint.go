package graph

import (
	"fmt"
	"strings"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// Fingerprint computes a cheap, order-preserving digest of the graph: node
// count, edge count, and the ordered id lists. It deliberately ignores node
// and edge content — every content edit flows through UpdateNodeData, so the
// editor recomputes the fingerprint on each mutating call and compares it
// against the one captured at the last successful load or save instead of
// diffing content.
func Fingerprint(nodes []models.Node, edges []models.Edge) string {
	nodeIDs := make([]string, len(nodes))
	for i, n := range nodes {
		nodeIDs[i] = n.ID
	}
	edgeIDs := make([]string, len(edges))
	for i, e := range edges {
		edgeIDs[i] = e.ID
	}
	return fmt.Sprintf("%d:%d:%s|%s",
		len(nodes), len(edges),
		strings.Join(nodeIDs, ","), strings.Join(edgeIDs, ","))
}
