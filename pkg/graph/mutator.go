package graph

import (
	"time"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// Offset applied to a duplicated node so it lands visibly next to the
// original instead of on top of it.
const duplicateOffset = 50

// ConnectParams describes a requested connection between two nodes.
type ConnectParams struct {
	Source string
	Target string
}

// Connect synthesizes a new edge for params, applies the default styling and
// appends it to edges. Parallel edges between the same pair of nodes are
// permitted; no deduplication happens here.
func Connect(edges []models.Edge, params ConnectParams) ([]models.Edge, models.Edge) {
	edge := models.Edge{
		ID:       NewEdgeID(),
		Source:   params.Source,
		Target:   params.Target,
		Animated: true,
		Style:    map[string]interface{}{"stroke": "#6366f1", "strokeWidth": 2},
	}

	out := make([]models.Edge, len(edges), len(edges)+1)
	copy(out, edges)
	return append(out, edge), edge
}

// AddNode appends a new node of the given type at position and returns the
// new collection together with the created node.
func AddNode(nodes []models.Node, nodeType string, position models.Position, data map[string]interface{}) ([]models.Node, models.Node) {
	node := models.Node{
		ID:       NewNodeID(),
		Type:     nodeType,
		Position: position,
		Data:     deepCopyMap(data),
	}

	out := make([]models.Node, len(nodes), len(nodes)+1)
	copy(out, nodes)
	return append(out, node), node
}

// UpdateNodeData merges partial into the data of the node with nodeID. The
// original collection is never modified. When nodeID is not present the input
// collection is returned unchanged.
func UpdateNodeData(nodes []models.Node, nodeID string, partial map[string]interface{}) []models.Node {
	idx := -1
	for i := range nodes {
		if nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nodes
	}

	out := make([]models.Node, len(nodes))
	copy(out, nodes)

	merged := deepCopyMap(out[idx].Data)
	if merged == nil {
		merged = make(map[string]interface{}, len(partial))
	}
	for k, v := range partial {
		merged[k] = deepCopyValue(v)
	}
	out[idx].Data = merged
	return out
}

// Duplicate clones the node with nodeID, assigning a fresh id and offsetting
// the position so the copy is visible. The clone's data is a full structural
// copy: no nested map, slice, or time value aliases the original. When nodeID
// is not present the input collection is returned unchanged.
func Duplicate(nodes []models.Node, nodeID string) ([]models.Node, models.Node, bool) {
	var src *models.Node
	for i := range nodes {
		if nodes[i].ID == nodeID {
			src = &nodes[i]
			break
		}
	}
	if src == nil {
		return nodes, models.Node{}, false
	}

	clone := models.Node{
		ID:   NewNodeID(),
		Type: src.Type,
		Position: models.Position{
			X: src.Position.X + duplicateOffset,
			Y: src.Position.Y + duplicateOffset,
		},
		Data: deepCopyMap(src.Data),
	}

	out := make([]models.Node, len(nodes), len(nodes)+1)
	copy(out, nodes)
	return append(out, clone), clone, true
}

// RemoveNodes drops the nodes with the given ids along with every edge that
// references one of them. Clearing selection state that pointed at a removed
// node is the caller's responsibility.
func RemoveNodes(nodes []models.Node, edges []models.Edge, ids []string) ([]models.Node, []models.Edge) {
	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		deleted[id] = true
	}

	outNodes := make([]models.Node, 0, len(nodes))
	for _, n := range nodes {
		if !deleted[n.ID] {
			outNodes = append(outNodes, n)
		}
	}

	outEdges := make([]models.Edge, 0, len(edges))
	for _, e := range edges {
		if !deleted[e.Source] && !deleted[e.Target] {
			outEdges = append(outEdges, e)
		}
	}

	return outNodes, outEdges
}

// CloneGraph returns a deep copy of data. The editor uses this whenever graph
// state crosses an ownership boundary (load from the store, save payloads) so
// the live graph and the persisted copy are reconciled, never shared.
func CloneGraph(data models.GraphData) models.GraphData {
	out := models.GraphData{
		Nodes: make([]models.Node, len(data.Nodes)),
		Edges: make([]models.Edge, len(data.Edges)),
	}
	for i, n := range data.Nodes {
		n.Data = deepCopyMap(n.Data)
		out.Nodes[i] = n
	}
	for i, e := range data.Edges {
		e.Style = deepCopyMap(e.Style)
		out.Edges[i] = e
	}
	return out
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case time.Time:
		return val
	default:
		return val
	}
}
