package graph

import (
	"fmt"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// FindingKind tags a validation finding.
type FindingKind string

// Kinds of validation findings.
const (
	FindingOrphanNode   FindingKind = "orphan_node"
	FindingEmptyMessage FindingKind = "empty_message"
	FindingEmptyPrompt  FindingKind = "empty_prompt"
	FindingDanglingEdge FindingKind = "dangling_edge"
)

// Finding is a single structural or content problem in a graph. Findings are
// advisory: validation never mutates the graph and never blocks a save by
// itself — callers decide whether to warn or hard-block.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	NodeID  string      `json:"node_id,omitempty"`
	EdgeID  string      `json:"edge_id,omitempty"`
	Message string      `json:"message"`
}

// Validate inspects the graph and returns an ordered list of findings:
// orphaned nodes (no incident edge, reported only when the graph has more
// than one node), blank textMessage content, blank aiResponse prompts on
// nodes that do not inherit prior conversation context, and edges whose
// endpoints are missing from the graph.
func Validate(nodes []models.Node, edges []models.Edge) []Finding {
	var findings []Finding

	present := make(map[string]bool, len(nodes))
	connected := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	for _, e := range edges {
		connected[e.Source] = true
		connected[e.Target] = true
	}

	for _, n := range nodes {
		if len(nodes) > 1 && !connected[n.ID] {
			findings = append(findings, Finding{
				Kind:    FindingOrphanNode,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node %q is not connected to any other node", n.ID),
			})
		}

		switch n.Type {
		case models.NodeTextMessage:
			if stringField(n.Data, "message") == "" {
				findings = append(findings, Finding{
					Kind:    FindingEmptyMessage,
					NodeID:  n.ID,
					Message: fmt.Sprintf("message node %q has no text", n.ID),
				})
			}
		case models.NodeAIResponse:
			// An empty prompt is fine when the node declares that it
			// inherits the prior conversation as context.
			if stringField(n.Data, "prompt") == "" && !boolField(n.Data, "useContext") {
				findings = append(findings, Finding{
					Kind:    FindingEmptyPrompt,
					NodeID:  n.ID,
					Message: fmt.Sprintf("AI node %q has no prompt and does not use conversation context", n.ID),
				})
			}
		}
	}

	for _, e := range edges {
		if !present[e.Source] || !present[e.Target] {
			findings = append(findings, Finding{
				Kind:    FindingDanglingEdge,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge %q references a missing node", e.ID),
			})
		}
	}

	return findings
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func boolField(data map[string]interface{}, key string) bool {
	if data == nil {
		return false
	}
	b, _ := data[key].(bool)
	return b
}
