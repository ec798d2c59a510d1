package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

func kinds(findings []Finding) []FindingKind {
	out := make([]FindingKind, len(findings))
	for i, f := range findings {
		out[i] = f.Kind
	}
	return out
}

func TestValidateCleanGraph(t *testing.T) {
	nodes := []models.Node{
		{ID: "a", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
		{ID: "b", Type: models.NodeAIResponse, Data: map[string]interface{}{"prompt": "reply"}},
	}
	edges := []models.Edge{{ID: "e1", Source: "a", Target: "b"}}

	assert.Empty(t, Validate(nodes, edges))
}

func TestValidateSingleNodeIsNotOrphan(t *testing.T) {
	nodes := []models.Node{
		{ID: "a", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
	}

	assert.Empty(t, Validate(nodes, nil))
}

func TestValidateOrphanNode(t *testing.T) {
	nodes := []models.Node{
		{ID: "a", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
		{ID: "b", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
		{ID: "c", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
	}
	edges := []models.Edge{{ID: "e1", Source: "a", Target: "b"}}

	findings := Validate(nodes, edges)

	require.Len(t, findings, 1)
	assert.Equal(t, FindingOrphanNode, findings[0].Kind)
	assert.Equal(t, "c", findings[0].NodeID)
}

func TestValidateEmptyMessage(t *testing.T) {
	nodes := []models.Node{{ID: "a", Type: models.NodeTextMessage}}

	findings := Validate(nodes, nil)

	require.Len(t, findings, 1)
	assert.Equal(t, FindingEmptyMessage, findings[0].Kind)
}

func TestValidateEmptyPrompt(t *testing.T) {
	nodes := []models.Node{{ID: "a", Type: models.NodeAIResponse}}

	findings := Validate(nodes, nil)

	require.Len(t, findings, 1)
	assert.Equal(t, FindingEmptyPrompt, findings[0].Kind)
}

func TestValidateEmptyPromptAllowedWithContext(t *testing.T) {
	nodes := []models.Node{{
		ID:   "a",
		Type: models.NodeAIResponse,
		Data: map[string]interface{}{"useContext": true},
	}}

	assert.Empty(t, Validate(nodes, nil))
}

func TestValidateDanglingEdge(t *testing.T) {
	nodes := []models.Node{
		{ID: "a", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
		{ID: "b", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
	}
	edges := []models.Edge{
		{ID: "e1", Source: "a", Target: "b"},
		{ID: "e2", Source: "a", Target: "gone"},
	}

	findings := Validate(nodes, edges)

	assert.Contains(t, kinds(findings), FindingDanglingEdge)
}

func TestValidateUnknownNodeTypeSkipped(t *testing.T) {
	nodes := []models.Node{
		{ID: "a", Type: "condition"},
		{ID: "b", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}},
	}
	edges := []models.Edge{{ID: "e1", Source: "a", Target: "b"}}

	assert.Empty(t, Validate(nodes, edges))
}
