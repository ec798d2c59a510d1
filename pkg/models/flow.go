// Package models defines the data types shared across the chatflow packages.
package models

import "time"

// Node types understood by the flow engine. The set is open: the editor and
// the engine skip node types they do not recognize.
const (
	NodeTextMessage = "textMessage"
	NodeAIResponse  = "aiResponse"
)

// Sentinel identifier values the upstream clients use to mark an unusable id.
// These must be treated as invalid, not merely missing.
const (
	SentinelUndefined = "undefined"
	SentinelNull      = "null"
)

// Position is a canvas coordinate for a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single typed step in a conversation flow.
type Node struct {
	// ID is generated locally at creation time and never reused
	ID string `json:"id"`

	// Type identifies the node behavior (e.g. textMessage, aiResponse)
	Type string `json:"type"`

	// Position of the node on the editor canvas
	Position Position `json:"position"`

	// Data holds type-specific content (message text, prompt, ...)
	Data map[string]interface{} `json:"data,omitempty"`
}

// Edge is a directed connection between two nodes. Source and target should
// reference nodes in the same graph; a dangling edge is a validation finding,
// never a panic.
type Edge struct {
	ID       string                 `json:"id"`
	Source   string                 `json:"source"`
	Target   string                 `json:"target"`
	Animated bool                   `json:"animated,omitempty"`
	Style    map[string]interface{} `json:"style,omitempty"`
}

// GraphData is the node/edge payload persisted inside a flow.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Flow is the persisted unit: a conversation graph plus metadata. Identity is
// the id assigned by the store; a flow without a usable id must never be
// treated as loadable.
type Flow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FlowData  GraphData `json:"flow_data"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FlowSummary is the lightweight list entry used by the flow selector.
type FlowSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// FlowCreate is the input for creating a flow. The store assigns the id.
type FlowCreate struct {
	Name     string    `json:"name" validate:"required,min=1"`
	FlowData GraphData `json:"flow_data"`
	IsActive bool      `json:"is_active"`
}

// FlowPatch is a partial update for a flow. Nil fields are left unchanged.
type FlowPatch struct {
	Name     *string    `json:"name,omitempty"`
	FlowData *GraphData `json:"flow_data,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

// ValidFlowID reports whether id is usable: non-empty and not one of the
// sentinel values upstream clients emit for a missing identifier.
func ValidFlowID(id string) bool {
	return id != "" && id != SentinelUndefined && id != SentinelNull
}

// Summary returns the list entry for this flow.
func (f *Flow) Summary() FlowSummary {
	return FlowSummary{ID: f.ID, Name: f.Name, IsActive: f.IsActive}
}
