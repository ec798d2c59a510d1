// Package editor contains the flow editor core: the controller that owns the
// in-memory conversation graph, mediates every mutation to it, detects
// unsaved changes, and coordinates load/save/create/delete against a remote
// flow store with cancellation and teardown safety.
package editor

import (
	"context"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// FlowStore is the remote persistence collaborator the controller talks to.
// The durable list of flows is owned by the store; the controller owns the
// live in-memory graph. Implementations must honor context cancellation.
type FlowStore interface {
	// ListFlows returns summaries of all stored flows
	ListFlows(ctx context.Context) ([]models.FlowSummary, error)

	// GetFlow retrieves a full flow by id
	GetFlow(ctx context.Context, id string) (*models.Flow, error)

	// CreateFlow stores a new flow; the store assigns the id
	CreateFlow(ctx context.Context, input models.FlowCreate) (*models.Flow, error)

	// UpdateFlow applies a partial update to a stored flow
	UpdateFlow(ctx context.Context, id string, patch models.FlowPatch) (*models.Flow, error)

	// DeleteFlow removes a stored flow
	DeleteFlow(ctx context.Context, id string) error
}

// ConfirmPrompt asks the user to confirm discarding unsaved work before a
// destructive navigation (switching flows, creating a new one). The call may
// block until the user answers.
type ConfirmPrompt interface {
	ConfirmDiscard(message string) bool
}

// ConfirmFunc adapts a function to the ConfirmPrompt interface.
type ConfirmFunc func(message string) bool

// ConfirmDiscard implements ConfirmPrompt.
func (f ConfirmFunc) ConfirmDiscard(message string) bool { return f(message) }
