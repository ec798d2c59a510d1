package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/graph"
	"github.com/chatflow-ai/chatflow/pkg/models"
)

const discardMessage = "You have unsaved changes. Discard them and continue?"

// How long the transient "saved" indicator stays up before it is reset.
const saveStatusTTL = 2 * time.Second

// Controller owns the live conversation graph for one editing session and
// mediates every mutation to it. It composes the graph operations, the
// change fingerprint, and the request coordinator with an injected FlowStore
// and confirmation prompt. Construct one per session with New and tear it
// down with Close; a closed controller never mutates its state again, even
// when an in-flight store call resolves afterwards.
//
// Lifecycle of the current-flow slot: empty, loading, loaded, dirty after the
// first mutation, saving, and back to loaded. Store failures return the slot
// to the prior stable state.
type Controller struct {
	store   FlowStore
	confirm ConfirmPrompt
	logger  *zap.Logger
	coord   *requestCoordinator

	mu               sync.Mutex
	nodes            []models.Node
	edges            []models.Edge
	current          *models.Flow
	flows            []models.FlowSummary
	savedFingerprint string
	dirty            bool
	selectedNodeID   string
	loading          bool
	saving           bool
	saveStatus       string
	lastErr          error
}

// New creates a controller with its collaborators injected. A nil logger is
// replaced with a no-op one.
func New(store FlowStore, confirm ConfirmPrompt, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   store,
		confirm: confirm,
		logger:  logger,
		coord:   newRequestCoordinator(),
	}
}

// Close tears the controller down: the in-flight load is cancelled, pending
// timers are stopped, and any late resolution is discarded without touching
// state.
func (c *Controller) Close() {
	c.coord.close()
}

// FetchAll retrieves the flow summary list from the store. Entries with a
// missing or sentinel-invalid id are filtered out before display, each one
// logged. When autoLoadFirst is set and nothing is loaded yet, the first
// valid flow is loaded. Failures are recorded in the controller error field,
// not returned.
func (c *Controller) FetchAll(ctx context.Context, autoLoadFirst bool) {
	summaries, err := c.store.ListFlows(ctx)

	c.mu.Lock()
	if !c.coord.alive() {
		c.mu.Unlock()
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return
		}
		c.lastErr = fmt.Errorf("list flows: %w", err)
		c.logger.Error("failed to list flows", zap.Error(err))
		c.mu.Unlock()
		return
	}

	valid := make([]models.FlowSummary, 0, len(summaries))
	for _, s := range summaries {
		if !models.ValidFlowID(s.ID) {
			c.logger.Warn("dropping flow summary with invalid id",
				zap.String("id", s.ID), zap.String("name", s.Name))
			continue
		}
		valid = append(valid, s)
	}
	c.flows = valid
	c.lastErr = nil

	shouldLoad := autoLoadFirst && c.current == nil && len(valid) > 0
	var firstID string
	if shouldLoad {
		firstID = valid[0].ID
	}
	c.mu.Unlock()

	if shouldLoad {
		c.load(ctx, firstID, false)
	}
}

// Load makes the flow with the given id current. Missing and sentinel ids
// are rejected locally before any network call. When unsaved changes exist
// the confirmation prompt is consulted first; a "no" aborts with no side
// effects. A new load supersedes any load still in flight: the superseded
// one's resolution is dropped. Failures are recorded in the controller error
// field and leave the prior state untouched.
func (c *Controller) Load(ctx context.Context, id string) {
	c.load(ctx, id, false)
}

func (c *Controller) load(ctx context.Context, id string, skipConfirm bool) {
	c.mu.Lock()
	if !models.ValidFlowID(id) {
		c.lastErr = fmt.Errorf("load flow %q: %w", id, ErrInvalidFlowID)
		c.logger.Warn("rejected load of invalid flow id", zap.String("id", id))
		c.mu.Unlock()
		return
	}

	if !skipConfirm && c.current != nil && c.hasUnsavedChangesLocked() {
		c.mu.Unlock()
		// The prompt may block; never hold the lock across it.
		if !c.confirm.ConfirmDiscard(discardMessage) {
			return
		}
		c.mu.Lock()
	}
	c.loading = true
	c.mu.Unlock()

	loadCtx, gen := c.coord.begin(ctx)
	flow, err := c.store.GetFlow(loadCtx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.coord.current(gen) {
		// Superseded or torn down: a stale resolution must not overwrite
		// whatever is current now.
		return
	}
	c.loading = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.lastErr = fmt.Errorf("load flow %q: %w", id, err)
		c.logger.Error("failed to load flow", zap.String("id", id), zap.Error(err))
		return
	}
	if flow == nil || !models.ValidFlowID(flow.ID) {
		c.lastErr = fmt.Errorf("load flow %q: %w", id, ErrUnusableFlow)
		c.logger.Error("store returned unusable flow", zap.String("id", id))
		return
	}

	data := graph.CloneGraph(flow.FlowData)
	loaded := *flow
	loaded.FlowData = data

	c.nodes = data.Nodes
	c.edges = data.Edges
	c.current = &loaded
	c.savedFingerprint = graph.Fingerprint(c.nodes, c.edges)
	c.dirty = false
	c.selectedNodeID = ""
	c.lastErr = nil
	c.logger.Debug("flow loaded", zap.String("id", flow.ID), zap.String("name", flow.Name))
}

// Save writes the live graph back to the store. It is a no-op when no flow
// is current or nothing changed since the last load or save, so hammering
// the save button costs one write at most. On success the last-saved
// fingerprint advances and the summary list is patched in place. On failure
// the error is recorded and returned, and the live graph is kept as-is so
// the user can retry.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil || !c.hasUnsavedChangesLocked() {
		c.mu.Unlock()
		return nil
	}
	c.saving = true
	id := c.current.ID
	name := c.current.Name
	isActive := c.current.IsActive
	data := graph.CloneGraph(models.GraphData{Nodes: c.nodes, Edges: c.edges})
	fp := graph.Fingerprint(c.nodes, c.edges)
	c.mu.Unlock()

	_, err := c.store.UpdateFlow(ctx, id, models.FlowPatch{
		Name:     &name,
		FlowData: &data,
		IsActive: &isActive,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.coord.alive() {
		return err
	}
	c.saving = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		wrapped := fmt.Errorf("save flow %q: %w", id, err)
		c.lastErr = wrapped
		c.logger.Error("failed to save flow", zap.String("id", id), zap.Error(err))
		return wrapped
	}

	c.savedFingerprint = fp
	c.dirty = false
	c.lastErr = nil
	if c.current != nil && c.current.ID == id {
		c.current.FlowData = data
	}
	for i := range c.flows {
		if c.flows[i].ID == id {
			c.flows[i].Name = name
			c.flows[i].IsActive = isActive
			break
		}
	}
	c.saveStatus = "saved"
	c.coord.schedule(saveStatusTTL, func() {
		c.mu.Lock()
		c.saveStatus = ""
		c.mu.Unlock()
	})
	c.logger.Debug("flow saved", zap.String("id", id))
	return nil
}

// Create stores a new empty flow under the given name, appends it to the
// summary list, and loads it. Unsaved changes gate the operation the same
// way Load does. The error is recorded and returned so callers can react.
func (c *Controller) Create(ctx context.Context, name string) error {
	c.mu.Lock()
	if c.current != nil && c.hasUnsavedChangesLocked() {
		c.mu.Unlock()
		if !c.confirm.ConfirmDiscard(discardMessage) {
			return nil
		}
	} else {
		c.mu.Unlock()
	}

	flow, err := c.store.CreateFlow(ctx, models.FlowCreate{
		Name:     name,
		FlowData: models.GraphData{Nodes: []models.Node{}, Edges: []models.Edge{}},
	})

	c.mu.Lock()
	if !c.coord.alive() {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return err
		}
		wrapped := fmt.Errorf("create flow %q: %w", name, err)
		c.lastErr = wrapped
		c.logger.Error("failed to create flow", zap.String("name", name), zap.Error(err))
		c.mu.Unlock()
		return wrapped
	}
	if flow == nil || !models.ValidFlowID(flow.ID) {
		wrapped := fmt.Errorf("create flow %q: %w", name, ErrUnusableFlow)
		c.lastErr = wrapped
		c.logger.Error("store returned unusable flow on create", zap.String("name", name))
		c.mu.Unlock()
		return wrapped
	}

	c.flows = append(c.flows, flow.Summary())
	newID := flow.ID
	c.mu.Unlock()

	// The discard decision was already taken above; do not prompt again.
	c.load(ctx, newID, true)
	return nil
}

// Delete removes the flow with the given id from the store and the summary
// list. Deleting the current flow clears the live graph; when other flows
// remain the first one is loaded automatically. The error is recorded and
// returned so callers can react.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if !models.ValidFlowID(id) {
		wrapped := fmt.Errorf("delete flow %q: %w", id, ErrInvalidFlowID)
		c.lastErr = wrapped
		c.mu.Unlock()
		return wrapped
	}
	c.mu.Unlock()

	err := c.store.DeleteFlow(ctx, id)

	c.mu.Lock()
	if !c.coord.alive() {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return err
		}
		wrapped := fmt.Errorf("delete flow %q: %w", id, err)
		c.lastErr = wrapped
		c.logger.Error("failed to delete flow", zap.String("id", id), zap.Error(err))
		c.mu.Unlock()
		return wrapped
	}

	remaining := make([]models.FlowSummary, 0, len(c.flows))
	for _, s := range c.flows {
		if s.ID != id {
			remaining = append(remaining, s)
		}
	}
	c.flows = remaining
	c.lastErr = nil

	var nextID string
	if c.current != nil && c.current.ID == id {
		c.nodes = nil
		c.edges = nil
		c.current = nil
		c.savedFingerprint = ""
		c.dirty = false
		c.selectedNodeID = ""
		if len(remaining) > 0 {
			nextID = remaining[0].ID
		}
	}
	c.mu.Unlock()

	if nextID != "" {
		// The current flow is already gone, so there is nothing to discard.
		c.load(ctx, nextID, true)
	}
	return nil
}

// ConnectNodes adds an edge between two nodes and marks the graph dirty.
// Parallel edges are allowed.
func (c *Controller) ConnectNodes(params graph.ConnectParams) models.Edge {
	c.mu.Lock()
	defer c.mu.Unlock()

	edges, edge := graph.Connect(c.edges, params)
	c.edges = edges
	c.dirty = true
	return edge
}

// AddNode places a new node of the given type on the canvas.
func (c *Controller) AddNode(nodeType string, position models.Position, data map[string]interface{}) models.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes, node := graph.AddNode(c.nodes, nodeType, position, data)
	c.nodes = nodes
	c.dirty = true
	return node
}

// UpdateNodeData merges partial into the node's data. Unknown ids are a
// silent no-op and do not dirty the graph.
func (c *Controller) UpdateNodeData(nodeID string, partial map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.nodes {
		if c.nodes[i].ID == nodeID {
			c.nodes = graph.UpdateNodeData(c.nodes, nodeID, partial)
			c.dirty = true
			return
		}
	}
}

// DuplicateNode clones a node with a fresh id and offset position. Returns
// false (and leaves the graph untouched) when the id is unknown.
func (c *Controller) DuplicateNode(nodeID string) (models.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes, clone, ok := graph.Duplicate(c.nodes, nodeID)
	if !ok {
		return models.Node{}, false
	}
	c.nodes = nodes
	c.dirty = true
	return clone, true
}

// DeleteNodes removes the given nodes and their incident edges. Selection
// state pointing at a removed node is cleared here, not in the graph layer.
func (c *Controller) DeleteNodes(ids []string) {
	if len(ids) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes, c.edges = graph.RemoveNodes(c.nodes, c.edges, ids)
	for _, id := range ids {
		if c.selectedNodeID == id {
			c.selectedNodeID = ""
			break
		}
	}
	c.dirty = true
}

// SelectNode marks a node as selected for the side panel.
func (c *Controller) SelectNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedNodeID = nodeID
}

// ClearSelection drops the node selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedNodeID = ""
}

// HasUnsavedChanges reports whether the live graph differs from the state
// captured at the last successful load or save. False when no flow is
// current or nothing was ever captured.
func (c *Controller) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasUnsavedChangesLocked()
}

// The fingerprint is content-blind, so topology changes are caught by the
// fingerprint comparison while content edits are caught by the dirty flag
// every mutating call sets.
func (c *Controller) hasUnsavedChangesLocked() bool {
	if c.current == nil || c.savedFingerprint == "" {
		return false
	}
	if c.dirty {
		return true
	}
	return graph.Fingerprint(c.nodes, c.edges) != c.savedFingerprint
}

// Validate runs the graph validator over the live graph.
func (c *Controller) Validate() []graph.Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return graph.Validate(c.nodes, c.edges)
}

// Nodes returns a snapshot of the live node collection.
func (c *Controller) Nodes() []models.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Edges returns a snapshot of the live edge collection.
func (c *Controller) Edges() []models.Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Edge, len(c.edges))
	copy(out, c.edges)
	return out
}

// CurrentFlow returns a copy of the current flow, if any.
func (c *Controller) CurrentFlow() (models.Flow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return models.Flow{}, false
	}
	return *c.current, true
}

// Flows returns a snapshot of the flow summary list.
func (c *Controller) Flows() []models.FlowSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FlowSummary, len(c.flows))
	copy(out, c.flows)
	return out
}

// SelectedNodeID returns the id of the selected node, or "".
func (c *Controller) SelectedNodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedNodeID
}

// Loading reports whether a load is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Saving reports whether a save is in flight.
func (c *Controller) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

// SaveStatus returns the transient save indicator ("saved" right after a
// successful save, reset shortly after).
func (c *Controller) SaveStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveStatus
}

// Err returns the last recorded operation error, or nil. Each operation's
// error is independent: a failure does not block subsequent operations, and
// any successful load, save, create or delete clears it.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
