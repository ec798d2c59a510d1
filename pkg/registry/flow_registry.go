// Package registry provides the server-side service for managing stored
// conversation flows.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// Errors returned by the flow registry.
var (
	ErrFlowNotFound  = errors.New("flow not found")
	ErrInvalidFlowID = errors.New("invalid flow id")
	ErrNameRequired  = errors.New("flow name is required")
	ErrEmptyPatch    = errors.New("no update data provided")
)

// FlowRegistry manages stored conversation flows.
type FlowRegistry interface {
	// Create stores a new flow and returns it with its assigned id
	Create(input models.FlowCreate) (models.Flow, error)

	// Get retrieves a flow by id
	Get(id string) (models.Flow, error)

	// List returns all stored flows
	List() ([]models.Flow, error)

	// Update applies a partial update and returns the updated flow
	Update(id string, patch models.FlowPatch) (models.Flow, error)

	// Delete removes a flow
	Delete(id string) error

	// GetActive returns the flow currently marked active
	GetActive() (models.Flow, error)
}

// FlowRegistryService implements FlowRegistry over a storage.FlowStore. At
// most one flow is active at a time: activating a flow deactivates the rest.
type FlowRegistryService struct {
	flowStore storage.FlowStore
}

// NewFlowRegistry creates a new flow registry service.
func NewFlowRegistry(flowStore storage.FlowStore) *FlowRegistryService {
	return &FlowRegistryService{flowStore: flowStore}
}

// Create stores a new flow. The registry assigns the id.
func (r *FlowRegistryService) Create(input models.FlowCreate) (models.Flow, error) {
	if input.Name == "" {
		return models.Flow{}, ErrNameRequired
	}

	now := time.Now().UTC()
	flow := models.Flow{
		ID:        uuid.New().String(),
		Name:      input.Name,
		FlowData:  input.FlowData,
		IsActive:  input.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if flow.FlowData.Nodes == nil {
		flow.FlowData.Nodes = []models.Node{}
	}
	if flow.FlowData.Edges == nil {
		flow.FlowData.Edges = []models.Edge{}
	}

	if flow.IsActive {
		if err := r.flowStore.DeactivateOthers(flow.ID); err != nil {
			return models.Flow{}, fmt.Errorf("failed to deactivate flows: %w", err)
		}
	}
	if err := r.flowStore.SaveFlow(flow); err != nil {
		return models.Flow{}, fmt.Errorf("failed to save flow: %w", err)
	}
	return flow, nil
}

// Get retrieves a flow by id.
func (r *FlowRegistryService) Get(id string) (models.Flow, error) {
	if !models.ValidFlowID(id) {
		return models.Flow{}, ErrInvalidFlowID
	}
	flow, err := r.flowStore.GetFlow(id)
	if errors.Is(err, storage.ErrFlowNotFound) {
		return models.Flow{}, ErrFlowNotFound
	}
	if err != nil {
		return models.Flow{}, fmt.Errorf("failed to get flow: %w", err)
	}
	return flow, nil
}

// List returns all stored flows.
func (r *FlowRegistryService) List() ([]models.Flow, error) {
	flows, err := r.flowStore.ListFlows()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	return flows, nil
}

// Update applies a partial update to a flow. Nil patch fields are left
// unchanged; a patch with nothing set is rejected.
func (r *FlowRegistryService) Update(id string, patch models.FlowPatch) (models.Flow, error) {
	if !models.ValidFlowID(id) {
		return models.Flow{}, ErrInvalidFlowID
	}
	if patch.Name == nil && patch.FlowData == nil && patch.IsActive == nil {
		return models.Flow{}, ErrEmptyPatch
	}

	flow, err := r.Get(id)
	if err != nil {
		return models.Flow{}, err
	}

	if patch.Name != nil {
		flow.Name = *patch.Name
	}
	if patch.FlowData != nil {
		flow.FlowData = *patch.FlowData
	}
	if patch.IsActive != nil {
		flow.IsActive = *patch.IsActive
	}
	flow.UpdatedAt = time.Now().UTC()

	if patch.IsActive != nil && *patch.IsActive {
		if err := r.flowStore.DeactivateOthers(flow.ID); err != nil {
			return models.Flow{}, fmt.Errorf("failed to deactivate flows: %w", err)
		}
	}
	if err := r.flowStore.SaveFlow(flow); err != nil {
		return models.Flow{}, fmt.Errorf("failed to update flow: %w", err)
	}
	return flow, nil
}

// Delete removes a flow.
func (r *FlowRegistryService) Delete(id string) error {
	if !models.ValidFlowID(id) {
		return ErrInvalidFlowID
	}
	err := r.flowStore.DeleteFlow(id)
	if errors.Is(err, storage.ErrFlowNotFound) {
		return ErrFlowNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return nil
}

// GetActive returns the flow currently marked active.
func (r *FlowRegistryService) GetActive() (models.Flow, error) {
	flow, err := r.flowStore.GetActiveFlow()
	if errors.Is(err, storage.ErrNoActiveFlow) {
		return models.Flow{}, err
	}
	if err != nil {
		return models.Flow{}, fmt.Errorf("failed to get active flow: %w", err)
	}
	return flow, nil
}
