package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

func newTestRegistry() *FlowRegistryService {
	return NewFlowRegistry(storage.NewMemoryFlowStore())
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	r := newTestRegistry()

	flow, err := r.Create(models.FlowCreate{Name: "Welcome"})

	require.NoError(t, err)
	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, "Welcome", flow.Name)
	assert.False(t, flow.CreatedAt.IsZero())
	assert.Equal(t, flow.CreatedAt, flow.UpdatedAt)
	assert.NotNil(t, flow.FlowData.Nodes)
	assert.NotNil(t, flow.FlowData.Edges)
}

func TestCreateRequiresName(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Create(models.FlowCreate{})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestGetUnknownFlow(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Get("2b3e9f54-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestGetRejectsSentinelIDs(t *testing.T) {
	r := newTestRegistry()

	for _, id := range []string{"", "undefined", "null"} {
		_, err := r.Get(id)
		assert.ErrorIs(t, err, ErrInvalidFlowID, "id %q", id)
	}
}

func TestUpdateAppliesPatchFields(t *testing.T) {
	r := newTestRegistry()
	flow, err := r.Create(models.FlowCreate{Name: "Before"})
	require.NoError(t, err)

	name := "After"
	data := models.GraphData{Nodes: []models.Node{{ID: "n1", Type: models.NodeTextMessage}}}
	updated, err := r.Update(flow.ID, models.FlowPatch{Name: &name, FlowData: &data})

	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	require.Len(t, updated.FlowData.Nodes, 1)
	assert.False(t, updated.UpdatedAt.Before(flow.UpdatedAt))
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	r := newTestRegistry()
	flow, err := r.Create(models.FlowCreate{Name: "Welcome"})
	require.NoError(t, err)

	_, err = r.Update(flow.ID, models.FlowPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestActivationIsExclusive(t *testing.T) {
	r := newTestRegistry()
	first, err := r.Create(models.FlowCreate{Name: "First", IsActive: true})
	require.NoError(t, err)

	active, err := r.GetActive()
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	second, err := r.Create(models.FlowCreate{Name: "Second"})
	require.NoError(t, err)

	yes := true
	_, err = r.Update(second.ID, models.FlowPatch{IsActive: &yes})
	require.NoError(t, err)

	active, err = r.GetActive()
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	got, err := r.Get(first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestGetActiveWithNoneActive(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(models.FlowCreate{Name: "Inactive"})
	require.NoError(t, err)

	_, err = r.GetActive()
	assert.ErrorIs(t, err, storage.ErrNoActiveFlow)
}

func TestDeleteFlow(t *testing.T) {
	r := newTestRegistry()
	flow, err := r.Create(models.FlowCreate{Name: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, r.Delete(flow.ID))
	_, err = r.Get(flow.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)

	assert.ErrorIs(t, r.Delete(flow.ID), ErrFlowNotFound)
	assert.ErrorIs(t, r.Delete("undefined"), ErrInvalidFlowID)
}

func TestListFlows(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(models.FlowCreate{Name: "A"})
	require.NoError(t, err)
	_, err = r.Create(models.FlowCreate{Name: "B"})
	require.NoError(t, err)

	flows, err := r.List()
	require.NoError(t, err)
	assert.Len(t, flows, 2)
}
