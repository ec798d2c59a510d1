package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

func newTestRedisProvider(t *testing.T) *RedisProvider {
	t.Helper()
	mr := miniredis.RunT(t)
	provider := NewRedisProvider(RedisProviderConfig{Address: mr.Addr()})
	require.NoError(t, provider.Initialize())
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestRedisFlowStoreCRUD(t *testing.T) {
	store := newTestRedisProvider(t).GetFlowStore()

	flow := models.Flow{
		ID:   "f1",
		Name: "Welcome",
		FlowData: models.GraphData{
			Nodes: []models.Node{{ID: "n1", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "hi"}}},
		},
	}
	require.NoError(t, store.SaveFlow(flow))

	got, err := store.GetFlow("f1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", got.Name)
	require.Len(t, got.FlowData.Nodes, 1)
	assert.Equal(t, "hi", got.FlowData.Nodes[0].Data["message"])

	flows, err := store.ListFlows()
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	require.NoError(t, store.DeleteFlow("f1"))
	_, err = store.GetFlow("f1")
	assert.ErrorIs(t, err, ErrFlowNotFound)

	flows, err = store.ListFlows()
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestRedisFlowStoreActiveExclusivity(t *testing.T) {
	store := newTestRedisProvider(t).GetFlowStore()

	require.NoError(t, store.SaveFlow(models.Flow{ID: "f1", IsActive: true}))
	require.NoError(t, store.SaveFlow(models.Flow{ID: "f2", IsActive: true}))
	require.NoError(t, store.DeactivateOthers("f2"))

	active, err := store.GetActiveFlow()
	require.NoError(t, err)
	assert.Equal(t, "f2", active.ID)

	f1, err := store.GetFlow("f1")
	require.NoError(t, err)
	assert.False(t, f1.IsActive)
}

func TestRedisFlowStoreNoActiveFlow(t *testing.T) {
	store := newTestRedisProvider(t).GetFlowStore()
	require.NoError(t, store.SaveFlow(models.Flow{ID: "f1"}))

	_, err := store.GetActiveFlow()
	assert.ErrorIs(t, err, ErrNoActiveFlow)
}

func TestRedisContactStore(t *testing.T) {
	store := newTestRedisProvider(t).GetContactStore()

	require.NoError(t, store.SaveContact(models.Contact{
		ID:          "c1",
		Name:        "Ada",
		PhoneNumber: "+15551234567",
		Tags:        []string{"vip"},
	}))
	require.NoError(t, store.SaveContact(models.Contact{
		ID:          "c2",
		Name:        "Grace",
		PhoneNumber: "+15559876543",
	}))

	got, err := store.GetContact("c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	byPhone, err := store.GetContactByPhone("+15559876543")
	require.NoError(t, err)
	assert.Equal(t, "c2", byPhone.ID)

	_, err = store.GetContactByPhone("+10000000000")
	assert.ErrorIs(t, err, ErrContactNotFound)

	vips, err := store.ListContacts([]string{"vip"})
	require.NoError(t, err)
	require.Len(t, vips, 1)
	assert.Equal(t, "c1", vips[0].ID)
}

func TestRedisMessageStore(t *testing.T) {
	store := newTestRedisProvider(t).GetMessageStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.SaveMessage(models.MessageLog{
			ID:        string(rune('a' + i)),
			ContactID: "c1",
			Direction: models.DirectionInbound,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.SaveMessage(models.MessageLog{
		ID:        "out",
		ContactID: "c1",
		Direction: models.DirectionOutbound,
		Timestamp: base.Add(10 * time.Minute),
	}))

	msgs, err := store.ListMessagesByContact("c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "d", msgs[0].ID)
	assert.Equal(t, "out", msgs[1].ID)

	in, err := store.CountMessages(models.DirectionInbound)
	require.NoError(t, err)
	assert.Equal(t, 4, in)

	since, err := store.ListMessagesSince(base.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Len(t, since, 3)

	dropped, err := store.DeleteMessagesBefore(base.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	remaining, err := store.ListMessagesByContact("c1", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}
