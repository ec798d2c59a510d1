package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

func TestMemoryFlowStoreCRUD(t *testing.T) {
	store := NewMemoryFlowStore()

	flow := models.Flow{ID: "f1", Name: "Welcome"}
	require.NoError(t, store.SaveFlow(flow))

	got, err := store.GetFlow("f1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", got.Name)

	flows, err := store.ListFlows()
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	require.NoError(t, store.DeleteFlow("f1"))
	_, err = store.GetFlow("f1")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestMemoryFlowStoreListPreservesInsertionOrder(t *testing.T) {
	store := NewMemoryFlowStore()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.SaveFlow(models.Flow{ID: id}))
	}

	flows, err := store.ListFlows()
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, "c", flows[0].ID)
	assert.Equal(t, "a", flows[1].ID)
	assert.Equal(t, "b", flows[2].ID)
}

func TestMemoryFlowStoreGetFlowNotFound(t *testing.T) {
	store := NewMemoryFlowStore()
	_, err := store.GetFlow("missing")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestMemoryFlowStoreDeleteNotFound(t *testing.T) {
	store := NewMemoryFlowStore()
	assert.ErrorIs(t, store.DeleteFlow("missing"), ErrFlowNotFound)
}

func TestMemoryFlowStoreActiveFlow(t *testing.T) {
	store := NewMemoryFlowStore()
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

func TestMemoryFlowStoreNoActiveFlow(t *testing.T) {
	store := NewMemoryFlowStore()
	require.NoError(t, store.SaveFlow(models.Flow{ID: "f1"}))

	_, err := store.GetActiveFlow()
	assert.ErrorIs(t, err, ErrNoActiveFlow)
}

func TestMemoryContactStore(t *testing.T) {
	store := NewMemoryContactStore()

	contact := models.Contact{
		ID:          "c1",
		Name:        "Ada",
		PhoneNumber: "+15551234567",
		Tags:        []string{"vip"},
	}
	require.NoError(t, store.SaveContact(contact))

	got, err := store.GetContact("c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	byPhone, err := store.GetContactByPhone("+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "c1", byPhone.ID)

	_, err = store.GetContact("missing")
	assert.ErrorIs(t, err, ErrContactNotFound)

	_, err = store.GetContactByPhone("+10000000000")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestMemoryContactStoreListByTags(t *testing.T) {
	store := NewMemoryContactStore()
	require.NoError(t, store.SaveContact(models.Contact{ID: "c1", PhoneNumber: "+1", Tags: []string{"vip"}}))
	require.NoError(t, store.SaveContact(models.Contact{ID: "c2", PhoneNumber: "+2", Tags: []string{"new_lead"}}))
	require.NoError(t, store.SaveContact(models.Contact{ID: "c3", PhoneNumber: "+3"}))

	all, err := store.ListContacts(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	vips, err := store.ListContacts([]string{"vip"})
	require.NoError(t, err)
	require.Len(t, vips, 1)
	assert.Equal(t, "c1", vips[0].ID)

	either, err := store.ListContacts([]string{"vip", "new_lead"})
	require.NoError(t, err)
	assert.Len(t, either, 2)
}

func TestMemoryMessageStore(t *testing.T) {
	store := NewMemoryMessageStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveMessage(models.MessageLog{
			ID:        string(rune('a' + i)),
			ContactID: "c1",
			Direction: models.DirectionInbound,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.SaveMessage(models.MessageLog{
		ID:        "other",
		ContactID: "c2",
		Direction: models.DirectionOutbound,
		Timestamp: base,
	}))

	// Most recent messages, oldest first.
	msgs, err := store.ListMessagesByContact("c1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", msgs[0].ID)
	assert.Equal(t, "e", msgs[2].ID)

	in, err := store.CountMessages(models.DirectionInbound)
	require.NoError(t, err)
	assert.Equal(t, 5, in)

	out, err := store.CountMessages(models.DirectionOutbound)
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	since, err := store.ListMessagesSince(base.Add(3 * time.Minute))
	require.NoError(t, err)
	assert.Len(t, since, 2)

	dropped, err := store.DeleteMessagesBefore(base.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)

	remaining, err := store.ListMessagesByContact("c1", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestMemoryProviderLifecycle(t *testing.T) {
	provider := NewMemoryProvider()
	require.NoError(t, provider.Initialize())

	assert.NotNil(t, provider.GetFlowStore())
	assert.NotNil(t, provider.GetContactStore())
	assert.NotNil(t, provider.GetMessageStore())

	assert.NoError(t, provider.Close())
}
