package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/registry"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// recordingMessenger captures outbound sends.
type recordingMessenger struct {
	mu    sync.Mutex
	sends []sentMessage
	err   error
}

type sentMessage struct {
	phone string
	text  string
}

func (m *recordingMessenger) SendMessage(_ context.Context, phone, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, sentMessage{phone: phone, text: text})
	return nil
}

func (m *recordingMessenger) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sends))
	copy(out, m.sends)
	return out
}

// scriptedResponder returns a fixed reply and records the prompt it saw.
type scriptedResponder struct {
	reply       string
	lastPrompt  string
	lastHistory []ChatMessage
}

func (r *scriptedResponder) Respond(_ context.Context, prompt string, history []ChatMessage) (string, error) {
	r.lastPrompt = prompt
	r.lastHistory = history
	return r.reply, nil
}

type engineFixture struct {
	engine    *EngineService
	flows     *registry.FlowRegistryService
	contacts  storage.ContactStore
	messages  storage.MessageStore
	messenger *recordingMessenger
	responder *scriptedResponder
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())

	f := &engineFixture{
		flows:     registry.NewFlowRegistry(provider.GetFlowStore()),
		contacts:  provider.GetContactStore(),
		messages:  provider.GetMessageStore(),
		messenger: &recordingMessenger{},
		responder: &scriptedResponder{reply: "ai reply"},
	}
	f.engine = NewEngineService(f.flows, f.contacts, f.messages, f.messenger, f.responder, nil)
	return f
}

// greet -> followup, with greet as the trigger node.
func (f *engineFixture) activateTwoStepFlow(t *testing.T) {
	t.Helper()
	_, err := f.flows.Create(models.FlowCreate{
		Name:     "Welcome",
		IsActive: true,
		FlowData: models.GraphData{
			Nodes: []models.Node{
				{ID: "greet", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "Hello there"}},
				{ID: "followup", Type: models.NodeTextMessage, Data: map[string]interface{}{"message": "Anything else?"}},
			},
			Edges: []models.Edge{{ID: "e1", Source: "greet", Target: "followup"}},
		},
	})
	require.NoError(t, err)
}

func TestHandleInboundRegistersNewContact(t *testing.T) {
	f := newEngineFixture(t)
	f.activateTwoStepFlow(t)

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "hi"))

	contact, err := f.contacts.GetContactByPhone("+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "WA +15551234567", contact.Name)
	assert.Equal(t, []string{"new_lead"}, contact.Tags)
}

func TestHandleInboundExecutesTriggerNodeAndAdvances(t *testing.T) {
	f := newEngineFixture(t)
	f.activateTwoStepFlow(t)

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "hi"))

	sends := f.messenger.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "Hello there", sends[0].text)

	contact, err := f.contacts.GetContactByPhone("+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "followup", contact.CurrentFlowNodeID)

	// Second message executes the node the contact advanced to.
	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "more"))
	sends = f.messenger.sent()
	require.Len(t, sends, 2)
	assert.Equal(t, "Anything else?", sends[1].text)

	// The flow ends after the last node.
	contact, err = f.contacts.GetContactByPhone("+15551234567")
	require.NoError(t, err)
	assert.Empty(t, contact.CurrentFlowNodeID)
}

func TestHandleInboundLogsBothDirections(t *testing.T) {
	f := newEngineFixture(t)
	f.activateTwoStepFlow(t)

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "hi"))

	in, err := f.messages.CountMessages(models.DirectionInbound)
	require.NoError(t, err)
	assert.Equal(t, 1, in)

	out, err := f.messages.CountMessages(models.DirectionOutbound)
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestHandleInboundWithNoActiveFlow(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "hi"))

	assert.Empty(t, f.messenger.sent())

	// The inbound message is still logged.
	in, err := f.messages.CountMessages(models.DirectionInbound)
	require.NoError(t, err)
	assert.Equal(t, 1, in)
}

func TestHandleInboundAIResponseUsesHistory(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.flows.Create(models.FlowCreate{
		Name:     "AI",
		IsActive: true,
		FlowData: models.GraphData{
			Nodes: []models.Node{
				{ID: "ai", Type: models.NodeAIResponse, Data: map[string]interface{}{"prompt": "Be helpful"}},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "question"))

	assert.Equal(t, "Be helpful", f.responder.lastPrompt)
	require.NotEmpty(t, f.responder.lastHistory)
	last := f.responder.lastHistory[len(f.responder.lastHistory)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "question", last.Content)

	sends := f.messenger.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "ai reply", sends[0].text)
}

func TestHandleInboundUnknownNodeTypeSendsNothing(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.flows.Create(models.FlowCreate{
		Name:     "Odd",
		IsActive: true,
		FlowData: models.GraphData{
			Nodes: []models.Node{{ID: "mystery", Type: "condition"}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "hi"))
	assert.Empty(t, f.messenger.sent())
}

func TestHandleInboundStaleNodeFallsBackToTrigger(t *testing.T) {
	f := newEngineFixture(t)
	f.activateTwoStepFlow(t)

	contact := models.Contact{
		ID:                "c1",
		PhoneNumber:       "+15551234567",
		CurrentFlowNodeID: "node-from-old-flow",
	}
	require.NoError(t, f.contacts.SaveContact(contact))

	require.NoError(t, f.engine.HandleInbound(context.Background(), "+15551234567", "hi"))

	sends := f.messenger.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "Hello there", sends[0].text)
}

func TestHandleInboundSendFailureSurfaces(t *testing.T) {
	f := newEngineFixture(t)
	f.activateTwoStepFlow(t)
	f.messenger.err = errors.New("gateway down")

	err := f.engine.HandleInbound(context.Background(), "+15551234567", "hi")
	assert.Error(t, err)
}
