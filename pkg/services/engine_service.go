package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/registry"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// How many prior messages are handed to the responder as context.
const defaultHistoryLimit = 10

// EngineService walks contacts through the active conversation flow. Each
// inbound message executes the contact's current node (or the flow's trigger
// node on first contact) and advances the contact along the first outgoing
// edge.
type EngineService struct {
	flows        registry.FlowRegistry
	contacts     storage.ContactStore
	messages     storage.MessageStore
	messenger    Messenger
	responder    Responder
	logger       *zap.Logger
	historyLimit int
}

// NewEngineService creates a flow engine.
func NewEngineService(flows registry.FlowRegistry, contacts storage.ContactStore, messages storage.MessageStore, messenger Messenger, responder Responder, logger *zap.Logger) *EngineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineService{
		flows:        flows,
		contacts:     contacts,
		messages:     messages,
		messenger:    messenger,
		responder:    responder,
		logger:       logger,
		historyLimit: defaultHistoryLimit,
	}
}

// HandleInbound processes one inbound message from a phone number. Unknown
// senders are registered as new contacts tagged "new_lead". When no flow is
// active the message is logged and nothing else happens.
func (s *EngineService) HandleInbound(ctx context.Context, fromNumber, text string) error {
	contact, err := s.contacts.GetContactByPhone(fromNumber)
	if errors.Is(err, storage.ErrContactNotFound) {
		now := time.Now().UTC()
		contact = models.Contact{
			ID:          uuid.New().String(),
			Name:        "WA " + fromNumber,
			PhoneNumber: fromNumber,
			Tags:        []string{"new_lead"},
			CreatedAt:   now,
			LastActive:  now,
		}
		if err := s.contacts.SaveContact(contact); err != nil {
			return fmt.Errorf("failed to register contact: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to look up contact: %w", err)
	}

	if err := s.logMessage(contact, models.DirectionInbound, text); err != nil {
		return err
	}

	flow, err := s.flows.GetActive()
	if errors.Is(err, storage.ErrNoActiveFlow) {
		s.logger.Warn("no active flow for inbound message", zap.String("from", fromNumber))
		return nil
	}
	if err != nil {
		return err
	}

	node, ok := s.resolveNode(flow.FlowData, contact.CurrentFlowNodeID)
	if !ok {
		s.logger.Error("active flow has no trigger node",
			zap.String("flow_id", flow.ID), zap.String("flow_name", flow.Name))
		return nil
	}

	return s.executeNode(ctx, contact, node, flow.FlowData)
}

// resolveNode locates the contact's current node. When the contact has none
// (or it no longer exists) it falls back to the trigger node: the node no
// edge targets.
func (s *EngineService) resolveNode(data models.GraphData, currentID string) (models.Node, bool) {
	if currentID != "" {
		for _, n := range data.Nodes {
			if n.ID == currentID {
				return n, true
			}
		}
	}

	targeted := make(map[string]bool, len(data.Edges))
	for _, e := range data.Edges {
		targeted[e.Target] = true
	}
	for _, n := range data.Nodes {
		if !targeted[n.ID] {
			return n, true
		}
	}
	return models.Node{}, false
}

func (s *EngineService) executeNode(ctx context.Context, contact models.Contact, node models.Node, data models.GraphData) error {
	var reply string

	switch node.Type {
	case models.NodeTextMessage:
		reply, _ = node.Data["message"].(string)
		s.logger.Info("executing textMessage node", zap.String("node_id", node.ID))

	case models.NodeAIResponse:
		s.logger.Info("executing aiResponse node", zap.String("node_id", node.ID))
		history, err := s.chatHistory(contact.ID)
		if err != nil {
			return err
		}
		prompt, _ := node.Data["prompt"].(string)
		reply, err = s.responder.Respond(ctx, prompt, history)
		if err != nil {
			return fmt.Errorf("responder failed for node %q: %w", node.ID, err)
		}

	default:
		s.logger.Warn("skipping node of unknown type",
			zap.String("node_id", node.ID), zap.String("type", node.Type))
	}

	if reply != "" {
		if err := s.messenger.SendMessage(ctx, contact.PhoneNumber, reply); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
		if err := s.logMessage(contact, models.DirectionOutbound, reply); err != nil {
			return err
		}
	}

	next := ""
	for _, e := range data.Edges {
		if e.Source == node.ID {
			next = e.Target
			break
		}
	}

	s.logger.Info("advancing contact",
		zap.String("contact_id", contact.ID),
		zap.String("from_node", contact.CurrentFlowNodeID),
		zap.String("to_node", next))

	contact.CurrentFlowNodeID = next
	contact.LastActive = time.Now().UTC()
	if err := s.contacts.SaveContact(contact); err != nil {
		return fmt.Errorf("failed to advance contact: %w", err)
	}
	return nil
}

// chatHistory returns the contact's recent messages as responder turns,
// oldest first.
func (s *EngineService) chatHistory(contactID string) ([]ChatMessage, error) {
	logs, err := s.messages.ListMessagesByContact(contactID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	history := make([]ChatMessage, len(logs))
	for i, m := range logs {
		role := "assistant"
		if m.Direction == models.DirectionInbound {
			role = "user"
		}
		history[i] = ChatMessage{Role: role, Content: m.Text}
	}
	return history, nil
}

func (s *EngineService) logMessage(contact models.Contact, direction, text string) error {
	msg := models.MessageLog{
		ID:         uuid.New().String(),
		ContactID:  contact.ID,
		FromNumber: contact.PhoneNumber,
		Direction:  direction,
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.messages.SaveMessage(msg); err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}
