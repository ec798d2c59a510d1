package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// MemoryProvider implements StorageProvider with in-memory maps. Useful for
// development and tests.
type MemoryProvider struct {
	flowStore    *MemoryFlowStore
	contactStore *MemoryContactStore
	messageStore *MemoryMessageStore
}

// NewMemoryProvider creates a new in-memory storage provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		flowStore:    NewMemoryFlowStore(),
		contactStore: NewMemoryContactStore(),
		messageStore: NewMemoryMessageStore(),
	}
}

// Initialize sets up the storage backend.
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources.
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetFlowStore returns a store for conversation flows.
func (p *MemoryProvider) GetFlowStore() FlowStore {
	return p.flowStore
}

// GetContactStore returns a store for contacts.
func (p *MemoryProvider) GetContactStore() ContactStore {
	return p.contactStore
}

// GetMessageStore returns a store for message logs.
func (p *MemoryProvider) GetMessageStore() MessageStore {
	return p.messageStore
}

// MemoryFlowStore implements FlowStore using an in-memory map.
type MemoryFlowStore struct {
	flows map[string]models.Flow
	order []string
	mu    sync.RWMutex
}

// NewMemoryFlowStore creates a new in-memory flow store.
func NewMemoryFlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{flows: make(map[string]models.Flow)}
}

// SaveFlow inserts or replaces a flow.
func (s *MemoryFlowStore) SaveFlow(flow models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[flow.ID]; !ok {
		s.order = append(s.order, flow.ID)
	}
	s.flows[flow.ID] = flow
	return nil
}

// GetFlow retrieves a flow by id.
func (s *MemoryFlowStore) GetFlow(flowID string) (models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[flowID]
	if !ok {
		return models.Flow{}, ErrFlowNotFound
	}
	return flow, nil
}

// ListFlows returns all flows in insertion order.
func (s *MemoryFlowStore) ListFlows() ([]models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Flow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.flows[id])
	}
	return out, nil
}

// DeleteFlow removes a flow.
func (s *MemoryFlowStore) DeleteFlow(flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[flowID]; !ok {
		return ErrFlowNotFound
	}
	delete(s.flows, flowID)
	for i, id := range s.order {
		if id == flowID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetActiveFlow returns the flow marked active.
func (s *MemoryFlowStore) GetActiveFlow() (models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if s.flows[id].IsActive {
			return s.flows[id], nil
		}
	}
	return models.Flow{}, ErrNoActiveFlow
}

// DeactivateOthers clears is_active on every flow except flowID.
func (s *MemoryFlowStore) DeactivateOthers(flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, flow := range s.flows {
		if id != flowID && flow.IsActive {
			flow.IsActive = false
			s.flows[id] = flow
		}
	}
	return nil
}

// MemoryContactStore implements ContactStore using in-memory maps.
type MemoryContactStore struct {
	contacts map[string]models.Contact
	byPhone  map[string]string
	order    []string
	mu       sync.RWMutex
}

// NewMemoryContactStore creates a new in-memory contact store.
func NewMemoryContactStore() *MemoryContactStore {
	return &MemoryContactStore{
		contacts: make(map[string]models.Contact),
		byPhone:  make(map[string]string),
	}
}

// SaveContact inserts or replaces a contact.
func (s *MemoryContactStore) SaveContact(contact models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[contact.ID]; !ok {
		s.order = append(s.order, contact.ID)
	}
	s.contacts[contact.ID] = contact
	s.byPhone[contact.PhoneNumber] = contact.ID
	return nil
}

// GetContact retrieves a contact by id.
func (s *MemoryContactStore) GetContact(contactID string) (models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[contactID]
	if !ok {
		return models.Contact{}, ErrContactNotFound
	}
	return contact, nil
}

// GetContactByPhone retrieves a contact by phone number.
func (s *MemoryContactStore) GetContactByPhone(phoneNumber string) (models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPhone[phoneNumber]
	if !ok {
		return models.Contact{}, ErrContactNotFound
	}
	return s.contacts[id], nil
}

// ListContacts returns contacts, optionally filtered by tags.
func (s *MemoryContactStore) ListContacts(tags []string) ([]models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Contact, 0, len(s.order))
	for _, id := range s.order {
		contact := s.contacts[id]
		if len(tags) == 0 || hasAnyTag(contact.Tags, tags) {
			out = append(out, contact)
		}
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// MemoryMessageStore implements MessageStore using an in-memory slice.
type MemoryMessageStore struct {
	messages []models.MessageLog
	mu       sync.RWMutex
}

// NewMemoryMessageStore creates a new in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

// SaveMessage appends a message log entry.
func (s *MemoryMessageStore) SaveMessage(msg models.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// ListMessagesByContact returns up to limit most recent messages for a
// contact, oldest first.
func (s *MemoryMessageStore) ListMessagesByContact(contactID string, limit int) ([]models.MessageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MessageLog
	for _, m := range s.messages {
		if m.ContactID == contactID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CountMessages returns the number of logged messages with the direction.
func (s *MemoryMessageStore) CountMessages(direction string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages {
		if m.Direction == direction {
			count++
		}
	}
	return count, nil
}

// ListMessagesSince returns every message logged at or after t.
func (s *MemoryMessageStore) ListMessagesSince(t time.Time) ([]models.MessageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MessageLog
	for _, m := range s.messages {
		if !m.Timestamp.Before(t) {
			out = append(out, m)
		}
	}
	return out, nil
}

// DeleteMessagesBefore removes messages older than t.
func (s *MemoryMessageStore) DeleteMessagesBefore(t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.messages[:0]
	dropped := 0
	for _, m := range s.messages {
		if m.Timestamp.Before(t) {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	return dropped, nil
}
