// Package storage provides interfaces and backends for persisting flows,
// contacts, and message logs.
package storage

import (
	"errors"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// Errors returned by storage backends.
var (
	ErrFlowNotFound    = errors.New("flow not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrNoActiveFlow    = errors.New("no active flow")
)

// StorageProvider defines the interface for persistence backends.
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetFlowStore returns a store for conversation flows
	GetFlowStore() FlowStore

	// GetContactStore returns a store for contacts
	GetContactStore() ContactStore

	// GetMessageStore returns a store for message logs
	GetMessageStore() MessageStore
}

// FlowStore manages flow persistence. Callers assign flow ids before saving.
type FlowStore interface {
	// SaveFlow inserts or replaces a flow
	SaveFlow(flow models.Flow) error

	// GetFlow retrieves a flow by id
	GetFlow(flowID string) (models.Flow, error)

	// ListFlows returns all flows
	ListFlows() ([]models.Flow, error)

	// DeleteFlow removes a flow
	DeleteFlow(flowID string) error

	// GetActiveFlow returns the flow marked active
	GetActiveFlow() (models.Flow, error)

	// DeactivateOthers clears is_active on every flow except flowID
	DeactivateOthers(flowID string) error
}

// ContactStore manages contact persistence.
type ContactStore interface {
	// SaveContact inserts or replaces a contact
	SaveContact(contact models.Contact) error

	// GetContact retrieves a contact by id
	GetContact(contactID string) (models.Contact, error)

	// GetContactByPhone retrieves a contact by phone number
	GetContactByPhone(phoneNumber string) (models.Contact, error)

	// ListContacts returns all contacts; when tags is non-empty only
	// contacts carrying at least one of the tags are returned
	ListContacts(tags []string) ([]models.Contact, error)
}

// MessageStore manages message log persistence.
type MessageStore interface {
	// SaveMessage appends a message log entry
	SaveMessage(msg models.MessageLog) error

	// ListMessagesByContact returns up to limit most recent messages for a
	// contact, oldest first
	ListMessagesByContact(contactID string, limit int) ([]models.MessageLog, error)

	// CountMessages returns the number of logged messages with the given
	// direction
	CountMessages(direction string) (int, error)

	// ListMessagesSince returns every message logged at or after t
	ListMessagesSince(t time.Time) ([]models.MessageLog, error)

	// DeleteMessagesBefore removes messages older than t and reports how
	// many were dropped
	DeleteMessagesBefore(t time.Time) (int, error)
}
