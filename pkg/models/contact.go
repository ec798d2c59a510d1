package models

import "time"

// Message directions recorded in the message log.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Contact is a person the chatbot converses with. CurrentFlowNodeID tracks
// where the contact is inside the active flow; empty means the next inbound
// message starts from the flow's trigger node.
type Contact struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	PhoneNumber       string    `json:"phone_number"`
	Tags              []string  `json:"tags"`
	CurrentFlowNodeID string    `json:"current_flow_node_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastActive        time.Time `json:"last_active"`
}

// ContactCreate is the input for registering a contact.
type ContactCreate struct {
	Name        string   `json:"name" validate:"required,min=1"`
	PhoneNumber string   `json:"phone_number" validate:"required,e164"`
	Tags        []string `json:"tags"`
}

// MessageLog records a single inbound or outbound message.
type MessageLog struct {
	ID         string    `json:"id"`
	ContactID  string    `json:"contact_id"`
	FromNumber string    `json:"from_number"`
	Direction  string    `json:"direction"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}
