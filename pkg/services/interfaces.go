// Package services contains the application services behind the HTTP API:
// the inbound-message flow engine, broadcast fan-out, dashboard aggregation,
// and message-log retention.
package services

import "context"

// Messenger delivers outbound messages to a contact's phone number.
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
}

// ChatMessage is one turn of conversation history handed to a Responder.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Responder produces an AI reply for a prompt given recent history.
type Responder interface {
	Respond(ctx context.Context, prompt string, history []ChatMessage) (string, error)
}
