package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LogMessenger is a development Messenger that logs instead of sending.
type LogMessenger struct {
	Logger *zap.Logger
}

// SendMessage implements Messenger.
func (m *LogMessenger) SendMessage(_ context.Context, phoneNumber, text string) error {
	if m.Logger != nil {
		m.Logger.Info("mock whatsapp send",
			zap.String("to", phoneNumber), zap.String("body", text))
	}
	return nil
}

// EchoResponder is a development Responder that echoes the prompt back.
type EchoResponder struct{}

// Respond implements Responder.
func (EchoResponder) Respond(_ context.Context, prompt string, _ []ChatMessage) (string, error) {
	if prompt == "" {
		prompt = "..."
	}
	return fmt.Sprintf("This is a mocked AI response to your prompt: '%s'", prompt), nil
}
