package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// BroadcastService fans a message out to contacts, optionally filtered by
// tags, logging each delivery.
type BroadcastService struct {
	contacts  storage.ContactStore
	messages  storage.MessageStore
	messenger Messenger
	logger    *zap.Logger
}

// NewBroadcastService creates a broadcast service.
func NewBroadcastService(contacts storage.ContactStore, messages storage.MessageStore, messenger Messenger, logger *zap.Logger) *BroadcastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BroadcastService{
		contacts:  contacts,
		messages:  messages,
		messenger: messenger,
		logger:    logger,
	}
}

// Send starts the broadcast in the background and returns immediately. The
// HTTP handler responds before the fan-out completes, mirroring the
// fire-and-forget semantics of the broadcast endpoint.
func (s *BroadcastService) Send(ctx context.Context, message string, tags []string) {
	go func() {
		sent := s.Run(ctx, message, tags)
		s.logger.Info("broadcast complete", zap.Int("sent", sent))
	}()
}

// Run performs the fan-out synchronously and returns how many messages were
// delivered. Per-contact failures are logged and skipped.
func (s *BroadcastService) Run(ctx context.Context, message string, tags []string) int {
	contacts, err := s.contacts.ListContacts(tags)
	if err != nil {
		s.logger.Error("broadcast failed to list contacts", zap.Error(err))
		return 0
	}

	sent := 0
	for _, contact := range contacts {
		if ctx.Err() != nil {
			s.logger.Warn("broadcast aborted", zap.Int("sent", sent))
			return sent
		}
		if err := s.messenger.SendMessage(ctx, contact.PhoneNumber, message); err != nil {
			s.logger.Error("failed to send broadcast message",
				zap.String("phone", contact.PhoneNumber), zap.Error(err))
			continue
		}
		log := models.MessageLog{
			ID:         uuid.New().String(),
			ContactID:  contact.ID,
			FromNumber: contact.PhoneNumber,
			Direction:  models.DirectionOutbound,
			Text:       "[BROADCAST] " + message,
			Timestamp:  time.Now().UTC(),
		}
		if err := s.messages.SaveMessage(log); err != nil {
			s.logger.Error("failed to log broadcast message", zap.Error(err))
		}
		sent++
	}
	return sent
}
