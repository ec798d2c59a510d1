package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// BroadcastRequest is the payload for the broadcast endpoint.
type BroadcastRequest struct {
	Message string   `json:"message" validate:"required,min=1"`
	Tags    []string `json:"tags"`
}

// WebhookMessage is one inbound message in a webhook payload.
type WebhookMessage struct {
	FromNumber string `json:"from"`
	Text       string `json:"body"`
}

// WebhookPayload is the body posted by the WhatsApp webhook.
type WebhookPayload struct {
	Messages []WebhookMessage `json:"messages"`
}

// handleBroadcast starts a background fan-out of a message to contacts,
// optionally filtered by tags. The response does not wait for delivery.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("received broadcast request", zap.Int("message_len", len(req.Message)))
	// Detached from the request context: delivery outlives the response.
	s.broadcast.Send(context.Background(), req.Message, req.Tags)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"message":    "Broadcast task started in background.",
		"total_sent": 0,
	})
}

// handleWhatsAppWebhook feeds an inbound message into the flow engine.
func (s *Server) handleWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(payload.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "No messages in payload")
		return
	}

	msg := payload.Messages[0]
	if err := s.engine.HandleInbound(r.Context(), msg.FromNumber, msg.Text); err != nil {
		s.logger.Error("failed to process inbound message",
			zap.String("from", msg.FromNumber), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"message_processed": true,
	})
}

// handleDashboardStats returns aggregated dashboard numbers.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.Stats()
	if err != nil {
		s.logger.Error("failed to compute dashboard stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to compute dashboard stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
