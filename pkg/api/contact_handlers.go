package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// handleCreateContact registers a new contact. Phone numbers must be E.164
// and unique.
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var input models.ContactCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := s.contacts.GetContactByPhone(input.PhoneNumber)
	if err == nil {
		writeError(w, http.StatusBadRequest, "Contact with this phone number already exists.")
		return
	}
	if !errors.Is(err, storage.ErrContactNotFound) {
		s.logger.Error("failed to check contact", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}

	now := time.Now().UTC()
	contact := models.Contact{
		ID:          uuid.New().String(),
		Name:        input.Name,
		PhoneNumber: input.PhoneNumber,
		Tags:        input.Tags,
		CreatedAt:   now,
		LastActive:  now,
	}
	if contact.Tags == nil {
		contact.Tags = []string{}
	}

	if err := s.contacts.SaveContact(contact); err != nil {
		s.logger.Error("failed to save contact", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create contact")
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

// handleListContacts returns all contacts.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.ListContacts(nil)
	if err != nil {
		s.logger.Error("failed to list contacts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list contacts")
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}
