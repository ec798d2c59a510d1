package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/models"
	"github.com/chatflow-ai/chatflow/pkg/registry"
)

// handleListFlows handles listing flows.
func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.flowRegistry.List()
	if err != nil {
		s.logger.Error("failed to list flows", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list flows")
		return
	}
	if flows == nil {
		flows = []models.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

// handleCreateFlow handles flow creation.
func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var input models.FlowCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flow, err := s.flowRegistry.Create(input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.hub.Publish(FlowEvent{Type: FlowCreated, FlowID: flow.ID, Name: flow.Name})
	writeJSON(w, http.StatusCreated, flow)
}

// handleGetFlow handles retrieving a flow.
func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	flow, err := s.flowRegistry.Get(id)
	switch {
	case errors.Is(err, registry.ErrInvalidFlowID):
		writeError(w, http.StatusBadRequest, "Invalid flow ID")
	case errors.Is(err, registry.ErrFlowNotFound):
		writeError(w, http.StatusNotFound, "Flow not found")
	case err != nil:
		s.logger.Error("failed to get flow", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get flow")
	default:
		writeJSON(w, http.StatusOK, flow)
	}
}

// handleUpdateFlow handles updating a flow.
func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch models.FlowPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flow, err := s.flowRegistry.Update(id, patch)
	switch {
	case errors.Is(err, registry.ErrInvalidFlowID):
		writeError(w, http.StatusBadRequest, "Invalid flow ID")
	case errors.Is(err, registry.ErrEmptyPatch):
		writeError(w, http.StatusBadRequest, "No update data provided.")
	case errors.Is(err, registry.ErrFlowNotFound):
		writeError(w, http.StatusNotFound, "Flow not found")
	case err != nil:
		s.logger.Error("failed to update flow", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update flow")
	default:
		s.hub.Publish(FlowEvent{Type: FlowUpdated, FlowID: flow.ID, Name: flow.Name})
		writeJSON(w, http.StatusOK, flow)
	}
}

// handleDeleteFlow handles deleting a flow.
func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := s.flowRegistry.Delete(id)
	switch {
	case errors.Is(err, registry.ErrInvalidFlowID):
		writeError(w, http.StatusBadRequest, "Invalid flow ID")
	case errors.Is(err, registry.ErrFlowNotFound):
		writeError(w, http.StatusNotFound, "Flow not found")
	case err != nil:
		s.logger.Error("failed to delete flow", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete flow")
	default:
		s.hub.Publish(FlowEvent{Type: FlowDeleted, FlowID: id})
		w.WriteHeader(http.StatusNoContent)
	}
}
