package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/session"
	"github.com/phoebe-ai/phoebe-client/pkg/httpext"
)

// HandleListSessions returns the stored session records.
func HandleListSessions(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	records, err := sessionService.List(r.Context())
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to list sessions: %v", err)
		httpext.JsonError(w, "Failed to list sessions", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type SelectRequest struct {
	SessionID string `json:"sessionId"`
}

// HandleSelectSession switches the active conversation to a stored session.
func HandleSelectSession(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := sessionService.Select(r.Context(), req.SessionID); err != nil {
		logger.Error(logger.HANDLER, "Failed to select session %s: %v", req.SessionID, err)
		httpext.JsonError(w, "Failed to load session", http.StatusBadGateway)
		return
	}

	HandleGetTranscript(sessionService, w, r)
}

// HandleNewSession abandons the current conversation.
func HandleNewSession(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	sessionService.NewSession()
	w.WriteHeader(http.StatusNoContent)
}

type RenameRequest struct {
	Title string `json:"title"`
}

// HandleRenameSession updates a session title.
func HandleRenameSession(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := sessionService.Rename(r.Context(), sessionID, req.Title); err != nil {
		logger.Error(logger.HANDLER, "Failed to rename session %s: %v", sessionID, err)
		httpext.JsonError(w, "Failed to rename session", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteSession removes a stored session.
func HandleDeleteSession(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := sessionService.Delete(r.Context(), sessionID); err != nil {
		logger.Error(logger.HANDLER, "Failed to delete session %s: %v", sessionID, err)
		httpext.JsonError(w, "Failed to delete session", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
