package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/backend"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/session"
	"github.com/phoebe-ai/phoebe-client/pkg/httpext"
)

type ExportNoteRequest struct {
	Index   int      `json:"index"`
	Title   string   `json:"title,omitempty"`
	Comment string   `json:"comment,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// HandleExportNote saves an assistant message as an inspiration note.
func HandleExportNote(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	var req ExportNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	note, err := sessionService.ExportNote(r.Context(), req.Index, req.Title, req.Comment, req.Tags)
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to export note: %v", err)
		httpext.JsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// HandleListTags proxies the tag list for the note editor.
func HandleListTags(backendService *backend.Service, w http.ResponseWriter, r *http.Request) {
	tags, err := backendService.ListTags(r.Context())
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to list tags: %v", err)
		httpext.JsonError(w, "Failed to list tags", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
