package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/backend"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/session"
	"github.com/phoebe-ai/phoebe-client/pkg/httpext"
)

// SendRequest is one user turn as submitted by the UI.
type SendRequest struct {
	Message string `json:"message"`

	ImageBase64   string `json:"imageBase64,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`
	AudioBase64   string `json:"audioBase64,omitempty"`
	AudioFormat   string `json:"audioFormat,omitempty"`
	FileContent   string `json:"fileContent,omitempty"`
	FileName      string `json:"fileName,omitempty"`
}

type SendResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
}

// HandleChatSend runs one blocking chat turn. Streaming updates go out over
// the websocket; the HTTP response carries the final reply.
func HandleChatSend(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	logger.Debug(logger.HANDLER, "Starting chat send handler")

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error(logger.HANDLER, "Failed to decode send request: %v", err)
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	reply, err := sessionService.Send(r.Context(), session.Input{
		Text:          req.Message,
		ImageBase64:   req.ImageBase64,
		ImageMimeType: req.ImageMimeType,
		AudioBase64:   req.AudioBase64,
		AudioFormat:   req.AudioFormat,
		FileContent:   req.FileContent,
		FileName:      req.FileName,
	})
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			httpext.JsonError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Error(logger.HANDLER, "Chat turn failed: %v", err)
		// The transcript already carries the failure text; surface it with
		// the error status so the UI can decide what to show.
		writeJSON(w, http.StatusBadGateway, SendResponse{
			Reply:     reply,
			SessionID: sessionService.SessionID(),
			Title:     sessionService.Title(),
		})
		return
	}

	writeJSON(w, http.StatusOK, SendResponse{
		Reply:     reply,
		SessionID: sessionService.SessionID(),
		Title:     sessionService.Title(),
	})
}

// HandleChatCancel aborts the in-flight stream, keeping partial content.
func HandleChatCancel(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	if err := sessionService.Cancel(); err != nil {
		httpext.JsonError(w, "No active stream", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type EditRequest struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// HandleChatEdit rewrites a prior user message and resends it.
func HandleChatEdit(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error(logger.HANDLER, "Failed to decode edit request: %v", err)
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	reply, err := sessionService.EditResend(r.Context(), req.Index, req.Message)
	if err != nil {
		logger.Error(logger.HANDLER, "Edit-resend failed: %v", err)
		httpext.JsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, SendResponse{
		Reply:     reply,
		SessionID: sessionService.SessionID(),
		Title:     sessionService.Title(),
	})
}

type TranscriptResponse struct {
	SessionID string      `json:"sessionId"`
	Title     string      `json:"title"`
	Messages  interface{} `json:"messages"`
	Retrieval interface{} `json:"retrieval,omitempty"`
}

// HandleGetTranscript returns the full conversation snapshot.
func HandleGetTranscript(sessionService *session.Service, w http.ResponseWriter, r *http.Request) {
	resp := TranscriptResponse{
		SessionID: sessionService.SessionID(),
		Title:     sessionService.Title(),
		Messages:  sessionService.Transcript().Messages(),
	}
	if info := sessionService.Transcript().Retrieval(); info != nil {
		resp.Retrieval = info
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(logger.HANDLER, "Failed to encode response: %v", err)
	}
}
