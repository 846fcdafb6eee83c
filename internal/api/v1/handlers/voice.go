package handlers

import (
	"net/http"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/voice"
	"github.com/phoebe-ai/phoebe-client/pkg/httpext"
)

// HandleVoiceEnter starts voice mode: the controller begins listening and
// phase changes stream out over the websocket.
func HandleVoiceEnter(controller *voice.Controller, w http.ResponseWriter, r *http.Request) {
	if err := controller.Enter(); err != nil {
		logger.Error(logger.HANDLER, "Failed to enter voice mode: %v", err)
		httpext.JsonError(w, "Voice mode unavailable", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"phase": string(controller.Phase()),
	})
}

// HandleVoiceExit leaves voice mode from any state.
func HandleVoiceExit(controller *voice.Controller, w http.ResponseWriter, r *http.Request) {
	controller.Exit()
	w.WriteHeader(http.StatusNoContent)
}

// HandleVoiceStatus reports the controller phase and the live transcript.
func HandleVoiceStatus(controller *voice.Controller, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"phase": string(controller.Phase()),
		"live":  controller.Live(),
	})
}
