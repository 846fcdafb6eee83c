package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/backend"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/pkg/httpext"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates against the backend and stores the token for
// all subsequent requests.
func HandleLogin(backendService *backend.Service, w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	user, err := backendService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.Error(logger.HANDLER, "Login failed for %s: %v", req.Username, err)
		httpext.JsonError(w, "Login failed", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleAuthStatus reports whether a usable token is stored.
func HandleAuthStatus(backendService *backend.Service, w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"authenticated": !backendService.TokenExpired(),
	}
	if user := backendService.User(); user != nil {
		resp["user"] = user
	}
	writeJSON(w, http.StatusOK, resp)
}
