package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListSessions returns the caller's session records, most recently updated
// first.
func (s *Service) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	var records []SessionRecord
	if err := s.doJSON(ctx, http.MethodGet, "/api/v1/chat/sessions/list", nil, &records); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}

// GetSession fetches one session record with its messages.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var record SessionRecord
	path := "/api/v1/chat/sessions/" + url.PathEscape(sessionID)
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &record); err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", sessionID, err)
	}
	return &record, nil
}

// SaveSession upserts a session record and returns the stored copy.
func (s *Service) SaveSession(ctx context.Context, record SessionRecord) (*SessionRecord, error) {
	var saved SessionRecord
	if err := s.doJSON(ctx, http.MethodPost, "/api/v1/chat/sessions", record, &saved); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", record.SessionID, err)
	}
	return &saved, nil
}

// RenameSession updates only the session title.
func (s *Service) RenameSession(ctx context.Context, sessionID, title string) error {
	path := "/api/v1/chat/sessions/" + url.PathEscape(sessionID) + "/title"
	body := map[string]string{"title": title}
	if err := s.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("failed to rename session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	path := "/api/v1/chat/sessions/" + url.PathEscape(sessionID)
	if err := s.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}
