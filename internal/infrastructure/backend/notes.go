package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreateNote stores an inspiration note exported from the chat.
func (s *Service) CreateNote(ctx context.Context, note Note) (*Note, error) {
	if err := s.validate.Struct(note); err != nil {
		return nil, fmt.Errorf("invalid note: %w", err)
	}

	var saved Note
	if err := s.postJSON(ctx, "/api/v1/notes", note, &saved); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return &saved, nil
}

func (s *Service) ListNotes(ctx context.Context) ([]Note, error) {
	var notes []Note
	if err := s.doJSON(ctx, http.MethodGet, "/api/v1/notes", nil, &notes); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (s *Service) DeleteNote(ctx context.Context, noteID string) error {
	path := "/api/v1/notes/" + url.PathEscape(noteID)
	if err := s.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", noteID, err)
	}
	return nil
}

// ListTags returns tags sorted by usage, matching the profile view.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := s.doJSON(ctx, http.MethodGet, "/api/v1/tags?sort=usage", nil, &tags); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// Upload stores base64 content in the backend blob store and returns its URL.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid upload: %w", err)
	}

	var resp UploadResponse
	if err := s.postJSON(ctx, "/api/v1/uploads", req, &resp); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", req.Filename, err)
	}
	return resp.URL, nil
}
