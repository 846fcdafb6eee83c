package backend

import (
	"time"
)

// User mirrors the backend account record returned by login/register.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Token    string `json:"token,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required,min=6"`
	Nickname string `json:"nickname,omitempty"`
}

// HistoryEntry is the text-only role/content pair the backend accepts as
// conversation context. Multimodal payloads never enter history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest opens one chat turn against the streaming endpoint.
type StreamRequest struct {
	SessionID string         `json:"sessionId" validate:"required"`
	Message   string         `json:"message" validate:"required"`
	Topic     string         `json:"topic,omitempty"`
	EnableRAG bool           `json:"enableRag"`
	History   []HistoryEntry `json:"history"`
	InputType string         `json:"inputType" validate:"oneof=text image audio file"`

	// Attachment payloads, only for the current turn.
	ImageBase64   string `json:"imageBase64,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`
	AudioBase64   string `json:"audioBase64,omitempty"`
	AudioFormat   string `json:"audioFormat,omitempty"`
	FileContent   string `json:"fileContent,omitempty"`
	FileName      string `json:"fileName,omitempty"`
}

// SessionRecord is the persisted session shape owned by the backend.
type SessionRecord struct {
	ID        string         `json:"id,omitempty"`
	SessionID string         `json:"sessionId"`
	Title     string         `json:"title"`
	Topic     string         `json:"topic,omitempty"`
	Messages  []HistoryEntry `json:"messages,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt,omitempty"`
}

// Note is an inspiration record exported from an assistant message.
type Note struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content" validate:"required"`
	Comment string   `json:"comment,omitempty"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags"`
}

type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Usage int    `json:"usage,omitempty"`
}

type UploadRequest struct {
	Base64   string `json:"base64" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
	Filename string `json:"filename" validate:"required"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
