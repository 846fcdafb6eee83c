package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/backend"
	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/redis"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/stream"
	"github.com/phoebe-ai/phoebe-client/internal/services/transcript"
)

const (
	defaultTitle     = "新对话"
	titleRunes       = 40
	saveDebounce     = time.Second
	displayImage     = "[图片]"
	displayAudio     = "[语音]"
	displayFileFmt   = "[文件: %s]"
	multimodalPrompt = "请分析这个内容"
)

var ErrNoActiveStream = errors.New("session: no active stream")

// Input is one user turn. At most one attachment payload may be set; the
// input type is derived from which one is present.
type Input struct {
	Text string

	ImageBase64   string
	ImageMimeType string
	AudioBase64   string
	AudioFormat   string
	FileContent   string
	FileName      string
}

// Service owns the active conversation: the transcript, the in-flight
// stream, session persistence and the debounced auto-save.
type Service struct {
	mu      sync.Mutex
	backend *backend.Service
	cache   *redis.Service // nil when Redis is unconfigured

	transcript *transcript.Transcript
	sessionID  string
	title      string
	topic      string
	enableRAG  bool

	pending   *transcript.Pending
	cancel    context.CancelFunc
	saveTimer *time.Timer

	onUpdate func()
}

// NewService starts with an empty, unsaved conversation. onUpdate fires on
// every transcript mutation so the UI push layer can fan it out; it may be
// nil.
func NewService(b *backend.Service, cache *redis.Service, onUpdate func()) *Service {
	logger.Info(logger.SESSION, "Initialising session service")
	return &Service{
		backend:    b,
		cache:      cache,
		transcript: transcript.New(),
		title:      defaultTitle,
		onUpdate:   onUpdate,
	}
}

// NewSessionID mints a client-side session identifier. The backend treats
// it as opaque.
func NewSessionID() string {
	return fmt.Sprintf("session-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:9])
}

func (s *Service) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Service) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Service) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

func (s *Service) SetTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
}

func (s *Service) RAGEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enableRAG
}

func (s *Service) SetRAGEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableRAG = enabled
}

func (s *Service) Transcript() *transcript.Transcript {
	return s.transcript
}

// Send runs one complete chat turn: append the user message, open the
// stream, consume it to the end and return the final assistant content.
// A still-running previous turn is aborted first; its partial content is
// finalized as-is.
func (s *Service) Send(ctx context.Context, input Input) (string, error) {
	display, attachment, inputType := describeInput(input)
	if strings.TrimSpace(display) == "" {
		return "", errors.New("session: empty message")
	}

	s.mu.Lock()
	s.abortLocked()

	if s.sessionID == "" {
		s.sessionID = NewSessionID()
		logger.Info(logger.SESSION, "Started session %s", s.sessionID)
	}

	history := historyEntries(s.transcript.History())

	if err := s.transcript.AppendUser(display, attachment); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.title == defaultTitle {
		s.title = deriveTitle(display)
	}

	pending, err := s.transcript.BeginAssistant()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.pending = pending

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	req := backend.StreamRequest{
		SessionID: s.sessionID,
		Message:   input.Text,
		Topic:     s.topic,
		EnableRAG: s.enableRAG,
		History:   history,
		InputType: inputType,

		ImageBase64:   input.ImageBase64,
		ImageMimeType: input.ImageMimeType,
		AudioBase64:   input.AudioBase64,
		AudioFormat:   input.AudioFormat,
		FileContent:   input.FileContent,
		FileName:      input.FileName,
	}
	// The backend requires a non-empty message even for attachment-only
	// turns; fall back to a generic analysis prompt.
	if inputType != "text" && req.Message == "" {
		req.Message = multimodalPrompt
	}
	s.mu.Unlock()

	asm := stream.NewAssembler(pending, s.transcript.SetRetrieval, s.notify)

	body, err := s.backend.OpenStream(streamCtx, req)
	if err != nil {
		asm.Fail()
		s.turnDone(pending, cancel)
		return s.lastAssistantContent(), err
	}
	defer body.Close()

	consumeErr := asm.Consume(body)
	s.turnDone(pending, cancel)
	return s.lastAssistantContent(), consumeErr
}

// Cancel aborts the in-flight stream, if any. The partial assistant content
// is kept and finalized; late chunks from the aborted stream are inert.
func (s *Service) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return ErrNoActiveStream
	}
	s.abortLocked()
	return nil
}

// EditResend rewrites a user message: every message from that index on is
// discarded and the new text is sent as a fresh turn.
func (s *Service) EditResend(ctx context.Context, index int, text string) (string, error) {
	s.mu.Lock()
	msg, err := s.transcript.Message(index)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	if msg.Role != transcript.RoleUser {
		s.mu.Unlock()
		return "", fmt.Errorf("session: message %d is not a user message", index)
	}

	s.abortLocked()
	if err := s.transcript.TruncateFrom(index); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.mu.Unlock()

	s.notify()
	return s.Send(ctx, Input{Text: text})
}

// NewSession abandons the current conversation and starts an empty one. The
// session ID is minted lazily on the first send.
func (s *Service) NewSession() {
	s.mu.Lock()
	s.abortLocked()
	s.stopSaveLocked()
	s.transcript.Reset()
	s.sessionID = ""
	s.title = defaultTitle
	s.topic = ""
	s.mu.Unlock()
	s.notify()
}

// Select switches to a stored session, preferring the cache when available.
func (s *Service) Select(ctx context.Context, sessionID string) error {
	var record *backend.SessionRecord
	if s.cache != nil {
		record = s.cache.CachedSession(ctx, sessionID)
	}
	if record == nil {
		fetched, err := s.backend.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		record = fetched
		if s.cache != nil {
			s.cache.CacheSession(ctx, *record)
		}
	}

	s.mu.Lock()
	s.abortLocked()
	s.stopSaveLocked()
	s.sessionID = record.SessionID
	s.title = record.Title
	if s.title == "" {
		s.title = defaultTitle
	}
	s.topic = record.Topic
	s.transcript.Load(transcriptMessages(record.Messages))
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Service) List(ctx context.Context) ([]backend.SessionRecord, error) {
	return s.backend.ListSessions(ctx)
}

func (s *Service) Rename(ctx context.Context, sessionID, title string) error {
	if err := s.backend.RenameSession(ctx, sessionID, title); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.EvictSession(ctx, sessionID)
	}
	s.mu.Lock()
	if s.sessionID == sessionID {
		s.title = title
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := s.backend.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.EvictSession(ctx, sessionID)
	}
	s.mu.Lock()
	if s.sessionID == sessionID {
		s.abortLocked()
		s.stopSaveLocked()
		s.transcript.Reset()
		s.sessionID = ""
		s.title = defaultTitle
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// ExportNote turns one assistant message into an inspiration note.
func (s *Service) ExportNote(ctx context.Context, index int, title, comment string, tags []string) (*backend.Note, error) {
	msg, err := s.transcript.Message(index)
	if err != nil {
		return nil, err
	}
	if msg.Role != transcript.RoleAssistant || msg.Pending {
		return nil, fmt.Errorf("session: message %d is not a finalized assistant message", index)
	}

	if title == "" {
		title = deriveTitle(msg.Content)
	}
	return s.backend.CreateNote(ctx, backend.Note{
		Title:   title,
		Content: msg.Content,
		Comment: comment,
		Source:  s.Title(),
		Tags:    tags,
	})
}

// Flush persists the current session immediately, bypassing the debounce.
// Used on shutdown.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	s.stopSaveLocked()
	s.mu.Unlock()
	s.save(ctx)
}

func (s *Service) abortLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.pending != nil {
		// Finalize detaches the handle, so anything the dying stream still
		// feeds it is dropped.
		s.pending.Finalize()
		s.pending = nil
	}
}

// turnDone clears the stream state if it still belongs to this turn. A
// concurrent abort may already have replaced it.
func (s *Service) turnDone(pending *transcript.Pending, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	if s.pending == pending {
		s.pending = nil
		s.cancel = nil
	}
	s.scheduleSaveLocked()
	s.mu.Unlock()
}

func (s *Service) lastAssistantContent() string {
	n := s.transcript.Len()
	if n == 0 {
		return ""
	}
	msg, err := s.transcript.Message(n - 1)
	if err != nil || msg.Role != transcript.RoleAssistant {
		return ""
	}
	return msg.Content
}

func (s *Service) scheduleSaveLocked() {
	if s.sessionID == "" {
		return
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(saveDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.save(ctx)
	})
}

func (s *Service) stopSaveLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
}

func (s *Service) save(ctx context.Context) {
	s.mu.Lock()
	if s.sessionID == "" {
		s.mu.Unlock()
		return
	}
	record := backend.SessionRecord{
		SessionID: s.sessionID,
		Title:     s.title,
		Topic:     s.topic,
		Messages:  historyEntries(s.transcript.History()),
	}
	s.mu.Unlock()

	saved, err := s.backend.SaveSession(ctx, record)
	if err != nil {
		logger.Warn(logger.SESSION, "Auto-save failed for %s: %v", record.SessionID, err)
		return
	}
	if s.cache != nil {
		s.cache.CacheSession(ctx, *saved)
	}
}

func (s *Service) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

// describeInput derives the transcript display text, the attachment record
// and the wire input type from which payload is present.
func describeInput(in Input) (display string, att *transcript.Attachment, inputType string) {
	switch {
	case in.ImageBase64 != "":
		att = &transcript.Attachment{Kind: transcript.AttachmentImage}
		display = strings.TrimSpace(displayImage + " " + in.Text)
		return display, att, "image"
	case in.AudioBase64 != "":
		att = &transcript.Attachment{Kind: transcript.AttachmentAudio}
		display = in.Text
		if display == "" {
			display = displayAudio
		}
		return display, att, "audio"
	case in.FileContent != "":
		att = &transcript.Attachment{Kind: transcript.AttachmentFile, Name: in.FileName}
		display = strings.TrimSpace(fmt.Sprintf(displayFileFmt, in.FileName) + " " + in.Text)
		return display, att, "file"
	default:
		return in.Text, nil, "text"
	}
}

// deriveTitle truncates the first user message to a rune budget, matching
// the list view.
func deriveTitle(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return defaultTitle
	}
	if len(runes) <= titleRunes {
		return string(runes)
	}
	return string(runes[:titleRunes]) + "..."
}

func historyEntries(messages []transcript.Message) []backend.HistoryEntry {
	entries := make([]backend.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, backend.HistoryEntry{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return entries
}

func transcriptMessages(entries []backend.HistoryEntry) []transcript.Message {
	messages := make([]transcript.Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, transcript.Message{
			Role:    transcript.Role(e.Role),
			Content: e.Content,
		})
	}
	return messages
}
