package transcript

import (
	"fmt"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment references externally stored content. The blob itself is owned
// by the backend; the transcript only keeps the pointer.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	URL  string         `json:"url,omitempty"`
	Name string         `json:"name,omitempty"`
}

// Message is one turn in a conversation. While Pending is true the content
// is still being streamed and may only grow by appended deltas.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Pending    bool        `json:"pending,omitempty"`
}

// RetrievalInfo is auxiliary metadata about knowledge retrieval for the most
// recent assistant turn.
type RetrievalInfo struct {
	RAGEnabled bool `json:"ragEnabled"`
	NodeCount  int  `json:"nodeCount"`
}

// Transcript is the ordered message sequence for one session. At most one
// trailing message may be pending at any time.
type Transcript struct {
	mu        sync.RWMutex
	messages  []Message
	pending   *Pending
	retrieval *RetrievalInfo
}

// Pending is a handle to the single in-flight assistant message. All of its
// methods become no-ops once the handle is detached (finalized, truncated
// away, or superseded), which is what makes late stream callbacks harmless.
type Pending struct {
	t   *Transcript
	idx int
}

func New() *Transcript {
	return &Transcript{}
}

// AppendUser appends a finalized user turn. It refuses to interleave with an
// open assistant stream; the caller must cancel or finalize first.
func (t *Transcript) AppendUser(content string, att *Attachment) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		return fmt.Errorf("cannot append user message while a response is streaming")
	}
	t.messages = append(t.messages, Message{
		Role:       RoleUser,
		Content:    content,
		Attachment: att,
	})
	return nil
}

// BeginAssistant opens the pending assistant message and returns its handle.
func (t *Transcript) BeginAssistant() (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		return nil, fmt.Errorf("a response is already streaming")
	}
	if n := len(t.messages); n == 0 || t.messages[n-1].Role != RoleUser {
		return nil, fmt.Errorf("assistant turn must follow a user turn")
	}
	t.messages = append(t.messages, Message{Role: RoleAssistant, Pending: true})
	t.pending = &Pending{t: t, idx: len(t.messages) - 1}
	return t.pending, nil
}

// Append adds a delta to the pending message content. No-op if detached.
func (p *Pending) Append(delta string) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()

	if p.t.pending != p {
		return
	}
	p.t.messages[p.idx].Content += delta
}

// SetContent replaces the pending message content wholesale. Used only for
// error substitution; regular streaming always appends. No-op if detached.
func (p *Pending) SetContent(content string) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()

	if p.t.pending != p {
		return
	}
	p.t.messages[p.idx].Content = content
}

// Finalize marks the message complete and detaches the handle. Returns the
// final content and true the first time, false if already detached.
func (p *Pending) Finalize() (string, bool) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()

	if p.t.pending != p {
		return "", false
	}
	p.t.messages[p.idx].Pending = false
	p.t.pending = nil
	return p.t.messages[p.idx].Content, true
}

// Content returns the pending content accumulated so far.
func (p *Pending) Content() string {
	p.t.mu.RLock()
	defer p.t.mu.RUnlock()

	if p.t.pending != p {
		return ""
	}
	return p.t.messages[p.idx].Content
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// History returns role/content pairs for every message, the shape sent to
// the backend with a new turn.
func (t *Transcript) History() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// TruncateFrom removes the message at index and everything after it,
// detaching the pending handle if it falls in the removed range. Used by
// edit-and-resend.
func (t *Transcript) TruncateFrom(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.messages) {
		return fmt.Errorf("truncate index %d out of range [0,%d)", index, len(t.messages))
	}
	if t.pending != nil && t.pending.idx >= index {
		t.pending = nil
	}
	t.messages = t.messages[:index]
	t.retrieval = nil
	return nil
}

// Message returns the message at index.
func (t *Transcript) Message(index int) (Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index < 0 || index >= len(t.messages) {
		return Message{}, fmt.Errorf("message index %d out of range [0,%d)", index, len(t.messages))
	}
	return t.messages[index], nil
}

// Load replaces the transcript with stored history. Replayed messages are
// never pending, and stored history is allowed to violate the send-path
// alternation rule.
func (t *Transcript) Load(messages []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = make([]Message, len(messages))
	copy(t.messages, messages)
	for i := range t.messages {
		t.messages[i].Pending = false
	}
	t.pending = nil
	t.retrieval = nil
}

// Reset clears the transcript for a fresh session.
func (t *Transcript) Reset() {
	t.Load(nil)
}

func (t *Transcript) SetRetrieval(info RetrievalInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retrieval = &info
}

func (t *Transcript) Retrieval() *RetrievalInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.retrieval == nil {
		return nil
	}
	info := *t.retrieval
	return &info
}
