package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/phoebe-ai/phoebe-client/internal/services/transcript"
)

func newPending(t *testing.T) (*transcript.Transcript, *transcript.Pending) {
	t.Helper()
	tr := transcript.New()
	if err := tr.AppendUser("question", nil); err != nil {
		t.Fatal(err)
	}
	p, err := tr.BeginAssistant()
	if err != nil {
		t.Fatal(err)
	}
	return tr, p
}

func assistantMessage(t *testing.T, tr *transcript.Transcript) transcript.Message {
	t.Helper()
	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	return msgs[1]
}

func TestAssemblerTokenConcatenation(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: token\ndata: {\"delta\":\"He\"}\n"))
	asm.Feed([]byte("event: token\ndata: {\"delta\":\"llo\"}\n"))
	asm.Close()

	msg := assistantMessage(t, tr)
	if msg.Content != "Hello" {
		t.Errorf("Expected content %q, got %q", "Hello", msg.Content)
	}
	if msg.Pending {
		t.Error("Message should be finalized after Close")
	}
	if asm.Accumulated() != "Hello" {
		t.Errorf("Accumulated() = %q, want %q", asm.Accumulated(), "Hello")
	}
}

func TestAssemblerNonJSONTokenFallback(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: token\ndata: plain text delta\n"))
	asm.Close()

	if got := assistantMessage(t, tr).Content; got != "plain text delta" {
		t.Errorf("Expected literal fallback %q, got %q", "plain text delta", got)
	}
}

func TestAssemblerTokenWithoutDelta(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: token\ndata: {\"other\":\"field\"}\n"))
	asm.Close()

	if got := assistantMessage(t, tr).Content; got != "" {
		t.Errorf("Valid JSON without delta should append nothing, got %q", got)
	}
}

func TestAssemblerServerError(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: token\ndata: {\"delta\":\"partial\"}\n"))
	asm.Feed([]byte("event: error\ndata: {\"error\":\"rate limited\"}\n"))

	msg := assistantMessage(t, tr)
	if msg.Content != "抱歉，发生错误：rate limited" {
		t.Errorf("Unexpected error content %q", msg.Content)
	}
	if msg.Pending {
		t.Error("Server error should finalize the message")
	}

	// The stream is terminal: later tokens and the transport close must
	// not touch the message again.
	asm.Feed([]byte("event: token\ndata: {\"delta\":\"late\"}\n"))
	asm.Close()
	if got := assistantMessage(t, tr).Content; got != "抱歉，发生错误：rate limited" {
		t.Errorf("Post-error event mutated content to %q", got)
	}
}

func TestAssemblerServerErrorWithoutText(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: error\ndata: {}\n"))

	if got := assistantMessage(t, tr).Content; got != "抱歉，发生错误：未知错误" {
		t.Errorf("Unexpected fallback error content %q", got)
	}
}

func TestAssemblerMalformedServerErrorDropped(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: token\ndata: {\"delta\":\"kept\"}\n"))
	asm.Feed([]byte("event: error\ndata: not json\n"))
	asm.Close()

	// Unlike tokens, malformed error payloads fall back to nothing: the
	// accumulated content stands.
	if got := assistantMessage(t, tr).Content; got != "kept" {
		t.Errorf("Expected accumulated content %q, got %q", "kept", got)
	}
}

func TestAssemblerRetrieval(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, tr.SetRetrieval, nil)

	asm.Feed([]byte("event: retrieval\ndata: {\"ragEnabled\":true,\"nodeCount\":4}\n"))
	asm.Feed([]byte("event: retrieval\ndata: broken\n"))
	asm.Close()

	info := tr.Retrieval()
	if info == nil || !info.RAGEnabled || info.NodeCount != 4 {
		t.Errorf("Unexpected retrieval info: %+v", info)
	}
	if got := assistantMessage(t, tr).Content; got != "" {
		t.Errorf("Retrieval events must not mutate content, got %q", got)
	}
}

func TestAssemblerUnknownEventIgnored(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)

	asm.Feed([]byte("event: usage\ndata: {\"tokens\":12}\n"))
	asm.Feed([]byte("event: token\ndata: {\"delta\":\"ok\"}\n"))
	asm.Close()

	if got := assistantMessage(t, tr).Content; got != "ok" {
		t.Errorf("Expected %q, got %q", "ok", got)
	}
}

func TestAssemblerCloseOnEmptyStream(t *testing.T) {
	tr, p := newPending(t)
	asm := NewAssembler(p, nil, nil)
	asm.Close()

	msg := assistantMessage(t, tr)
	if msg.Pending {
		t.Error("Close must finalize even when nothing was received")
	}
	if msg.Content != "" {
		t.Errorf("Expected empty content, got %q", msg.Content)
	}
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, errors.New("connection reset")
}

func TestAssemblerConsume(t *testing.T) {
	t.Run("normal end of stream", func(t *testing.T) {
		tr, p := newPending(t)
		asm := NewAssembler(p, nil, nil)

		body := strings.NewReader("event: token\ndata: {\"delta\":\"Hello\"}\n")
		if err := asm.Consume(body); err != nil {
			t.Fatalf("Consume returned error: %v", err)
		}
		msg := assistantMessage(t, tr)
		if msg.Content != "Hello" || msg.Pending {
			t.Errorf("Unexpected message after Consume: %+v", msg)
		}
	})

	t.Run("mid-stream failure", func(t *testing.T) {
		tr, p := newPending(t)
		asm := NewAssembler(p, nil, nil)

		err := asm.Consume(&failingReader{data: "event: token\ndata: {\"delta\":\"partial\"}\n"})
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("Expected TransportError, got %v", err)
		}

		msg := assistantMessage(t, tr)
		if msg.Content != "抱歉，我遇到了问题。请检查网络连接。" {
			t.Errorf("Unexpected failure content %q", msg.Content)
		}
		if msg.Pending {
			t.Error("Failure must finalize the message")
		}
	})
}

func TestAssemblerUpdateObserver(t *testing.T) {
	_, p := newPending(t)
	updates := 0
	asm := NewAssembler(p, nil, func() { updates++ })

	asm.Feed([]byte("event: token\ndata: {\"delta\":\"a\"}\nevent: token\ndata: {\"delta\":\"b\"}\n"))
	asm.Close()

	// Two deltas plus the finalization notification.
	if updates != 3 {
		t.Errorf("Expected 3 update notifications, got %d", updates)
	}
}

var _ io.Reader = (*failingReader)(nil)
