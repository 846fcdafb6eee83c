package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/phoebe-ai/phoebe-client/internal/services/transcript"
	"github.com/rs/zerolog/log"
)

// User-facing failure strings, kept identical to what the product shows.
const (
	transportFailureText = "抱歉，我遇到了问题。请检查网络连接。"
	serverErrorFormat    = "抱歉，发生错误：%s"
	unknownErrorText     = "未知错误"
)

// TransportError indicates the stream could not be opened or died mid-flight.
// It is recovered locally: the pending message is finalized with a fixed
// failure string and the user may resend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type tokenPayload struct {
	Delta string `json:"delta"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Assembler turns one chunked event stream into mutations of a single
// pending transcript message. It finalizes that message exactly once, on
// Close, Fail, or a server error event, whichever comes first.
type Assembler struct {
	state       ParserState
	pending     *transcript.Pending
	accumulated strings.Builder
	finalized   bool
	onRetrieval func(transcript.RetrievalInfo)
	onUpdate    func()
}

// NewAssembler binds an assembler to the pending message it feeds.
// onRetrieval and onUpdate are optional observers.
func NewAssembler(pending *transcript.Pending, onRetrieval func(transcript.RetrievalInfo), onUpdate func()) *Assembler {
	return &Assembler{
		pending:     pending,
		onRetrieval: onRetrieval,
		onUpdate:    onUpdate,
	}
}

// Feed processes one chunk of the response body. Chunks may split lines at
// any byte boundary.
func (a *Assembler) Feed(chunk []byte) {
	for _, ev := range a.state.Feed(chunk) {
		a.apply(ev)
	}
}

func (a *Assembler) apply(ev Event) {
	if a.finalized || ev.Data == "" {
		return
	}

	switch ev.Name {
	case EventToken:
		var payload tokenPayload
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			// Non-JSON token framing: treat the raw payload as literal
			// delta text.
			a.appendDelta(ev.Data)
			return
		}
		if payload.Delta != "" {
			a.appendDelta(payload.Delta)
		}

	case EventRetrieval:
		var info transcript.RetrievalInfo
		if err := json.Unmarshal([]byte(ev.Data), &info); err != nil {
			log.Debug().Err(err).Msg("Dropping malformed retrieval payload")
			return
		}
		if a.onRetrieval != nil {
			a.onRetrieval(info)
		}

	case EventError:
		var payload errorPayload
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			// Malformed server errors are dropped and accumulated content
			// stands, matching the token fallback asymmetry.
			log.Debug().Err(err).Msg("Dropping malformed error payload")
			return
		}
		text := payload.Error
		if text == "" {
			text = unknownErrorText
		}
		a.pending.SetContent(fmt.Sprintf(serverErrorFormat, text))
		a.finish()

	default:
		// Unknown event names are ignored for forward compatibility.
	}
}

func (a *Assembler) appendDelta(delta string) {
	a.accumulated.WriteString(delta)
	a.pending.Append(delta)
	if a.onUpdate != nil {
		a.onUpdate()
	}
}

// Close finalizes on normal end-of-stream. Content accumulated so far stands,
// even if empty; a message is never left permanently pending.
func (a *Assembler) Close() {
	if a.finalized {
		return
	}
	a.finish()
}

// Fail finalizes with the fixed transport failure string.
func (a *Assembler) Fail() {
	if a.finalized {
		return
	}
	a.pending.SetContent(transportFailureText)
	a.finish()
}

func (a *Assembler) finish() {
	a.finalized = true
	a.pending.Finalize()
	if a.onUpdate != nil {
		a.onUpdate()
	}
}

// Finalized reports whether the pending message has been closed out.
func (a *Assembler) Finalized() bool {
	return a.finalized
}

// Accumulated is the concatenation of all token deltas seen, in arrival
// order. Error substitution does not rewrite it.
func (a *Assembler) Accumulated() string {
	return a.accumulated.String()
}

// Consume pumps the response body to completion. Returns nil on normal
// end-of-stream and a TransportError on a mid-stream read failure, including
// cancellation of the request context.
func (a *Assembler) Consume(body io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			a.Feed(buf[:n])
		}
		if err == io.EOF {
			a.Close()
			return nil
		}
		if err != nil {
			a.Fail()
			return &TransportError{Op: "read", Err: err}
		}
	}
}
