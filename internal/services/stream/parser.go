package stream

import (
	"strings"
)

// Event is one dispatched payload from the line protocol. Name is the value
// of the preceding "event:" line; Data is the "data:" value with the prefix
// and at most one leading space removed.
type Event struct {
	Name string
	Data string
}

const (
	EventToken     = "token"
	EventRetrieval = "retrieval"
	EventError     = "error"
)

// ParserState holds the incremental parse state between Feed calls: the
// unterminated line tail and the current event name. A data line consumes
// the event name, so each payload is dispatched in exactly one event
// context.
type ParserState struct {
	buffer       string
	currentEvent string
}

// Feed appends a chunk and extracts every complete line. The trailing
// fragment without a newline stays buffered, so the emitted event sequence
// is identical no matter how the byte stream is split into chunks.
func (p *ParserState) Feed(chunk []byte) []Event {
	p.buffer += string(chunk)

	var events []Event
	for {
		i := strings.IndexByte(p.buffer, '\n')
		if i < 0 {
			break
		}
		line := p.buffer[:i]
		p.buffer = p.buffer[i+1:]

		if ev, ok := p.consumeLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (p *ParserState) consumeLine(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, "event:"):
		p.currentEvent = strings.TrimSpace(line[len("event:"):])
	case strings.HasPrefix(line, "data:"):
		data := line[len("data:"):]
		// Protocol convention: both "data: x" and "data:x" are accepted,
		// so strip at most one leading space.
		data = strings.TrimPrefix(data, " ")
		ev := Event{Name: p.currentEvent, Data: data}
		p.currentEvent = ""
		return ev, true
	}
	return Event{}, false
}

// Buffered returns the unterminated tail, for diagnostics.
func (p *ParserState) Buffered() string {
	return p.buffer
}
