package voice

import (
	"io"
	"sync"
)

// AudioBridge relays raw PCM frames from the UI connection to whatever
// recognizer is reading. Frames are dropped oldest-first under backpressure
// so a stalled recognizer can never block the producing connection. Intended
// for a single reader.
type AudioBridge struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
	rest   []byte
}

func NewAudioBridge() *AudioBridge {
	return &AudioBridge{
		frames: make(chan []byte, 64),
	}
}

// Write queues one audio frame. Never blocks.
func (b *AudioBridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}

	frame := make([]byte, len(p))
	copy(frame, p)

	for {
		select {
		case b.frames <- frame:
			return len(p), nil
		default:
		}
		// Full: drop the oldest frame and retry.
		select {
		case <-b.frames:
		default:
		}
	}
}

// Read blocks until a frame is available or the bridge is closed.
func (b *AudioBridge) Read(p []byte) (int, error) {
	if len(b.rest) == 0 {
		frame, ok := <-b.frames
		if !ok {
			return 0, io.EOF
		}
		b.rest = frame
	}
	n := copy(p, b.rest)
	b.rest = b.rest[n:]
	return n, nil
}

func (b *AudioBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.frames)
	}
	return nil
}
