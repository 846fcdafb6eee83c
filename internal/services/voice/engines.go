package voice

import (
	"errors"
)

// Engine error classification. Recognizer and synthesizer implementations
// wrap or return these sentinels so the controller can decide between
// self-healing and exiting voice mode.
var (
	// ErrPermissionDenied is fatal to voice mode: the audio capability is
	// unavailable and retrying will not help.
	ErrPermissionDenied = errors.New("voice: permission denied")

	// ErrNoSpeech means the engine gave up without hearing anything.
	// Listening simply restarts.
	ErrNoSpeech = errors.New("voice: no speech detected")

	// ErrAborted means the engine instance was cancelled locally.
	ErrAborted = errors.New("voice: recognition aborted")
)

// RecognitionCallbacks receive events from one recognizer instance.
// OnResult delivers the full text of the current utterance so far
// (finalized plus interim segments); a newer result supersedes the
// previous one.
type RecognitionCallbacks struct {
	OnResult func(text string, isFinal bool)
	OnError  func(err error)
	OnEnd    func()
}

// SpeechRecognizer is one continuous speech-to-text capability. Start opens
// a fresh engine instance; Stop cancels the active one. Implementations may
// keep emitting callbacks briefly after Stop - the controller discards
// stale ones.
type SpeechRecognizer interface {
	Start(cb RecognitionCallbacks) error
	Stop()
}

// SynthesisCallbacks receive completion events from one synthesis utterance.
type SynthesisCallbacks struct {
	OnEnd   func()
	OnError func(err error)
}

// SpeechSynthesizer vocalizes one text at a time. Speak begins synthesis and
// returns immediately; exactly one of OnEnd or OnError fires unless Cancel
// preempts the utterance.
type SpeechSynthesizer interface {
	Speak(text string, cb SynthesisCallbacks) error
	Cancel()
}
