package voice

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
	PhaseSpeaking  Phase = "speaking"
)

const permissionNotice = "无法访问麦克风，请检查权限设置"

// SendFunc submits one utterance as a chat turn and blocks until the
// assistant reply is final. It returns the finalized assistant content.
type SendFunc func(utterance string) (string, error)

// Observer receives state changes for rendering. All fields are optional.
type Observer struct {
	PhaseChanged   func(Phase)
	LiveTranscript func(string)
	Notice         func(string)
}

// Config tunes the controller. Zero values take the defaults below.
type Config struct {
	SilenceWindow  time.Duration
	RestartBackoff time.Duration
}

const (
	defaultSilenceWindow  = time.Second
	defaultRestartBackoff = 250 * time.Millisecond
)

// Controller runs the hands-free conversational loop: listen, detect
// end-of-utterance by silence, send, speak the reply, listen again.
//
// Every recognizer instance, synthesis utterance and silence timer is issued
// under a generation number; the generation advances whenever an instance is
// superseded or voice mode exits, and callbacks carrying a stale generation
// are discarded. The send guard is set before a send is initiated and
// cleared only when that send definitively completes.
type Controller struct {
	mu        sync.Mutex
	phase     Phase
	gen       uint64
	live      string
	sendGuard bool
	silence   *time.Timer

	recognizer  SpeechRecognizer
	synthesizer SpeechSynthesizer
	send        SendFunc
	cfg         Config
	observer    Observer
}

func NewController(recognizer SpeechRecognizer, synthesizer SpeechSynthesizer, send SendFunc, cfg Config, observer Observer) *Controller {
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = defaultSilenceWindow
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = defaultRestartBackoff
	}
	return &Controller{
		phase:       PhaseIdle,
		recognizer:  recognizer,
		synthesizer: synthesizer,
		send:        send,
		cfg:         cfg,
		observer:    observer,
	}
}

// Enter starts voice mode. No-op when already active.
func (c *Controller) Enter() error {
	if c.recognizer == nil || c.synthesizer == nil {
		return fmt.Errorf("voice mode unavailable: speech engines not configured")
	}

	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return nil
	}
	c.phase = PhaseListening
	c.sendGuard = false
	c.live = ""
	c.gen++
	g := c.gen
	c.mu.Unlock()

	log.Info().Msg("Entering voice mode")
	c.notifyPhase(PhaseListening)
	c.startRecognitionInstance(g)
	return nil
}

// Exit leaves voice mode, cancelling recognition, the silence timer and any
// in-flight synthesis. Idempotent.
func (c *Controller) Exit() {
	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseIdle
	c.gen++
	c.sendGuard = false
	c.live = ""
	c.stopSilenceLocked()
	c.mu.Unlock()

	c.recognizer.Stop()
	c.synthesizer.Cancel()
	log.Info().Msg("Exited voice mode")
	c.notifyPhase(PhaseIdle)
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Live returns the interim transcript of the utterance being captured.
func (c *Controller) Live() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *Controller) startRecognitionInstance(g uint64) {
	cb := RecognitionCallbacks{
		OnResult: func(text string, _ bool) { c.onResult(g, text) },
		OnError:  func(err error) { c.onRecognitionError(g, err) },
		OnEnd:    func() { c.onRecognitionEnd(g) },
	}
	if err := c.recognizer.Start(cb); err != nil {
		c.onRecognitionError(g, err)
	}
}

func (c *Controller) onResult(g uint64, text string) {
	c.mu.Lock()
	if c.gen != g || c.phase != PhaseListening {
		c.mu.Unlock()
		return
	}
	c.live = text
	// Each new result supersedes the silence timer: restart it rather than
	// letting an earlier arming race ahead of fresh speech.
	c.stopSilenceLocked()
	c.silence = time.AfterFunc(c.cfg.SilenceWindow, func() { c.onSilence(g) })
	c.mu.Unlock()

	c.notifyLive(text)
}

func (c *Controller) onSilence(g uint64) {
	c.mu.Lock()
	if c.gen != g || c.phase != PhaseListening || c.sendGuard || c.live == "" {
		c.mu.Unlock()
		return
	}
	utterance := c.live
	c.sendGuard = true
	c.live = ""
	c.phase = PhaseThinking
	c.gen++
	turn := c.gen
	c.stopSilenceLocked()
	c.mu.Unlock()

	c.recognizer.Stop()
	c.notifyLive("")
	c.notifyPhase(PhaseThinking)
	log.Debug().Str("utterance", utterance).Msg("Silence detected, sending utterance")
	go c.dispatch(utterance, turn)
}

func (c *Controller) dispatch(utterance string, turn uint64) {
	reply, err := c.send(utterance)

	c.mu.Lock()
	if c.gen != turn || c.phase != PhaseThinking {
		// Voice mode exited, or a newer turn superseded this one, while the
		// send was in flight. Its reply must not be spoken.
		c.mu.Unlock()
		return
	}

	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		c.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Msg("Voice turn failed, resuming listening")
		}
		c.resumeListening(c.cfg.RestartBackoff)
		return
	}

	c.phase = PhaseSpeaking
	c.gen++
	g := c.gen
	c.mu.Unlock()

	c.notifyPhase(PhaseSpeaking)

	text := SpeakableText(reply)
	if text == "" {
		c.resumeListening(0)
		return
	}

	done := func() { c.onSynthesisDone(g) }
	cb := SynthesisCallbacks{
		OnEnd:   done,
		OnError: func(err error) {
			log.Warn().Err(err).Msg("Synthesis failed")
			done()
		},
	}
	if err := c.synthesizer.Speak(text, cb); err != nil {
		log.Warn().Err(err).Msg("Failed to start synthesis")
		done()
	}
}

func (c *Controller) onSynthesisDone(g uint64) {
	c.mu.Lock()
	if c.gen != g || c.phase != PhaseSpeaking {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.resumeListening(0)
}

// resumeListening clears the send guard and restarts recognition, optionally
// after a backoff. The phase flips to listening immediately; only the engine
// start is delayed.
func (c *Controller) resumeListening(delay time.Duration) {
	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseListening
	c.sendGuard = false
	c.gen++
	g := c.gen
	c.mu.Unlock()

	c.notifyPhase(PhaseListening)
	if delay > 0 {
		time.AfterFunc(delay, func() { c.startIfCurrent(g) })
		return
	}
	c.startIfCurrent(g)
}

func (c *Controller) startIfCurrent(g uint64) {
	c.mu.Lock()
	if c.gen != g || c.phase != PhaseListening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.startRecognitionInstance(g)
}

// restartRecognition replaces the active engine instance without leaving the
// listening phase. Captured speech and its silence deadline survive the
// restart.
func (c *Controller) restartRecognition(delay time.Duration) {
	c.mu.Lock()
	if c.phase != PhaseListening {
		c.mu.Unlock()
		return
	}
	c.gen++
	g := c.gen
	if c.live != "" {
		c.stopSilenceLocked()
		c.silence = time.AfterFunc(c.cfg.SilenceWindow, func() { c.onSilence(g) })
	}
	c.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() { c.startIfCurrent(g) })
		return
	}
	c.startIfCurrent(g)
}

func (c *Controller) onRecognitionError(g uint64, err error) {
	c.mu.Lock()
	if c.gen != g || c.phase != PhaseListening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	switch {
	case errors.Is(err, ErrPermissionDenied):
		log.Error().Err(err).Msg("Audio capability denied, exiting voice mode")
		c.notifyNotice(permissionNotice)
		c.Exit()
	case errors.Is(err, ErrNoSpeech), errors.Is(err, ErrAborted):
		c.restartRecognition(0)
	default:
		log.Warn().Err(err).Msg("Recognition error, restarting after backoff")
		c.restartRecognition(c.cfg.RestartBackoff)
	}
}

func (c *Controller) onRecognitionEnd(g uint64) {
	c.mu.Lock()
	if c.gen != g || c.phase != PhaseListening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Streaming engines close on their own after inactivity; keep the loop
	// continuous.
	c.restartRecognition(0)
}

func (c *Controller) stopSilenceLocked() {
	if c.silence != nil {
		c.silence.Stop()
		c.silence = nil
	}
}

func (c *Controller) notifyPhase(p Phase) {
	if c.observer.PhaseChanged != nil {
		c.observer.PhaseChanged(p)
	}
}

func (c *Controller) notifyLive(text string) {
	if c.observer.LiveTranscript != nil {
		c.observer.LiveTranscript(text)
	}
}

func (c *Controller) notifyNotice(text string) {
	if c.observer.Notice != nil {
		c.observer.Notice(text)
	}
}
