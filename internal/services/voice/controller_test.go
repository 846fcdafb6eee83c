package voice

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRecognizer hands out scripted callbacks the test drives directly.
type fakeRecognizer struct {
	mu     sync.Mutex
	cb     RecognitionCallbacks
	starts int
	stops  int
}

func (f *fakeRecognizer) Start(cb RecognitionCallbacks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	f.starts++
	return nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRecognizer) emit(text string, final bool) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnResult != nil {
		cb.OnResult(text, final)
	}
}

func (f *fakeRecognizer) fail(err error) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// fakeSynthesizer completes instantly unless told to hold.
type fakeSynthesizer struct {
	mu      sync.Mutex
	spoken  []string
	cancels int
	hold    bool
	heldCb  SynthesisCallbacks
}

func (f *fakeSynthesizer) Speak(text string, cb SynthesisCallbacks) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	hold := f.hold
	f.heldCb = cb
	f.mu.Unlock()
	if !hold && cb.OnEnd != nil {
		cb.OnEnd()
	}
	return nil
}

func (f *fakeSynthesizer) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeSynthesizer) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

const (
	testSilence = 30 * time.Millisecond
	testBackoff = 10 * time.Millisecond
)

func newTestController(send SendFunc) (*Controller, *fakeRecognizer, *fakeSynthesizer) {
	rec := &fakeRecognizer{}
	syn := &fakeSynthesizer{}
	c := NewController(rec, syn, send, Config{
		SilenceWindow:  testSilence,
		RestartBackoff: testBackoff,
	}, Observer{})
	return c, rec, syn
}

func TestSilenceTriggersSingleSend(t *testing.T) {
	var sends int32
	var utterance string
	var mu sync.Mutex

	c, rec, _ := newTestController(func(u string) (string, error) {
		atomic.AddInt32(&sends, 1)
		mu.Lock()
		utterance = u
		mu.Unlock()
		return "回复", nil
	})
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	// Interim result, then a final result that supersedes it and restarts
	// the silence timer.
	rec.emit("你好", false)
	time.Sleep(testSilence / 2)
	rec.emit("你好吗", true)

	waitFor(t, "send to fire", func() bool { return atomic.LoadInt32(&sends) == 1 })

	mu.Lock()
	got := utterance
	mu.Unlock()
	if got != "你好吗" {
		t.Errorf("Expected utterance %q, got %q", "你好吗", got)
	}

	// Loop should come back around to listening and never send twice.
	waitFor(t, "listening to resume", func() bool { return c.Phase() == PhaseListening })
	if n := atomic.LoadInt32(&sends); n != 1 {
		t.Errorf("Expected exactly 1 send, got %d", n)
	}
}

func TestSilenceWithEmptyTranscriptDoesNotSend(t *testing.T) {
	var sends int32
	c, _, _ := newTestController(func(string) (string, error) {
		atomic.AddInt32(&sends, 1)
		return "", nil
	})
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	time.Sleep(3 * testSilence)
	if atomic.LoadInt32(&sends) != 0 {
		t.Error("Send fired without any captured speech")
	}
}

func TestSendGuardSuppressesSecondUtterance(t *testing.T) {
	var sends int32
	release := make(chan struct{})

	c, rec, _ := newTestController(func(string) (string, error) {
		atomic.AddInt32(&sends, 1)
		<-release
		return "回复", nil
	})
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	rec.emit("第一句", true)
	waitFor(t, "first send to start", func() bool { return atomic.LoadInt32(&sends) == 1 })
	if c.Phase() != PhaseThinking {
		t.Fatalf("Expected thinking, got %s", c.Phase())
	}

	// Speech arriving while the first send is in flight comes from a
	// stopped instance; it must not schedule a second send, and the text
	// is lost by design.
	rec.emit("第二句", true)
	time.Sleep(3 * testSilence)
	if n := atomic.LoadInt32(&sends); n != 1 {
		t.Fatalf("Guard failed: %d sends", n)
	}

	close(release)
	waitFor(t, "listening to resume", func() bool { return c.Phase() == PhaseListening })

	if c.Live() != "" {
		t.Errorf("Suppressed utterance should not be preserved, live = %q", c.Live())
	}
	time.Sleep(3 * testSilence)
	if n := atomic.LoadInt32(&sends); n != 1 {
		t.Errorf("Suppressed utterance was auto-sent: %d sends", n)
	}
}

func TestReplyIsSanitizedAndSpoken(t *testing.T) {
	c, rec, syn := newTestController(func(string) (string, error) {
		return "**你好** 😀", nil
	})
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	rec.emit("问题", true)
	waitFor(t, "synthesis", func() bool { return len(syn.spokenTexts()) == 1 })

	if got := syn.spokenTexts()[0]; got != "你好" {
		t.Errorf("Expected sanitized speech %q, got %q", "你好", got)
	}
	waitFor(t, "listening to resume", func() bool { return c.Phase() == PhaseListening })
}

func TestEmptyReplyResumesListeningWithoutSpeaking(t *testing.T) {
	c, rec, syn := newTestController(func(string) (string, error) {
		return "   ", nil
	})
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	rec.emit("问题", true)
	waitFor(t, "listening to resume", func() bool { return c.Phase() == PhaseListening })

	if len(syn.spokenTexts()) != 0 {
		t.Errorf("Empty reply must not be spoken, got %v", syn.spokenTexts())
	}
}

func TestSendFailureSelfHeals(t *testing.T) {
	var sends int32
	c, rec, syn := newTestController(func(string) (string, error) {
		atomic.AddInt32(&sends, 1)
		return "", errors.New("backend down")
	})
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	rec.emit("问题", true)
	waitFor(t, "listening to resume after failure", func() bool {
		return atomic.LoadInt32(&sends) == 1 && c.Phase() == PhaseListening
	})
	if len(syn.spokenTexts()) != 0 {
		t.Error("Failed turn must not be spoken")
	}

	// Recognition restarts after the backoff: a fresh utterance sends again.
	waitFor(t, "recognition restart", func() bool { return rec.startCount() >= 2 })
	rec.emit("再试一次", true)
	waitFor(t, "second send", func() bool { return atomic.LoadInt32(&sends) == 2 })
}

func TestExitIgnoresStaleCallbacks(t *testing.T) {
	notices := make(chan string, 1)
	c, rec, _ := newTestController(func(string) (string, error) { return "x", nil })
	c.observer = Observer{Notice: func(s string) { notices <- s }}

	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	rec.emit("说到一半", false)
	c.Exit()

	if c.Phase() != PhaseIdle {
		t.Fatalf("Expected idle after Exit, got %s", c.Phase())
	}

	// Late events from the cancelled instance must not revive the loop.
	rec.emit("幽灵结果", true)
	rec.fail(errors.New("late engine error"))
	time.Sleep(3 * testSilence)

	if c.Phase() != PhaseIdle {
		t.Errorf("Stale callback changed phase to %s", c.Phase())
	}
	if c.Live() != "" {
		t.Errorf("Stale callback set live transcript %q", c.Live())
	}

	// Exit is idempotent.
	c.Exit()
	c.Exit()
}

func TestSupersededSendReplyIsNotSpoken(t *testing.T) {
	release := []chan struct{}{make(chan struct{}), make(chan struct{})}
	replies := []string{"旧回复", "新回复"}
	var calls int32

	c, rec, syn := newTestController(func(string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		<-release[n-1]
		return replies[n-1], nil
	})

	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	rec.emit("第一句", true)
	waitFor(t, "first send in flight", func() bool {
		return atomic.LoadInt32(&calls) == 1 && c.Phase() == PhaseThinking
	})

	// Exit and start a fresh turn while the first send is still blocked.
	c.Exit()
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	rec.emit("第二句", true)
	waitFor(t, "second send in flight", func() bool {
		return atomic.LoadInt32(&calls) == 2 && c.Phase() == PhaseThinking
	})

	// The cancelled turn completes; its reply must be discarded without
	// touching the live turn.
	close(release[0])
	time.Sleep(3 * testSilence)

	if got := syn.spokenTexts(); len(got) != 0 {
		t.Fatalf("Superseded turn's reply was spoken: %v", got)
	}
	if c.Phase() != PhaseThinking {
		t.Fatalf("Superseded turn changed phase to %s", c.Phase())
	}

	close(release[1])
	waitFor(t, "live reply spoken", func() bool {
		spoken := syn.spokenTexts()
		return len(spoken) == 1 && spoken[0] == "新回复"
	})
}

func TestPermissionDeniedIsFatal(t *testing.T) {
	notices := make(chan string, 1)
	c, rec, _ := newTestController(func(string) (string, error) { return "x", nil })
	c.observer = Observer{Notice: func(s string) { notices <- s }}

	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	rec.fail(ErrPermissionDenied)

	waitFor(t, "exit to idle", func() bool { return c.Phase() == PhaseIdle })
	select {
	case n := <-notices:
		if n != "无法访问麦克风，请检查权限设置" {
			t.Errorf("Unexpected notice %q", n)
		}
	default:
		t.Error("Expected a user-facing notice for permission denial")
	}
}

func TestTransientErrorRestartsListening(t *testing.T) {
	c, rec, _ := newTestController(func(string) (string, error) { return "x", nil })
	if err := c.Enter(); err != nil {
		t.Fatal(err)
	}
	defer c.Exit()

	rec.fail(ErrNoSpeech)
	waitFor(t, "recognition restart", func() bool { return rec.startCount() >= 2 })
	if c.Phase() != PhaseListening {
		t.Errorf("Expected listening after transient error, got %s", c.Phase())
	}
}

func TestEnterWithoutEnginesFails(t *testing.T) {
	c := NewController(nil, nil, func(string) (string, error) { return "", nil }, Config{}, Observer{})
	if err := c.Enter(); err == nil {
		t.Error("Enter without engines should fail")
	}
}
