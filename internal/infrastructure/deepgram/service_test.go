package deepgram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phoebe-ai/phoebe-client/internal/services/voice"
)

type recorded struct {
	mu      sync.Mutex
	results []string
	finals  []bool
	ended   bool
	errs    []error
}

func (r *recorded) callbacks() voice.RecognitionCallbacks {
	return voice.RecognitionCallbacks{
		OnResult: func(text string, isFinal bool) {
			r.mu.Lock()
			r.results = append(r.results, text)
			r.finals = append(r.finals, isFinal)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnEnd: func() {
			r.mu.Lock()
			r.ended = true
			r.mu.Unlock()
		},
	}
}

func (r *recorded) snapshot() ([]string, []bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...), append([]bool(nil), r.finals...), r.ended
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newMockDeepgram(t *testing.T, script []string) (*httptest.Server, chan string) {
	t.Helper()
	authCh := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCh <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, msg := range script {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}

		// Drain until the client asks to close, then finish cleanly.
		for {
			messageType, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.TextMessage && strings.Contains(string(raw), "CloseStream") {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, authCh
}

func newTestService(t *testing.T, srv *httptest.Server) *Service {
	t.Helper()
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	bridge := voice.NewAudioBridge()
	t.Cleanup(func() { bridge.Close() })

	s := NewService(bridge)
	if s == nil {
		t.Fatal("NewService() returned nil with key configured")
	}
	return s.SetSocketURL("ws" + strings.TrimPrefix(srv.URL, "http"))
}

func TestStartDeliversCumulativeUtterance(t *testing.T) {
	srv, authCh := newMockDeepgram(t, []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"你好"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"你好"}]}}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"吗"}]}}`,
		`{"type":"Metadata","extra":"ignored"}`,
	})

	s := newTestService(t, srv)
	rec := &recorded{}
	if err := s.Start(rec.callbacks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if auth := <-authCh; auth != "token test-key" {
		t.Errorf("Authorization header = %q, want %q", auth, "token test-key")
	}

	waitFor(t, "three results", func() bool {
		results, _, _ := rec.snapshot()
		return len(results) == 3
	})

	results, finals, _ := rec.snapshot()
	want := []string{"你好", "你好", "你好吗"}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("result[%d] = %q, want %q", i, results[i], want[i])
		}
	}
	if !finals[1] || finals[0] || finals[2] {
		t.Errorf("finals = %v, want [false true false]", finals)
	}

	s.Stop()
	waitFor(t, "OnEnd after Stop", func() bool {
		_, _, ended := rec.snapshot()
		return ended
	})
}

func TestNewServiceWithoutKeyReturnsNil(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	if s := NewService(voice.NewAudioBridge()); s != nil {
		t.Error("NewService() should return nil without an API key")
	}
}

func TestConnectSocketRejectsMissingURL(t *testing.T) {
	s := &Service{Headers: http.Header{}}
	if _, err := s.ConnectSocket("/v1/listen"); err == nil {
		t.Error("ConnectSocket() should fail without a socket URL")
	}
}
