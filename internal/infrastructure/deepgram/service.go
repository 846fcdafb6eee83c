package deepgram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/phoebe-ai/phoebe-client/internal/config"
	"github.com/phoebe-ai/phoebe-client/internal/services/voice"
)

// listenPath carries the live transcription parameters. Interim results are
// required: the silence window restarts on every partial.
const listenPath = "/v1/listen?model=nova-2&language=zh-CN&punctuate=true&interim_results=true&encoding=linear16&sample_rate=16000"

type Service struct {
	mu        sync.Mutex
	SocketURL string      `json:"socket_url"`
	Headers   http.Header `json:"headers"`

	audio io.Reader

	conn    *websocket.Conn
	stopped bool
	// finalized holds the segments Deepgram has closed; the interim tail is
	// appended on every result so callbacks always see the whole utterance.
	finalized strings.Builder
}

// NewService builds the live transcription client. Returns nil when no API
// key is configured - voice mode is then unavailable and chat stays
// text-only.
func NewService(audio io.Reader) *Service {
	token := config.GetDeepgramAPIKey()

	if token == "" {
		log.Warn().Msg("Deepgram API key not configured - voice recognition will be unavailable")
		return nil
	}

	headers := http.Header{}
	headers.Add("Authorization", "token "+token)

	s := &Service{
		SocketURL: config.GetDeepgramSocketURL(),
		Headers:   headers,
		audio:     audio,
	}

	log.Info().
		Str("socket_url", s.SocketURL).
		Msg("Deepgram service initialized successfully")

	return s
}

// SetSocketURL sets the WebSocket URL for the service
func (s *Service) SetSocketURL(url string) *Service {
	s.SocketURL = url
	return s
}

// ConnectSocket connects to the Deepgram WebSocket API
func (s *Service) ConnectSocket(path string) (*websocket.Conn, error) {
	if s.SocketURL == "" {
		return nil, fmt.Errorf("socket URL is required before connecting to Deepgram")
	}
	if s.Headers == nil {
		return nil, fmt.Errorf("headers are required before connecting to Deepgram")
	}

	u, err := url.Parse(s.SocketURL + path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse Deepgram URL")
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), s.Headers)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to Deepgram")
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, voice.ErrPermissionDenied
		}
		return nil, err
	}

	return conn, nil
}

// transcriptResult mirrors the fields of a live transcription message that
// the recognizer cares about.
type transcriptResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Start opens the live transcription socket and pumps audio into it until
// Stop is called. Callbacks fire from the socket read loop.
func (s *Service) Start(cb voice.RecognitionCallbacks) error {
	conn, err := s.ConnectSocket(listenPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.stopped = false
	s.finalized.Reset()
	s.mu.Unlock()

	go s.pumpAudio(conn)
	go s.readLoop(conn, cb)

	return nil
}

// Stop closes the socket. The read loop reports OnEnd rather than OnError
// for the resulting read failure.
func (s *Service) Stop() {
	s.mu.Lock()
	conn := s.conn
	s.stopped = true
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}

	// CloseStream tells Deepgram to flush any pending results before the
	// connection drops.
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	_ = conn.Close()
}

func (s *Service) pumpAudio(conn *websocket.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Service) readLoop(conn *websocket.Conn, cb voice.RecognitionCallbacks) {
	heard := false

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if s.isStopped() {
				cb.OnEnd()
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if !heard {
					cb.OnError(voice.ErrNoSpeech)
					return
				}
				cb.OnEnd()
				return
			}
			log.Error().Err(err).Msg("Deepgram socket read failed")
			cb.OnError(voice.ErrAborted)
			return
		}

		var result transcriptResult
		if err := json.Unmarshal(raw, &result); err != nil {
			log.Debug().Err(err).Msg("Skipping unparseable Deepgram message")
			continue
		}
		if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
			continue
		}

		segment := result.Channel.Alternatives[0].Transcript
		if segment == "" {
			continue
		}
		heard = true

		s.mu.Lock()
		if result.IsFinal {
			s.finalized.WriteString(segment)
		}
		utterance := s.finalized.String()
		if !result.IsFinal {
			utterance += segment
		}
		s.mu.Unlock()

		cb.OnResult(utterance, result.IsFinal)
	}
}

func (s *Service) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
