package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phoebe-ai/phoebe-client/internal/config"
	"github.com/phoebe-ai/phoebe-client/internal/connections"
	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/backend"
	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/deepgram"
	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/openai"
	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/redis"
	"github.com/phoebe-ai/phoebe-client/internal/services/session"
	"github.com/phoebe-ai/phoebe-client/internal/services/voice"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

// sendTimeout bounds one full chat turn, including a slow stream.
const sendTimeout = 2 * time.Minute

type Services struct {
	connectionManager *connections.Manager
	backendService    *backend.Service
	redisService      *redis.Service
	deepgramService   *deepgram.Service
	openAIService     *openai.Service
	sessionService    *session.Service
	voiceController   *voice.Controller
	audioBridge       *voice.AudioBridge
}

// InitializeServices initializes all required services
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	connectionManager := connections.NewManager(connections.DefaultTimeouts)

	// Initialize Redis service (optional)
	redisService := redis.NewService()
	log.Info().Msg("Initializing Redis service")

	// Backend client (required) - without it nothing works, but it only
	// needs configuration, not connectivity, to construct.
	backendService := backend.NewService()

	svc := &Services{
		connectionManager: connectionManager,
		backendService:    backendService,
		redisService:      redisService,
	}

	// The update hook reads back through svc so the broadcast sees the
	// fully wired session service.
	sessionService := session.NewService(backendService, redisService, func() {
		broadcastTranscript(connectionManager, svc.sessionService)
	})
	svc.sessionService = sessionService
	log.Info().Msg("Initializing session service")

	// Voice engines are optional; chat stays text-only without them.
	audioBridge := voice.NewAudioBridge()
	svc.audioBridge = audioBridge

	var recognizer voice.SpeechRecognizer
	if dg := deepgram.NewService(audioBridge); dg != nil {
		svc.deepgramService = dg
		recognizer = dg
	}

	var synthesizer voice.SpeechSynthesizer
	if oa := openai.NewService(connectionManager.BinaryWriter()); oa != nil {
		svc.openAIService = oa
		synthesizer = oa
	}

	svc.voiceController = voice.NewController(
		recognizer,
		synthesizer,
		func(utterance string) (string, error) {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			return sessionService.Send(ctx, session.Input{Text: utterance})
		},
		voice.Config{
			SilenceWindow:  config.GetSilenceWindow(),
			RestartBackoff: config.GetVoiceBackoff(),
		},
		voice.Observer{
			PhaseChanged: func(p voice.Phase) {
				connectionManager.Broadcast(map[string]interface{}{
					"type":  "voice_phase",
					"phase": string(p),
				})
			},
			LiveTranscript: func(text string) {
				connectionManager.Broadcast(map[string]interface{}{
					"type": "voice_live",
					"text": text,
				})
			},
			Notice: func(text string) {
				connectionManager.Broadcast(map[string]interface{}{
					"type": "notice",
					"text": text,
				})
			},
		},
	)

	log.Info().Msg("All services initialized successfully")

	return svc, nil
}

func broadcastTranscript(manager *connections.Manager, sessionService *session.Service) {
	if sessionService == nil {
		return
	}
	event := map[string]interface{}{
		"type":     "transcript",
		"messages": sessionService.Transcript().Messages(),
	}
	if info := sessionService.Transcript().Retrieval(); info != nil {
		event["retrieval"] = info
	}
	manager.Broadcast(event)
}

// GetConnectionManager returns the UI connection manager
func (s *Services) GetConnectionManager() *connections.Manager {
	return s.connectionManager
}

// GetBackendService returns the backend client
func (s *Services) GetBackendService() *backend.Service {
	return s.backendService
}

// GetSessionService returns the session service
func (s *Services) GetSessionService() *session.Service {
	return s.sessionService
}

// GetVoiceController returns the voice mode controller
func (s *Services) GetVoiceController() *voice.Controller {
	return s.voiceController
}

// GetAudioBridge returns the microphone audio bridge
func (s *Services) GetAudioBridge() *voice.AudioBridge {
	return s.audioBridge
}

// Shutdown flushes pending state and closes infrastructure connections.
func (s *Services) Shutdown(ctx context.Context) {
	s.voiceController.Exit()
	s.sessionService.Flush(ctx)
	if s.redisService != nil {
		if err := s.redisService.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
}
