package openai

import (
	"context"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/phoebe-ai/phoebe-client/internal/config"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/voice"
)

// Service synthesizes assistant replies with the OpenAI speech API and
// streams the audio into a sink (in practice the UI websocket broadcast).
type Service struct {
	mu     sync.RWMutex
	client *openai.Client
	sink   io.Writer
	cancel context.CancelFunc
}

// NewService returns nil when OPENAI_KEY is unset; voice replies are then
// silent but voice capture still works.
func NewService(sink io.Writer) *Service {
	logger.Info(logger.SERVICE, "Initialising OpenAI service")
	key := config.GetOpenAIKey()

	if key == "" {
		logger.Warn(logger.SERVICE, "OpenAI service not configured - OPENAI_KEY missing")
		return nil
	}

	return &Service{
		client: openai.NewClient(key),
		sink:   sink,
	}
}

func (s *Service) GetClient() *openai.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Speak synthesizes text asynchronously. OnEnd fires once the full audio
// stream has been written to the sink; Cancel suppresses both callbacks.
func (s *Service) Speak(text string, cb voice.SynthesisCallbacks) error {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.synthesize(ctx, text, cb)
	return nil
}

// Cancel aborts the in-flight synthesis, if any.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Service) synthesize(ctx context.Context, text string, cb voice.SynthesisCallbacks) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(config.GetTTSVoice()),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error(logger.SERVICE, "Speech synthesis failed: %v", err)
		cb.OnError(err)
		return
	}
	defer resp.Close()

	if _, err := io.Copy(s.sink, resp); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error(logger.SERVICE, "Speech playback failed: %v", err)
		cb.OnError(err)
		return
	}

	if ctx.Err() != nil {
		return
	}
	cb.OnEnd()
}
