package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/phoebe-ai/phoebe-client/internal/config"
	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

// ErrUnauthorized is returned when the backend rejects the stored token.
// The local auth state is cleared before it is surfaced.
var ErrUnauthorized = errors.New("backend: unauthorized")

// Service is the HTTP client for the Phoebe backend.
type Service struct {
	mu      sync.RWMutex
	baseURL string
	token   string
	user    *User

	// streamClient carries no timeout: the chat stream stays open for as
	// long as the assistant keeps talking.
	client       *http.Client
	streamClient *http.Client
	validate     *validator.Validate
}

func NewService() *Service {
	logger.Info(logger.SERVICE, "Initialising backend client")

	return &Service{
		baseURL:      strings.TrimRight(config.GetBackendURL(), "/"),
		token:        config.GetBackendToken(),
		client:       &http.Client{Timeout: config.GetBackendTimeout()},
		streamClient: &http.Client{},
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SetBaseURL overrides the backend address. Primarily used for testing.
func (s *Service) SetBaseURL(url string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimRight(url, "/")
	return s
}

func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Service) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Service) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ClearAuth drops the stored token and user, forcing a fresh login.
func (s *Service) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

// TokenExpired inspects the stored token's exp claim without verifying the
// signature - verification is the backend's job, the client only wants to
// know whether a request is pointless. Opaque tokens are assumed live.
func (s *Service) TokenExpired() bool {
	token := s.Token()
	if token == "" {
		return true
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		logger.Debug(logger.BACKEND, "Token is not a parseable JWT, assuming opaque: %v", err)
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return time.Now().After(claims.ExpiresAt.Time)
}

// Login authenticates and stores the returned token and user.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	req := LoginRequest{Username: username, Password: password}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid login request: %w", err)
	}

	var user User
	if err := s.postJSON(ctx, "/api/v1/users/login", req, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.token = user.Token
	s.user = &user
	s.mu.Unlock()

	logger.Info(logger.BACKEND, "Logged in as %s", user.Username)
	return &user, nil
}

// Register creates an account. The backend does not log the new user in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid register request: %w", err)
	}

	var user User
	if err := s.postJSON(ctx, "/api/v1/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) baseURLLocked() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// newRequest builds an authenticated JSON request.
func (s *Service) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURLLocked()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := s.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes a non-streaming request. A 401 clears local auth state.
func (s *Service) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		logger.Warn(logger.BACKEND, "Backend rejected token on %s %s", method, path)
		s.ClearAuth()
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func (s *Service) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := s.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *Service) postJSON(ctx context.Context, path string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, path, body, out)
}

// decodeError surfaces the backend's JSON error body when present.
func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("backend returned %d", resp.StatusCode)
}
