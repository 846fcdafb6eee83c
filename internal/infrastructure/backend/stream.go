package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
	"github.com/phoebe-ai/phoebe-client/internal/services/stream"
)

// OpenStream submits one chat turn and returns the response body carrying
// the event stream. The caller owns the body and must close it; aborting
// the passed context aborts the stream.
func (s *Service) OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid stream request: %w", err)
	}

	httpReq, err := s.newRequest(ctx, http.MethodPost, "/api/v1/chat/stream", req)
	if err != nil {
		return nil, &stream.TransportError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	logger.Debug(logger.BACKEND, "Opening chat stream for session %s", req.SessionID)

	resp, err := s.streamClient.Do(httpReq)
	if err != nil {
		return nil, &stream.TransportError{Op: "open", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		s.ClearAuth()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := decodeError(resp)
		resp.Body.Close()
		return nil, &stream.TransportError{Op: "open", Err: err}
	}

	return resp.Body, nil
}
